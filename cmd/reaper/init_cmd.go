package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/reaper/pkg/config"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a default configuration file",
		Description: `Creates reaper.yaml in the current directory. The format follows the
extension of --output: .yaml, .yml, .toml or .json.

Examples:
  reaper init                      # Creates reaper.yaml
  reaper init -o .reaper/reaper.toml
  reaper init --force              # Overwrite an existing file`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "reaper.yaml",
				Usage:   "Output file path",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite existing config file",
			},
		},
		Action: runInitCmd,
	}
}

func runInitCmd(c *cli.Context) error {
	outputPath := c.String("output")

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	if err := config.WriteFile(config.DefaultConfig(), outputPath, c.Bool("force")); err != nil {
		return err
	}

	newFormatter(c).Success("Created %s", outputPath)
	return nil
}
