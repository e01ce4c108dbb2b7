package main

import (
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/reaper/internal/logging"
	"github.com/panbanda/reaper/internal/output"
	"github.com/panbanda/reaper/pkg/config"
)

// loadConfig reads --config, REAPER_CONFIG or a reaper.* file in the
// working directory, falling back to defaults.
func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.LoadOrDefault(c.String("config"), ".")
}

func newLogger(c *cli.Context) *slog.Logger {
	return logging.New(logging.Config{
		Verbose: c.Bool("verbose"),
		JSON:    c.Bool("log-json"),
		Writer:  c.App.ErrWriter,
	})
}

func newFormatter(c *cli.Context) *output.Formatter {
	w := c.App.Writer
	colored := !color.NoColor && w == os.Stdout
	return output.NewWriterFormatter(output.ParseFormat(c.String("format")), w, colored)
}

// rootDir returns --root, or the directory of the loaded config file.
func rootDir(c *cli.Context, cfg *config.Config) string {
	if root := c.String("root"); root != "" {
		return root
	}
	return cfg.BaseDir()
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
