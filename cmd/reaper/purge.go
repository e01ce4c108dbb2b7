package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/reaper/internal/purge"
	"github.com/panbanda/reaper/pkg/deadcode"
)

var errPurgeFailed = errors.New("purge did not complete")

func purgeCmd() *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Delete files whose dead symbols all clear the threshold",
		Description: `Reads a dead_code.json report and selects whole files for deletion.
Nothing is deleted without --apply. Inside a git repository files are
removed through the index and optionally committed on a branch.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "report",
				Usage: "Path to dead_code.json (default: <output_dir>/dead_code.json)",
			},
			&cli.StringFlag{
				Name:  "mode",
				Value: string(purge.ModeAll),
				Usage: "all: every dead symbol in a file must reach the threshold; any: at least one",
			},
			&cli.IntFlag{
				Name:  "threshold",
				Usage: "Minimum confidence (default: scoring.delete_threshold)",
			},
			&cli.StringSliceFlag{
				Name:  "include-glob",
				Usage: "Only consider files matching this glob (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude-glob",
				Usage: "Never delete files matching this glob (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "apply",
				Usage: "Delete the selected files",
			},
			&cli.StringFlag{
				Name:  "branch",
				Usage: "Create or reset this git branch before deleting",
			},
			&cli.StringFlag{
				Name:  "commit-message",
				Usage: "Commit the removals with this message",
			},
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Skip the confirmation prompt",
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "Directory report paths are relative to (default: the config file's directory)",
			},
		},
		Action: runPurgeCmd,
	}
}

type planOutput struct {
	Files   []string `json:"files" toon:"files"`
	Missing []string `json:"missing,omitempty" toon:"missing,omitempty"`
}

func runPurgeCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(c)
	formatter := newFormatter(c)
	root := rootDir(c, cfg)

	mode, err := purge.ParseMode(c.String("mode"))
	if err != nil {
		return err
	}
	threshold := cfg.Scoring.DeleteThreshold
	if c.IsSet("threshold") {
		threshold = c.Int("threshold")
	}

	reportPath := c.String("report")
	if reportPath == "" {
		dir := cfg.OutputDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		reportPath = filepath.Join(dir, deadcode.ReportFile)
	}
	report, err := purge.LoadReport(reportPath)
	if err != nil {
		return err
	}

	exclude := append(append([]string{}, c.StringSlice("exclude-glob")...), cfg.Rules.KeepGlobs...)
	plan, err := purge.NewPlan(report, purge.Options{
		Mode:         mode,
		Threshold:    threshold,
		IncludeGlobs: c.StringSlice("include-glob"),
		ExcludeGlobs: exclude,
		Root:         root,
	})
	if err != nil {
		return err
	}
	for _, m := range plan.Missing {
		logger.Warn("selected file not found, skipping", "path", m)
	}

	w := formatter.Writer()
	if !c.Bool("apply") {
		if formatter.Format().Structured() {
			return formatter.Output(planOutput{Files: plan.Files, Missing: plan.Missing})
		}
		purge.WritePlan(w, plan)
		if !plan.Empty() {
			formatter.Info("Dry run only. Re-run with --apply to delete.")
		}
		return nil
	}

	if plan.Empty() {
		formatter.Info("Nothing to delete.")
		return nil
	}
	purge.WritePlan(w, plan)
	if !c.Bool("yes") && !purge.Confirm(c.App.Reader, w) {
		formatter.Warning("Aborted.")
		return nil
	}

	res, err := purge.Apply(plan, purge.ApplyOptions{
		Branch:        c.String("branch"),
		CommitMessage: c.String("commit-message"),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	for _, f := range res.Failed {
		formatter.Error("could not delete %s: %v", f.Path, f.Err)
	}
	formatter.Success("Deleted %d of %d files.", len(res.Deleted), len(plan.Files))
	if res.Commit != "" {
		formatter.Info("Committed %s", shortHash(res.Commit))
	}
	if res.CommitErr != nil {
		formatter.Error("commit failed: %v", res.CommitErr)
	}

	if !res.OK() || res.CommitErr != nil {
		return fmt.Errorf("%w: %d failures", errPurgeFailed, len(res.Failed))
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
