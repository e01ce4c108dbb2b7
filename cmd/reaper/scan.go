package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/reaper/internal/output"
	"github.com/panbanda/reaper/internal/progress"
	"github.com/panbanda/reaper/internal/service/scan"
	"github.com/panbanda/reaper/pkg/deadcode"
	"github.com/panbanda/reaper/pkg/extractor"
)

// topItems caps the table printed after a text-mode scan.
const topItems = 20

func scanCmd() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Find unreachable symbols and write the dead-code reports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "root",
				Usage: "Project root (default: the config file's directory)",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Report directory (default: output_dir from config)",
			},
			&cli.StringSliceFlag{
				Name:  "entry",
				Usage: "Additional entry file, relative to the root (repeatable)",
			},
			&cli.IntFlag{
				Name:  "threshold",
				Usage: "High-confidence threshold (default: scoring.delete_threshold)",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the fragment cache",
			},
			&cli.BoolFlag{
				Name:  "clear-cache",
				Usage: "Empty the fragment cache before scanning",
			},
		},
		Action: runScanCmd,
	}
}

type scanOutput struct {
	Summary         deadcode.Summary          `json:"summary" toon:"summary"`
	Output          string                    `json:"output" toon:"output"`
	Items           []deadcode.Item           `json:"items" toon:"items"`
	Skipped         []extractor.Skipped       `json:"skipped,omitempty" toon:"skipped,omitempty"`
	MissingSeeds    []string                  `json:"missing_seeds,omitempty" toon:"missing_seeds,omitempty"`
	InvalidPatterns []deadcode.InvalidPattern `json:"invalid_patterns,omitempty" toon:"invalid_patterns,omitempty"`
}

func runScanCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	svc := scan.New(
		scan.WithConfig(cfg),
		scan.WithLogger(newLogger(c)),
		scan.WithRoot(rootDir(c, cfg)),
	)
	formatter := newFormatter(c)

	var tracker *progress.Tracker
	opts := scan.Options{
		ExtraEntries: c.StringSlice("entry"),
		NoCache:      c.Bool("no-cache"),
		ClearCache:   c.Bool("clear-cache"),
		OnFiles: func(n int) {
			if n > 0 && !formatter.Format().Structured() {
				tracker = progress.NewTracker("Extracting symbols...", n)
			}
		},
		OnProgress: func() { tracker.Tick() },
	}

	if c.IsSet("threshold") {
		threshold := c.Int("threshold")
		opts.Threshold = &threshold
	}

	res, err := svc.Run(c.Context, opts)
	if err != nil {
		tracker.FinishError(err)
		return err
	}
	tracker.FinishSuccess()

	outDir := svc.OutputDir(c.String("out"))
	if err := deadcode.WriteReports(outDir, res.Report); err != nil {
		return err
	}

	r := res.Report
	if formatter.Format().Structured() {
		return formatter.Output(scanOutput{
			Summary:         r.Summary,
			Output:          outDir,
			Items:           r.Items,
			Skipped:         res.Diagnostics.Skipped,
			MissingSeeds:    res.Reachable.Missing(),
			InvalidPatterns: r.InvalidPatterns,
		})
	}

	summary := fmt.Sprintf("Code Reaper finished.\n\nScanned %d files.\n  %d symbols\n  %d dead (%d high-confidence).\nOutput -> %s",
		r.Summary.ScannedFiles, r.Summary.SymbolsTotal, r.Summary.DeadSymbols, r.Summary.HighConfidence, outDir)
	if formatter.Format() == output.FormatMarkdown {
		if err := formatter.Output(&output.Section{Title: "Code Reaper", Content: summary}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer(), summary)
	}

	if len(r.Items) > 0 {
		fmt.Fprintln(formatter.Writer())
		if err := formatter.Output(itemTable(r, formatter.Colored())); err != nil {
			return err
		}
	}

	for _, sk := range res.Diagnostics.Skipped {
		formatter.Warning("skipped %s (%s): %s", sk.Path, sk.Stage, sk.Message)
	}
	for _, ip := range r.InvalidPatterns {
		formatter.Warning("keep pattern %q never matches: %s", ip.Pattern, ip.Error)
	}
	return nil
}

func itemTable(r *deadcode.Report, colored bool) *output.Table {
	items := r.Items
	var footer []string
	if len(items) > topItems {
		footer = []string{"", "", fmt.Sprintf("%d more", len(items)-topItems), "", ""}
		items = items[:topItems]
	}

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		score := strconv.Itoa(it.Confidence)
		if colored {
			score = output.ConfidenceColor(it.Confidence, r.Threshold, score)
		}
		rows = append(rows, []string{
			score,
			string(it.Kind),
			truncate(it.Symbol, 60),
			it.File,
			it.Lines,
		})
	}
	return output.NewTable("Dead symbols", []string{"Score", "Kind", "Symbol", "File", "Lines"}, rows, footer, items)
}
