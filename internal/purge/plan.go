package purge

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/panbanda/reaper/pkg/deadcode"
)

// Mode decides how the scores of a file's dead symbols combine.
type Mode string

const (
	// ModeAll selects a file when every dead symbol in it reaches the threshold.
	ModeAll Mode = "all"
	// ModeAny selects a file when at least one dead symbol reaches the threshold.
	ModeAny Mode = "any"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeAll, "":
		return ModeAll, nil
	case ModeAny:
		return ModeAny, nil
	default:
		return "", fmt.Errorf("mode must be %q or %q, got %q", ModeAll, ModeAny, s)
	}
}

// DryRunLimit caps the number of files WritePlan lists.
const DryRunLimit = 50

// Options select the files of a plan.
type Options struct {
	Mode      Mode
	Threshold int
	// IncludeGlobs, when set, restrict candidates to matching paths.
	IncludeGlobs []string
	// ExcludeGlobs remove matching paths.
	ExcludeGlobs []string
	// Root is the directory report paths are relative to.
	Root string
}

// Plan is the set of files a purge would delete.
type Plan struct {
	Root string
	// Files are report-relative paths that exist under Root, sorted.
	Files []string
	// Missing are selected paths with no file under Root, including paths
	// that resolve outside it.
	Missing []string
}

// normPath converts backslashes so Windows-style report paths match globs.
func normPath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// Select groups report items by file and returns the sorted files that
// satisfy the mode and the globs.
func Select(report *deadcode.Report, opts Options) ([]string, error) {
	scores := make(map[string][]int)
	for _, it := range report.Items {
		file := normPath(it.File)
		if file == "" {
			continue
		}
		scores[file] = append(scores[file], it.Confidence)
	}

	files := make([]string, 0, len(scores))
	for file, s := range scores {
		if !qualifies(opts.Mode, s, opts.Threshold) {
			continue
		}
		if len(opts.IncludeGlobs) > 0 {
			ok, err := matchesAny(file, opts.IncludeGlobs)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		excluded, err := matchesAny(file, opts.ExcludeGlobs)
		if err != nil {
			return nil, err
		}
		if excluded {
			continue
		}
		files = append(files, file)
	}
	sort.Strings(files)
	return files, nil
}

func qualifies(mode Mode, scores []int, threshold int) bool {
	if len(scores) == 0 {
		return false
	}
	if mode == ModeAny {
		for _, s := range scores {
			if s >= threshold {
				return true
			}
		}
		return false
	}
	lowest := scores[0]
	for _, s := range scores[1:] {
		if s < lowest {
			lowest = s
		}
	}
	return lowest >= threshold
}

func matchesAny(file string, globs []string) (bool, error) {
	for _, g := range globs {
		ok, err := doublestar.Match(normPath(g), file)
		if err != nil {
			return false, fmt.Errorf("invalid glob %q: %w", g, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// NewPlan selects files and keeps those that exist under opts.Root.
func NewPlan(report *deadcode.Report, opts Options) (*Plan, error) {
	files, err := Select(report, opts)
	if err != nil {
		return nil, err
	}

	root := opts.Root
	if root == "" {
		root = "."
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	p := &Plan{Root: root}
	for _, rel := range files {
		if !withinRoot(rel) {
			p.Missing = append(p.Missing, rel)
			continue
		}
		if info, err := os.Stat(p.abs(rel)); err != nil || info.IsDir() {
			p.Missing = append(p.Missing, rel)
			continue
		}
		p.Files = append(p.Files, rel)
	}
	return p, nil
}

// Empty reports whether nothing qualifies for deletion.
func (p *Plan) Empty() bool {
	return len(p.Files) == 0
}

// rootRelative cleans a report path. A leading slash means the root.
func rootRelative(rel string) string {
	return filepath.FromSlash(strings.TrimPrefix(path.Clean(rel), "/"))
}

// withinRoot reports whether rel names a path inside the root.
func withinRoot(rel string) bool {
	return filepath.IsLocal(rootRelative(rel))
}

// abs returns the absolute path of a plan file.
func (p *Plan) abs(rel string) string {
	return filepath.Join(p.Root, rootRelative(rel))
}

// WritePlan prints the dry-run listing, at most DryRunLimit files.
func WritePlan(w io.Writer, p *Plan) {
	fmt.Fprintf(w, "Dry-run plan: delete %d files\n", len(p.Files))
	for i, rel := range p.Files {
		if i >= DryRunLimit {
			fmt.Fprintln(w, " ...")
			break
		}
		fmt.Fprintf(w, " - %s\n", rel)
	}
}
