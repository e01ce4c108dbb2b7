// Package scan runs the dead-code pipeline for a configured project:
// file resolution, extraction, seeding, reachability and classification.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/panbanda/reaper/internal/cache"
	"github.com/panbanda/reaper/internal/scanner"
	"github.com/panbanda/reaper/pkg/config"
	"github.com/panbanda/reaper/pkg/deadcode"
	"github.com/panbanda/reaper/pkg/extractor"
	"github.com/panbanda/reaper/pkg/graph"
	"github.com/panbanda/reaper/pkg/reachability"
)

// Service orchestrates a scan.
type Service struct {
	config *config.Config
	logger *slog.Logger
	root   string
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithRoot sets the project root. Defaults to the config's BaseDir.
func WithRoot(dir string) Option {
	return func(s *Service) {
		s.root = dir
	}
}

// New creates a new scan service.
func New(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	if s.config == nil {
		s.config = config.DefaultConfig()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.root == "" {
		s.root = s.config.BaseDir()
	}
	return s
}

// Root returns the project root the service resolves paths against.
func (s *Service) Root() string {
	return s.root
}

// Options adjust a single run.
type Options struct {
	// ExtraEntries are appended to entry_points.files.
	ExtraEntries []string
	// Threshold, when non-nil, overrides scoring.delete_threshold.
	Threshold *int
	// NoCache disables the fragment cache for this run.
	NoCache bool
	// ClearCache empties the fragment cache before extracting.
	ClearCache bool
	// Strategy selects the reachability traversal order.
	Strategy   reachability.Strategy
	OnProgress func()
	// OnFiles is called with the file count before extraction starts.
	OnFiles func(n int)
}

// Result holds every artifact of a run.
type Result struct {
	Root         string
	Files        []string
	MissingRoots []string
	Graph        *graph.Graph
	Diagnostics  *extractor.Diagnostics
	Seeds        []string
	// SeedFallback is set when seeds came from the entry directories
	// because the entry files declared nothing.
	SeedFallback bool
	Reachable    *reachability.Set
	Report       *deadcode.Report
}

// Resolve lists the PHP files selected by the paths configuration.
func (s *Service) Resolve() (*scanner.Result, error) {
	res, err := scanner.NewScanner(s.config.Paths).Resolve(s.root)
	if err != nil {
		return nil, fmt.Errorf("resolving files under %s: %w", s.root, err)
	}
	for _, missing := range res.MissingRoots {
		s.logger.Warn("include root not found", "root", missing)
	}
	return res, nil
}

// Run executes the whole pipeline. An error is returned for resolution
// failures, bad analysis settings and cancellation.
func (s *Service) Run(ctx context.Context, opts Options) (*Result, error) {
	resolved, err := s.Resolve()
	if err != nil {
		return nil, err
	}
	s.logger.Debug("resolved files", "root", s.root, "count", len(resolved.Files))
	if opts.OnFiles != nil {
		opts.OnFiles(len(resolved.Files))
	}

	ex, fragments, err := s.newExtractor(opts)
	if err != nil {
		return nil, err
	}

	g, diags, err := ex.Extract(ctx, resolved.Files)
	if err != nil {
		return nil, err
	}
	for _, sk := range diags.Skipped {
		s.logger.Warn("file skipped", "path", sk.Path, "stage", string(sk.Stage), "error", sk.Message)
	}
	if diags.Len() > 0 {
		s.logger.Info("extraction finished with skipped files", "skipped", diags.Len(), "by_stage", diags.ByStage())
	}
	s.logger.Debug("graph built", "symbols", g.Len(), "edges", g.EdgeCount())
	if fragments.Enabled() {
		if stats, err := fragments.GetStats(); err == nil {
			s.logger.Debug("fragment cache", "dir", fragments.Dir(), "entries", stats.Entries, "bytes", stats.TotalSize)
		}
	}

	entries := s.entryFiles(opts.ExtraEntries)
	seeds, fallback := Seeds(g, entries, s.config.EntryPoints.Symbols)
	if fallback {
		s.logger.Info("entry files declare no symbols, seeding from entry directories", "seeds", len(seeds))
	}

	reachable := reachability.MarkFrom(g, seeds, reachability.WithStrategy(opts.Strategy))
	if missing := reachable.Missing(); len(missing) > 0 {
		s.logger.Warn("entry symbols not found in graph", "symbols", missing)
	}

	threshold := s.config.Scoring.DeleteThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	classifier := deadcode.New(
		deadcode.WithThreshold(threshold),
		deadcode.WithKeepPatterns(s.config.Rules.KeepPatterns),
	)
	for _, ip := range classifier.InvalidPatterns() {
		s.logger.Warn("invalid keep pattern never matches", "pattern", ip.Pattern, "error", ip.Error)
	}
	report := classifier.Classify(g, reachable)

	return &Result{
		Root:         s.root,
		Files:        resolved.Files,
		MissingRoots: resolved.MissingRoots,
		Graph:        g,
		Diagnostics:  diags,
		Seeds:        seeds,
		SeedFallback: fallback,
		Reachable:    reachable,
		Report:       report,
	}, nil
}

// newExtractor builds the extractor from the analysis settings. The
// returned cache is nil when caching is off.
func (s *Service) newExtractor(opts Options) (*extractor.Extractor, *cache.Cache, error) {
	attribution, err := extractor.ParseAttribution(s.config.Analysis.Attribution)
	if err != nil {
		return nil, nil, err
	}
	resolution, err := extractor.ParseResolution(s.config.Analysis.Resolution)
	if err != nil {
		return nil, nil, err
	}

	exOpts := []extractor.Option{
		extractor.WithAttribution(attribution),
		extractor.WithResolution(resolution),
		extractor.WithWorkers(s.config.Analysis.Workers),
		extractor.WithMaxFileSize(s.config.Analysis.MaxFileSize),
		extractor.WithRoot(s.root),
		extractor.WithProgress(opts.OnProgress),
	}

	var fragments *cache.Cache
	if s.config.Cache.Enabled && !opts.NoCache {
		dir := s.CacheDir()
		c, err := cache.New(dir, s.config.Cache.TTL, true)
		if err != nil {
			s.logger.Warn("cache disabled", "dir", dir, "error", err)
		} else {
			if opts.ClearCache {
				if err := c.Clear(); err != nil {
					return nil, nil, fmt.Errorf("clearing cache %s: %w", dir, err)
				}
				s.logger.Info("fragment cache cleared", "dir", dir)
			}
			fragments = c
			exOpts = append(exOpts, extractor.WithCache(c))
		}
	}
	return extractor.New(exOpts...), fragments, nil
}

// CacheDir resolves cache.dir against the root.
func (s *Service) CacheDir() string {
	dir := s.config.Cache.Dir
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(s.root, dir)
}

// entryFiles merges entry_points.files with extra, rebasing absolute paths
// onto the root. Absolute entries outside the root are dropped.
func (s *Service) entryFiles(extra []string) []string {
	all := append(append([]string{}, s.config.EntryPoints.Files...), extra...)
	entries := make([]string, 0, len(all))
	for _, f := range all {
		rel, ok := rebaseEntry(s.root, f)
		if !ok {
			s.logger.Warn("entry file outside the project root, ignored", "entry", f, "root", s.root)
			continue
		}
		entries = append(entries, rel)
	}
	return entries
}

// rebaseEntry makes an absolute entry path relative to root. Relative
// entries are returned unchanged. Symlinks in either path are resolved
// before giving up on an entry that appears to lie outside root.
func rebaseEntry(root, entry string) (string, bool) {
	entry = strings.TrimSpace(entry)
	if entry == "" || !filepath.IsAbs(entry) {
		return entry, true
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	if rel, ok := relWithin(absRoot, entry); ok {
		return rel, true
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", false
	}
	realEntry, err := filepath.EvalSymlinks(entry)
	if err != nil {
		return "", false
	}
	return relWithin(realRoot, realEntry)
}

func relWithin(root, p string) (string, bool) {
	rel, err := filepath.Rel(root, p)
	if err != nil || !filepath.IsLocal(rel) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// OutputDir resolves dir (or output_dir when empty) against the root.
func (s *Service) OutputDir(dir string) string {
	if dir == "" {
		dir = s.config.OutputDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(s.root, dir)
}

// normEntry converts an entry path to the slash-separated form the graph
// records. Leading "./" is dropped.
func normEntry(p string) string {
	p = path.Clean(strings.ReplaceAll(p, `\`, "/"))
	return strings.TrimPrefix(p, "./")
}

// Seeds returns the ids declared in entry files plus the explicit seed
// symbols. When that is empty and entry files were named, it falls back to
// every symbol declared below an entry file's directory. The bool reports
// the fallback. Seeds are sorted and unique.
func Seeds(g *graph.Graph, entryFiles, symbols []string) ([]string, bool) {
	entrySet := make(map[string]struct{}, len(entryFiles))
	for _, f := range entryFiles {
		if strings.TrimSpace(f) == "" {
			continue
		}
		entrySet[normEntry(f)] = struct{}{}
	}

	set := make(map[string]struct{})
	nodes := g.Nodes()
	for _, sym := range nodes {
		if _, ok := entrySet[normEntry(sym.File)]; ok {
			set[sym.ID] = struct{}{}
		}
	}
	for _, id := range symbols {
		id = strings.TrimPrefix(strings.TrimSpace(id), `\`)
		if id != "" {
			set[id] = struct{}{}
		}
	}

	fallback := false
	if len(set) == 0 && len(entrySet) > 0 {
		fallback = true
		dirs := make([]string, 0, len(entrySet))
		for f := range entrySet {
			dirs = append(dirs, path.Dir(f))
		}
		for _, sym := range nodes {
			file := normEntry(sym.File)
			for _, dir := range dirs {
				if dir == "." || strings.HasPrefix(file, dir+"/") {
					set[sym.ID] = struct{}{}
					break
				}
			}
		}
	}

	seeds := make([]string, 0, len(set))
	for id := range set {
		seeds = append(seeds, id)
	}
	sort.Strings(seeds)
	return seeds, fallback
}
