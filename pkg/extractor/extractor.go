// Package extractor turns PHP source files into a symbol graph.
//
// Each file is parsed with tree-sitter into a Fragment holding the declared
// functions, classes and methods plus the raw references (calls, static
// calls, instantiations) found in the file. Fragments are produced in
// parallel and merged in input order, after which references are resolved
// against the complete set of declared symbols.
package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/panbanda/reaper/internal/cache"
	"github.com/panbanda/reaper/internal/fileproc"
	"github.com/panbanda/reaper/pkg/graph"
	"github.com/panbanda/reaper/pkg/parser"
)

// Attribution decides which symbols become the source of a reference's edges.
type Attribution int

const (
	// FileScoped treats every symbol declared in a file as a caller of every
	// reference in that file.
	FileScoped Attribution = iota
	// ScopeAccurate attributes a reference to its innermost enclosing
	// declaration. References outside any declaration produce no edge.
	ScopeAccurate
)

// String implements fmt.Stringer.
func (a Attribution) String() string {
	if a == ScopeAccurate {
		return "scope"
	}
	return "file"
}

// ParseAttribution parses "file" or "scope". The empty string is FileScoped.
func ParseAttribution(s string) (Attribution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "file", "file-scoped":
		return FileScoped, nil
	case "scope", "scope-accurate":
		return ScopeAccurate, nil
	default:
		return FileScoped, fmt.Errorf("unknown attribution policy %q (want file or scope)", s)
	}
}

// Extractor builds symbol graphs from source files.
type Extractor struct {
	attribution Attribution
	resolution  Resolution
	workers     int
	maxFileSize int64
	root        string
	cache       *cache.Cache
	onProgress  fileproc.ProgressFunc
}

// Option is a functional option for configuring Extractor.
type Option func(*Extractor)

// WithAttribution sets the caller attribution policy.
func WithAttribution(a Attribution) Option {
	return func(e *Extractor) {
		e.attribution = a
	}
}

// WithResolution sets how ambiguous method references are linked.
func WithResolution(r Resolution) Option {
	return func(e *Extractor) {
		e.resolution = r
	}
}

// WithWorkers sets the number of files parsed concurrently (0 = 2x NumCPU).
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		e.workers = n
	}
}

// WithMaxFileSize sets the maximum file size to parse (0 = no limit).
func WithMaxFileSize(maxSize int64) Option {
	return func(e *Extractor) {
		e.maxFileSize = maxSize
	}
}

// WithRoot resolves relative file paths against dir when reading. Symbols
// still record the path exactly as passed to Extract.
func WithRoot(dir string) Option {
	return func(e *Extractor) {
		e.root = dir
	}
}

// WithCache reuses fragments of files whose content is unchanged.
func WithCache(c *cache.Cache) Option {
	return func(e *Extractor) {
		e.cache = c
	}
}

// WithProgress registers a callback invoked once per processed file.
func WithProgress(fn func()) Option {
	return func(e *Extractor) {
		e.onProgress = fn
	}
}

// New creates a new extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		attribution: FileScoped,
		resolution:  Permissive,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses files and merges them into a frozen graph. Files that
// cannot be read or parsed are skipped and reported in the Diagnostics.
// A non-nil error is returned only when ctx was cancelled; the graph and
// diagnostics then cover the files processed before cancellation.
func (e *Extractor) Extract(ctx context.Context, files []string) (*graph.Graph, *Diagnostics, error) {
	frags, errs := fileproc.MapFiles(ctx, files, e.workers, e.extractFile, e.onProgress)

	diags := &Diagnostics{}
	if errs.HasErrors() {
		for _, pe := range errs.Errors {
			diags.add(pe.Path, stageOf(pe.Err), pe.Err)
		}
	}
	// Entries written for an earlier, readable version of a skipped file
	// can never hit again.
	for _, path := range diags.Paths() {
		_ = e.cache.Invalidate(e.fullPath(path))
	}

	g := e.Build(frags)
	if err := ctx.Err(); err != nil {
		return g, diags, fmt.Errorf("extraction cancelled: %w", err)
	}
	return g, diags, nil
}

// ExtractSource extracts a single in-memory source unit.
func (e *Extractor) ExtractSource(path string, source []byte) (*Fragment, error) {
	psr := parser.New()
	defer psr.Close()
	return extractFragment(psr, path, source)
}

// fullPath joins a root-relative path onto the root. It is also the cache key.
func (e *Extractor) fullPath(path string) string {
	if e.root != "" && !filepath.IsAbs(path) {
		return filepath.Join(e.root, filepath.FromSlash(path))
	}
	return path
}

func (e *Extractor) extractFile(psr *parser.Parser, path string) (*Fragment, error) {
	full := e.fullPath(path)

	if e.maxFileSize > 0 {
		info, err := os.Stat(full)
		if err != nil {
			return nil, failAt(StageRead, err)
		}
		if info.Size() > e.maxFileSize {
			return nil, failAt(StageSize, fmt.Errorf("%w: %d bytes (limit: %d)", ErrTooLarge, info.Size(), e.maxFileSize))
		}
	}

	source, err := os.ReadFile(full)
	if err != nil {
		return nil, failAt(StageRead, err)
	}

	var hash string
	if e.cache.Enabled() {
		hash = cache.HashBytes(source)
		var cached Fragment
		if e.cache.GetWithHash(full, hash, &cached) {
			cached.Path = path
			return &cached, nil
		}
	}

	frag, err := extractFragment(psr, path, source)
	if err != nil {
		return nil, err
	}

	if e.cache.Enabled() {
		// A failed write only costs a re-parse next time.
		_ = e.cache.SetWithHash(full, hash, frag)
	}
	return frag, nil
}

// Build merges fragments into a frozen graph. Nodes are registered in
// fragment order, so a symbol declared twice keeps the metadata of the
// later fragment. References are resolved once every node is known.
// Nil fragments are ignored.
func (e *Extractor) Build(frags []*Fragment) *graph.Graph {
	b := graph.NewBuilder()
	for _, f := range frags {
		if f == nil {
			continue
		}
		for _, s := range f.Symbols {
			b.AddNode(s.ID, s.Kind, f.Path, s.Lines)
		}
	}

	ix := newSymbolIndex(frags)
	for _, f := range frags {
		if f == nil {
			continue
		}

		var declared []string
		if e.attribution == FileScoped {
			declared = declaredIDs(f)
			if len(declared) == 0 {
				continue
			}
		}

		for _, raw := range f.References {
			ref := ix.resolve(raw)
			if ref == nil {
				continue
			}

			callers := declared
			if e.attribution == ScopeAccurate {
				if raw.Caller == "" {
					continue
				}
				callers = []string{raw.Caller}
			}

			for _, to := range ref.Targets(e.resolution) {
				for _, from := range callers {
					b.AddEdge(from, to)
				}
			}
		}
	}

	return b.Freeze()
}

func declaredIDs(f *Fragment) []string {
	seen := make(map[string]struct{}, len(f.Symbols))
	ids := make([]string, 0, len(f.Symbols))
	for _, s := range f.Symbols {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		ids = append(ids, s.ID)
	}
	return ids
}
