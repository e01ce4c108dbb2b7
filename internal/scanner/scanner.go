// Package scanner resolves the PHP files of a project from include roots
// and gitignore-style exclude patterns.
package scanner

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/panbanda/reaper/pkg/config"
	"github.com/panbanda/reaper/pkg/parser"
)

// Scanner finds source files below a base directory.
type Scanner struct {
	paths config.PathsConfig

	exclude   gitignore.Matcher
	gitignore gitignore.Matcher
	gitRoot   string
}

// Result lists the resolved files, relative to the base directory with
// forward slashes, sorted and unique.
type Result struct {
	Files []string
	// MissingRoots are include entries that matched nothing on disk.
	MissingRoots []string
}

// NewScanner creates a new file scanner.
func NewScanner(paths config.PathsConfig) *Scanner {
	return &Scanner{paths: paths}
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns parses the configured excludes (relative to the base
// directory) and, when enabled, every .gitignore of the enclosing repository.
func (s *Scanner) loadExcludePatterns(base string) {
	var patterns []gitignore.Pattern
	for _, p := range s.paths.Exclude {
		p = strings.TrimSpace(filepath.ToSlash(p))
		if p == "" {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	if len(patterns) > 0 {
		s.exclude = gitignore.NewMatcher(patterns)
	}

	if !s.paths.Gitignore {
		return
	}
	s.gitRoot = findGitRoot(base)
	if s.gitRoot == "" {
		return
	}
	if gitPatterns, err := gitignore.ReadPatterns(osfs.New(s.gitRoot), nil); err == nil && len(gitPatterns) > 0 {
		s.gitignore = gitignore.NewMatcher(gitPatterns)
	}
}

// isExcluded checks a path given relative to base (slash separated).
func (s *Scanner) isExcluded(base, rel string, isDir bool) bool {
	if s.exclude != nil && s.exclude.Match(strings.Split(rel, "/"), isDir) {
		return true
	}
	if s.gitignore != nil {
		fromGit, err := filepath.Rel(s.gitRoot, filepath.Join(base, filepath.FromSlash(rel)))
		if err == nil && !strings.HasPrefix(fromGit, "..") {
			if s.gitignore.Match(strings.Split(filepath.ToSlash(fromGit), "/"), isDir) {
				return true
			}
		}
	}
	return false
}

// includeRoot normalises an include entry: "src/**", "src/" and "src" all
// name the src directory.
func includeRoot(entry string) string {
	entry = filepath.ToSlash(strings.TrimSpace(entry))
	entry = strings.TrimSuffix(entry, "/**")
	entry = strings.TrimRight(entry, "/")
	return entry
}

// Resolve walks every include root below base and returns the PHP files
// that survive the exclude patterns.
func (s *Scanner) Resolve(base string) (*Result, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	// Resolve any symlinks in the root path
	absBase, err = filepath.EvalSymlinks(absBase)
	if err != nil {
		return nil, err
	}

	s.loadExcludePatterns(absBase)

	seen := make(map[string]struct{})
	res := &Result{Files: make([]string, 0, 256)}
	add := func(rel string) {
		if _, ok := seen[rel]; ok {
			return
		}
		seen[rel] = struct{}{}
		res.Files = append(res.Files, rel)
	}

	for _, entry := range s.paths.Include {
		root := includeRoot(entry)
		if root == "" {
			continue
		}
		abs := filepath.FromSlash(root)
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(absBase, abs)
		}

		info, err := os.Stat(abs)
		if err != nil {
			res.MissingRoots = append(res.MissingRoots, entry)
			continue
		}

		if !info.IsDir() {
			rel, ok := relTo(absBase, abs)
			if ok && parser.DetectLanguage(abs) == parser.LangPHP && !s.isExcluded(absBase, rel, false) {
				add(rel)
			}
			continue
		}

		if err := s.walk(absBase, abs, add); err != nil {
			return nil, err
		}
	}

	sort.Strings(res.Files)
	return res, nil
}

// walk collects PHP files under dir. Symlinks that escape base are skipped.
func (s *Scanner) walk(base, dir string, add func(string)) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		rel, ok := relTo(base, p)
		if !ok {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// Security: validate path stays within root (prevent symlink traversal)
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(p)
			if err != nil || !isWithinRoot(resolved, base) {
				return nil
			}
		}

		if d.IsDir() {
			if d.Name() == ".git" || (rel != "." && s.isExcluded(base, rel, true)) {
				return filepath.SkipDir
			}
			return nil
		}

		if parser.DetectLanguage(p) != parser.LangPHP {
			return nil
		}
		if s.isExcluded(base, rel, false) {
			return nil
		}
		add(rel)
		return nil
	})
}

// relTo returns p relative to base in slash form, false when p lies outside base.
func relTo(base, p string) (string, bool) {
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return path.Clean(rel), true
}

// isWithinRoot checks if a path is contained within the root directory.
// Returns false if the path escapes via symlinks or relative paths.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	if !strings.HasPrefix(absPath, root+string(filepath.Separator)) && absPath != root {
		return false
	}

	return true
}
