package purge

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/panbanda/reaper/internal/vcs"
)

// ApplyOptions control how a plan is carried out.
type ApplyOptions struct {
	// Branch, when set inside a repository, is created or reset to HEAD
	// and checked out before deleting.
	Branch string
	// CommitMessage, when set inside a repository, commits the removals
	// if every one succeeded.
	CommitMessage string
	// Author signs the commit; nil uses the repository's configured user.
	Author *object.Signature
	// Opener opens the repository; nil uses vcs.DefaultOpener.
	Opener vcs.Opener
	Logger *slog.Logger
}

// Failure is a file that could not be deleted.
type Failure struct {
	Path string
	Err  error
}

// Result describes what Apply did.
type Result struct {
	Deleted []string
	Failed  []Failure
	// UsedGit is set when deletions went through the git index.
	UsedGit bool
	// Commit is the hash of the commit created, if any.
	Commit string
	// CommitErr is set when the commit was attempted and failed. The
	// deletions themselves stand.
	CommitErr error
}

// OK reports whether every planned file was deleted.
func (r *Result) OK() bool {
	return len(r.Failed) == 0
}

// Apply deletes the plan's files. Inside a git working tree the files are
// removed through the index; elsewhere they are removed from disk. An error
// is returned only when the branch switch fails; per-file failures are in
// the result.
func Apply(p *Plan, opts ApplyOptions) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opener := opts.Opener
	if opener == nil {
		opener = vcs.DefaultOpener()
	}

	res := &Result{}
	repo, err := opener.PlainOpenWithDetect(p.Root)
	if err != nil {
		logger.Debug("not a git repository, deleting from disk", "root", p.Root, "error", err)
		applyFS(p, res)
		return res, nil
	}
	res.UsedGit = true

	if opts.Branch != "" {
		if err := repo.CheckoutBranch(opts.Branch); err != nil {
			return nil, fmt.Errorf("switching to branch %q: %w", opts.Branch, err)
		}
		logger.Info("checked out branch", "branch", opts.Branch)
	}

	for _, rel := range p.Files {
		repoRel, err := filepath.Rel(repo.Root(), p.abs(rel))
		if err != nil || strings.HasPrefix(repoRel, "..") {
			res.Failed = append(res.Failed, Failure{Path: rel, Err: fmt.Errorf("outside repository %s", repo.Root())})
			continue
		}
		if err := repo.Remove(filepath.ToSlash(repoRel)); err != nil {
			logger.Warn("git rm failed", "path", rel, "error", err)
			res.Failed = append(res.Failed, Failure{Path: rel, Err: err})
			continue
		}
		res.Deleted = append(res.Deleted, rel)
	}

	if opts.CommitMessage != "" && res.OK() && len(res.Deleted) > 0 {
		hash, err := repo.Commit(opts.CommitMessage, opts.Author)
		if err != nil {
			logger.Warn("commit failed", "error", err)
			res.CommitErr = err
		} else {
			res.Commit = hash
		}
	}
	return res, nil
}

func applyFS(p *Plan, res *Result) {
	for _, rel := range p.Files {
		if !withinRoot(rel) {
			res.Failed = append(res.Failed, Failure{Path: rel, Err: fmt.Errorf("outside root %s", p.Root)})
			continue
		}
		abs := p.abs(rel)
		err := os.Remove(abs)
		if err != nil && !os.IsNotExist(err) {
			// Read-only files can block removal on some platforms.
			_ = os.Chmod(abs, 0666)
			err = os.Remove(abs)
		}
		if err != nil && !os.IsNotExist(err) {
			res.Failed = append(res.Failed, Failure{Path: rel, Err: err})
			continue
		}
		res.Deleted = append(res.Deleted, rel)
	}
}

// Confirm asks the deletion question on w and reads the answer from r.
// Only "y" and "yes" (any case) confirm.
func Confirm(r io.Reader, w io.Writer) bool {
	fmt.Fprintln(w, "Proceed with deletion? (y/N)")
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
