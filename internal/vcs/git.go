package vcs

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DefaultAuthorName and DefaultAuthorEmail sign commits when the repository
// has no user configured.
const (
	DefaultAuthorName  = "reaper"
	DefaultAuthorEmail = "reaper@localhost"
)

// GitOpener opens git repositories using go-git.
type GitOpener struct{}

// NewGitOpener creates a new GitOpener.
func NewGitOpener() *GitOpener {
	return &GitOpener{}
}

// PlainOpen opens an existing git repository.
func (o *GitOpener) PlainOpen(path string) (Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, err
	}
	return newGitRepository(repo)
}

// PlainOpenWithDetect opens a git repository, detecting .git in parent directories.
func (o *GitOpener) PlainOpenWithDetect(path string) (Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, err
	}
	return newGitRepository(repo)
}

// IsRepo reports whether path lies inside a git working tree.
func IsRepo(path string) bool {
	_, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}

// gitRepository wraps go-git Repository.
type gitRepository struct {
	repo *git.Repository
	wt   *git.Worktree
	root string
}

func newGitRepository(repo *git.Repository) (*gitRepository, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(wt.Filesystem.Root())
	if err != nil {
		return nil, err
	}
	return &gitRepository{repo: repo, wt: wt, root: root}, nil
}

func (r *gitRepository) Root() string {
	return r.root
}

func (r *gitRepository) Remove(path string) error {
	if _, err := r.wt.Remove(filepath.ToSlash(path)); err != nil {
		return fmt.Errorf("git rm %s: %w", path, err)
	}
	return nil
}

func (r *gitRepository) Commit(message string, author *object.Signature) (string, error) {
	if author == nil {
		author = r.defaultSignature()
	}
	hash, err := r.wt.Commit(message, &git.CommitOptions{Author: author})
	if err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	return hash.String(), nil
}

// defaultSignature reads user.name and user.email from the merged git
// configuration.
func (r *gitRepository) defaultSignature() *object.Signature {
	sig := &object.Signature{
		Name:  DefaultAuthorName,
		Email: DefaultAuthorEmail,
		When:  time.Now(),
	}
	cfg, err := r.repo.ConfigScoped(config.SystemScope)
	if err != nil {
		return sig
	}
	if cfg.User.Name != "" {
		sig.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		sig.Email = cfg.User.Email
	}
	return sig
}
