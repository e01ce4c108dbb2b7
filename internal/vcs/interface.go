// Package vcs provides the version control operations the purge workflow
// needs: branch switching, index removal and committing.
package vcs

import "github.com/go-git/go-git/v5/plumbing/object"

// Repository provides access to git repository operations.
type Repository interface {
	// Root returns the absolute path of the working tree.
	Root() string
	// IsDirty reports staged or modified tracked files. Untracked files
	// do not count.
	IsDirty() (bool, error)
	// CurrentBranch returns the short branch name, or ErrDetachedHead.
	CurrentBranch() (string, error)
	// CheckoutBranch creates name at HEAD, or resets it to HEAD when it
	// exists, and switches to it without touching the working tree.
	CheckoutBranch(name string) error
	// Remove deletes path (relative to Root, slash separated) from the
	// index and the working tree.
	Remove(path string) error
	// Commit records the staged changes. A nil author falls back to the
	// repository's configured user.
	Commit(message string, author *object.Signature) (string, error)
}

// Opener opens git repositories.
type Opener interface {
	// PlainOpen opens an existing git repository.
	PlainOpen(path string) (Repository, error)
	// PlainOpenWithDetect opens a git repository, detecting .git in parent directories.
	PlainOpenWithDetect(path string) (Repository, error)
}

var defaultOpener Opener = NewGitOpener()

// DefaultOpener returns the opener used by the purge workflow.
func DefaultOpener() Opener {
	return defaultOpener
}

// SetDefaultOpener replaces the default opener.
func SetDefaultOpener(o Opener) {
	defaultOpener = o
}
