package vcs

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrDirtyWorkingDir is returned when the working directory has uncommitted changes.
var ErrDirtyWorkingDir = errors.New("working directory has uncommitted changes")

// ErrDetachedHead is returned when the repository is in detached HEAD state.
var ErrDetachedHead = errors.New("repository is in detached HEAD state; checkout a branch first")

// IsDirty returns true if there are uncommitted changes in the working directory.
// Untracked files are not considered dirty.
func (r *gitRepository) IsDirty() (bool, error) {
	status, err := r.wt.Status()
	if err != nil {
		return false, err
	}

	for _, s := range status {
		// Skip untracked files
		if s.Staging == git.Untracked && s.Worktree == git.Untracked {
			continue
		}
		// Any staged or modified file means dirty
		if s.Staging != git.Unmodified || s.Worktree != git.Unmodified {
			return true, nil
		}
	}

	return false, nil
}

// CurrentBranch returns the current branch name.
func (r *gitRepository) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", err
	}
	if !head.Name().IsBranch() {
		return "", ErrDetachedHead
	}
	return head.Name().Short(), nil
}

// CheckoutBranch points name at HEAD and switches to it. Since the branch
// and HEAD name the same commit, the working tree and index stay as they are.
func (r *gitRepository) CheckoutBranch(name string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("resolving HEAD: %w", err)
	}

	branchRef := plumbing.NewBranchReferenceName(name)
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(branchRef, head.Hash())); err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}

	if err := r.wt.Checkout(&git.CheckoutOptions{
		Branch: branchRef,
		Keep:   true,
	}); err != nil {
		return fmt.Errorf("checkout %s: %w", name, err)
	}
	return nil
}
