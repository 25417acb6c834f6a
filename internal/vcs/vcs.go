// Package vcs answers the two questions the write-back path asks of
// git: which files carry uncommitted modifications, and what revision
// is checked out. Repositories are discovered upward from the given
// path, so running inside a subdirectory works.
package vcs

import (
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// IsDirty returns true if there are uncommitted changes in the working
// directory. Untracked files are not considered dirty.
func IsDirty(repoPath string) (bool, error) {
	dirty, err := DirtyPaths(repoPath)
	if err != nil {
		return false, err
	}
	return len(dirty) > 0, nil
}

// DirtyPaths returns the repository-relative slash paths of files with
// staged or unstaged modifications. Untracked files are excluded: a
// file git has never seen is not at risk of losing tracked edits.
func DirtyPaths(repoPath string) (map[string]bool, error) {
	repo, err := openRepo(repoPath)
	if err != nil {
		return nil, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}

	status, err := wt.Status()
	if err != nil {
		return nil, err
	}

	dirty := make(map[string]bool)
	for path, s := range status {
		// Skip untracked files
		if s.Staging == git.Untracked && s.Worktree == git.Untracked {
			continue
		}
		if s.Staging != git.Unmodified || s.Worktree != git.Unmodified {
			dirty[path] = true
		}
	}
	return dirty, nil
}

// DirtyChecker answers per-file dirty lookups from a status snapshot
// taken at construction time.
type DirtyChecker struct {
	root  string
	dirty map[string]bool
}

// NewDirtyChecker snapshots the worktree status of the repository
// enclosing path.
func NewDirtyChecker(path string) (*DirtyChecker, error) {
	repo, err := openRepo(path)
	if err != nil {
		return nil, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}

	status, err := wt.Status()
	if err != nil {
		return nil, err
	}

	dirty := make(map[string]bool)
	for p, s := range status {
		if s.Staging == git.Untracked && s.Worktree == git.Untracked {
			continue
		}
		if s.Staging != git.Unmodified || s.Worktree != git.Unmodified {
			dirty[p] = true
		}
	}

	return &DirtyChecker{
		root:  wt.Filesystem.Root(),
		dirty: dirty,
	}, nil
}

// Check reports whether the file at path had uncommitted modifications
// when the checker was built. Paths outside the repository report
// clean.
func (d *DirtyChecker) Check(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(d.root, abs)
	if err != nil {
		return false
	}
	return d.dirty[filepath.ToSlash(rel)]
}

// GetCurrentRef returns the current branch name or commit SHA (for
// detached HEAD).
func GetCurrentRef(repoPath string) (string, error) {
	repo, err := openRepo(repoPath)
	if err != nil {
		return "", err
	}

	head, err := repo.Head()
	if err != nil {
		return "", err
	}

	// If it's a branch, return the short name
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}

	// Detached HEAD - return the commit SHA
	return head.Hash().String(), nil
}

func openRepo(path string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
}
