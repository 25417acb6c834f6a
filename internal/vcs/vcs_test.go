package vcs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func initTestRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	repoPath := t.TempDir()
	repo, err := git.PlainInit(repoPath, false)
	if err != nil {
		t.Fatalf("Failed to init repo: %v", err)
	}
	return repoPath, repo
}

func commitFile(t *testing.T, repo *git.Repository, repoPath, name, content string) {
	t.Helper()
	path := filepath.Join(repoPath, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	w, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Add(name); err != nil {
		t.Fatal(err)
	}
	_, err = w.Commit("commit "+name, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestIsDirty_CleanRepo(t *testing.T) {
	repoPath, repo := initTestRepo(t)
	commitFile(t, repo, repoPath, "deploy.sh", "echo hi\n")

	dirty, err := IsDirty(repoPath)
	if err != nil {
		t.Fatalf("IsDirty() error: %v", err)
	}
	if dirty {
		t.Error("IsDirty() = true for clean repo")
	}
}

func TestIsDirty_ModifiedFile(t *testing.T) {
	repoPath, repo := initTestRepo(t)
	commitFile(t, repo, repoPath, "deploy.sh", "echo hi\n")

	if err := os.WriteFile(filepath.Join(repoPath, "deploy.sh"), []byte("echo changed\n"), 0644); err != nil {
		t.Fatal(err)
	}

	dirty, err := IsDirty(repoPath)
	if err != nil {
		t.Fatalf("IsDirty() error: %v", err)
	}
	if !dirty {
		t.Error("IsDirty() = false for modified tracked file")
	}
}

func TestIsDirty_UntrackedFilesIgnored(t *testing.T) {
	repoPath, repo := initTestRepo(t)
	commitFile(t, repo, repoPath, "deploy.sh", "echo hi\n")

	if err := os.WriteFile(filepath.Join(repoPath, "scratch.py"), []byte("x = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	dirty, err := IsDirty(repoPath)
	if err != nil {
		t.Fatalf("IsDirty() error: %v", err)
	}
	if dirty {
		t.Error("IsDirty() = true for repo with only untracked files")
	}
}

func TestIsDirty_NotARepo(t *testing.T) {
	_, err := IsDirty(t.TempDir())
	if err == nil {
		t.Error("IsDirty() should return error outside a repository")
	}
}

func TestDirtyPaths(t *testing.T) {
	repoPath, repo := initTestRepo(t)
	commitFile(t, repo, repoPath, "a.sh", "echo a\n")
	commitFile(t, repo, repoPath, "b.sh", "echo b\n")

	if err := os.WriteFile(filepath.Join(repoPath, "a.sh"), []byte("echo modified\n"), 0644); err != nil {
		t.Fatal(err)
	}

	dirty, err := DirtyPaths(repoPath)
	if err != nil {
		t.Fatalf("DirtyPaths() error: %v", err)
	}

	if !dirty["a.sh"] {
		t.Error("DirtyPaths() should include modified a.sh")
	}
	if dirty["b.sh"] {
		t.Error("DirtyPaths() should not include unmodified b.sh")
	}
}

func TestDirtyChecker(t *testing.T) {
	repoPath, repo := initTestRepo(t)
	commitFile(t, repo, repoPath, "a.sh", "echo a\n")
	commitFile(t, repo, repoPath, "sub/b.py", "x = 1\n")

	if err := os.WriteFile(filepath.Join(repoPath, "sub", "b.py"), []byte("x = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	checker, err := NewDirtyChecker(repoPath)
	if err != nil {
		t.Fatalf("NewDirtyChecker() error: %v", err)
	}

	if checker.Check(filepath.Join(repoPath, "a.sh")) {
		t.Error("Check(a.sh) = true for clean file")
	}
	if !checker.Check(filepath.Join(repoPath, "sub", "b.py")) {
		t.Error("Check(sub/b.py) = false for modified file")
	}
	// A path outside the repository reports clean.
	if checker.Check("/nonexistent/elsewhere.py") {
		t.Error("Check() outside repo should report clean")
	}
}

func TestDirtyChecker_FromSubdirectory(t *testing.T) {
	repoPath, repo := initTestRepo(t)
	commitFile(t, repo, repoPath, "sub/b.py", "x = 1\n")

	if err := os.WriteFile(filepath.Join(repoPath, "sub", "b.py"), []byte("x = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// Discovery walks upward from the subdirectory.
	checker, err := NewDirtyChecker(filepath.Join(repoPath, "sub"))
	if err != nil {
		t.Fatalf("NewDirtyChecker() error: %v", err)
	}

	if !checker.Check(filepath.Join(repoPath, "sub", "b.py")) {
		t.Error("Check(sub/b.py) = false for modified file")
	}
}

func TestGetCurrentRef_Branch(t *testing.T) {
	repoPath, repo := initTestRepo(t)
	commitFile(t, repo, repoPath, "a.sh", "echo a\n")

	ref, err := GetCurrentRef(repoPath)
	if err != nil {
		t.Fatalf("GetCurrentRef() error: %v", err)
	}
	// go-git default branch is master
	if ref == "" {
		t.Error("GetCurrentRef() returned empty ref")
	}
	if len(ref) == 40 {
		t.Errorf("GetCurrentRef() = %q, want a branch name not a SHA", ref)
	}
}

func TestGetCurrentRef_DetachedHead(t *testing.T) {
	repoPath, repo := initTestRepo(t)
	commitFile(t, repo, repoPath, "a.sh", "echo a\n")

	head, err := repo.Head()
	if err != nil {
		t.Fatal(err)
	}
	w, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Checkout(&git.CheckoutOptions{Hash: head.Hash()}); err != nil {
		t.Fatal(err)
	}

	ref, err := GetCurrentRef(repoPath)
	if err != nil {
		t.Fatalf("GetCurrentRef() error: %v", err)
	}
	if ref != head.Hash().String() {
		t.Errorf("GetCurrentRef() = %q, want %q", ref, head.Hash().String())
	}
}
