package autolink

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLinkCreatesRelativeSymlink(t *testing.T) {
	mainRepo := t.TempDir()
	worktree := t.TempDir()

	if err := os.WriteFile(filepath.Join(mainRepo, ".env"), []byte("SECRET=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	warnings := Link(worktree, mainRepo, []string{".env"}, false)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	dst := filepath.Join(worktree, ".env")
	info, err := os.Lstat(dst)
	if err != nil {
		t.Fatalf("Lstat(%s): %v", dst, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("expected %s to be a symlink", dst)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("reading through symlink: %v", err)
	}
	if string(data) != "SECRET=1\n" {
		t.Errorf("content = %q", data)
	}
}

func TestLinkNeverOverwritesExistingWorktreeFile(t *testing.T) {
	mainRepo := t.TempDir()
	worktree := t.TempDir()

	os.WriteFile(filepath.Join(mainRepo, ".env"), []byte("main\n"), 0o644)
	os.WriteFile(filepath.Join(worktree, ".env"), []byte("worktree-own-copy\n"), 0o644)

	Link(worktree, mainRepo, []string{".env"}, false)

	data, err := os.ReadFile(filepath.Join(worktree, ".env"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "worktree-own-copy\n" {
		t.Errorf("existing worktree file was overwritten: %q", data)
	}
}

func TestLinkCreatesIntermediateDirectories(t *testing.T) {
	mainRepo := t.TempDir()
	worktree := t.TempDir()

	os.MkdirAll(filepath.Join(mainRepo, "config"), 0o755)
	os.WriteFile(filepath.Join(mainRepo, "config", "local.json"), []byte("{}"), 0o644)

	warnings := Link(worktree, mainRepo, []string{"config/local.json"}, false)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	dst := filepath.Join(worktree, "config", "local.json")
	if _, err := os.Lstat(dst); err != nil {
		t.Fatalf("expected symlink at %s: %v", dst, err)
	}
}

func TestLinkSkipsNonGitignoredPathsWhenChecked(t *testing.T) {
	mainRepo := t.TempDir()
	worktree := t.TempDir()

	os.WriteFile(filepath.Join(mainRepo, ".gitignore"), []byte(".env\n"), 0o644)
	os.WriteFile(filepath.Join(mainRepo, ".env"), []byte("secret\n"), 0o644)
	os.WriteFile(filepath.Join(mainRepo, "tracked.txt"), []byte("code\n"), 0o644)

	Link(worktree, mainRepo, []string{".env", "tracked.txt"}, true)

	if _, err := os.Lstat(filepath.Join(worktree, ".env")); err != nil {
		t.Errorf("expected gitignored .env to be linked: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(worktree, "tracked.txt")); err == nil {
		t.Error("expected non-gitignored tracked.txt to be skipped")
	}
}

func TestLinkReportsWarningWithoutAbortingOtherPatterns(t *testing.T) {
	mainRepo := t.TempDir()
	worktree := t.TempDir()

	os.WriteFile(filepath.Join(mainRepo, "a.env"), []byte("a\n"), 0o644)
	// A destination parent that is a regular file, not a directory, forces linkOne to fail for one
	// pattern while a.env still succeeds via a separate pattern.
	blocked := filepath.Join(worktree, "blocked")
	os.WriteFile(blocked, []byte("not a directory"), 0o644)
	os.MkdirAll(filepath.Join(mainRepo, "blocked"), 0o755)
	os.WriteFile(filepath.Join(mainRepo, "blocked", "b.env"), []byte("b\n"), 0o644)

	warnings := Link(worktree, mainRepo, []string{"a.env", "blocked/b.env"}, false)

	if _, err := os.Lstat(filepath.Join(worktree, "a.env")); err != nil {
		t.Errorf("expected a.env to still be linked despite the other pattern failing: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for the blocked destination")
	}
}
