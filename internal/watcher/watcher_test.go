package watcher

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/grove-run/grove/internal/fsstore"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "tracked.txt"), []byte("v1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "initial")
	return dir
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestWatcherRecordsTrackedFileWrite(t *testing.T) {
	repo := initTestRepo(t)
	root := t.TempDir()

	w, err := New(root, "proj1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := w.Watch("task1", repo); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(repo, "tracked.txt"), []byte("v2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return len(w.History("task1")) == 1
	})

	hist := w.History("task1")
	if hist[0].File != "tracked.txt" {
		t.Errorf("File = %q, want tracked.txt", hist[0].File)
	}
}

func TestWatcherIgnoresUntrackedFile(t *testing.T) {
	repo := initTestRepo(t)
	root := t.TempDir()

	w, err := New(root, "proj1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := w.Watch("task1", repo); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(repo, "untracked.txt"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Give the batcher a few cycles to have processed this if it were
	// (wrongly) going to accept it.
	time.Sleep(400 * time.Millisecond)
	if got := len(w.History("task1")); got != 0 {
		t.Errorf("expected untracked file to be ignored, got %d events", got)
	}
}

func TestWatcherDebouncesRapidEdits(t *testing.T) {
	repo := initTestRepo(t)
	root := t.TempDir()

	w, err := New(root, "proj1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := w.Watch("task1", repo); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	path := filepath.Join(repo, "tracked.txt")
	for i := 0; i < 5; i++ {
		os.WriteFile(path, []byte{byte('a' + i)}, 0o644)
		time.Sleep(20 * time.Millisecond)
	}

	waitFor(t, 2*time.Second, func() bool {
		return len(w.History("task1")) >= 1
	})
	time.Sleep(300 * time.Millisecond) // let any extra batches settle

	if got := len(w.History("task1")); got != 1 {
		t.Errorf("expected exactly 1 debounced event for 5 rapid writes, got %d", got)
	}
}

func TestWatcherFlushesToActivityLog(t *testing.T) {
	repo := initTestRepo(t)
	root := t.TempDir()

	w, err := New(root, "proj1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := w.Watch("task1", repo); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	os.WriteFile(filepath.Join(repo, "tracked.txt"), []byte("v3\n"), 0o644)

	waitFor(t, 2*time.Second, func() bool {
		return len(w.History("task1")) == 1
	})

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events, err := fsstore.ReadEditEvents(root, "proj1", "task1")
	if err != nil {
		t.Fatalf("ReadEditEvents: %v", err)
	}
	if len(events) != 1 || events[0].File != "tracked.txt" {
		t.Errorf("expected one flushed event for tracked.txt, got %+v", events)
	}
}

func TestResolvePicksLongestMatchingRoot(t *testing.T) {
	outer := &taskState{worktreePath: "/repo", tracked: map[string]bool{"a.txt": true}}
	inner := &taskState{worktreePath: "/repo/nested", tracked: map[string]bool{"b.txt": true}}
	dirToTask := map[string]string{"/repo": "outer", "/repo/nested": "inner"}
	tasks := map[string]*taskState{"outer": outer, "inner": inner}

	taskID, _, rel, ok := resolve("/repo/nested/b.txt", dirToTask, tasks)
	if !ok || taskID != "inner" || rel != "b.txt" {
		t.Errorf("resolve = (%q, _, %q, %v), want (inner, b.txt, true)", taskID, rel, ok)
	}
}

func TestResolveRejectsUntrackedPath(t *testing.T) {
	ts := &taskState{worktreePath: "/repo", tracked: map[string]bool{"a.txt": true}}
	dirToTask := map[string]string{"/repo": "t"}
	tasks := map[string]*taskState{"t": ts}

	_, _, _, ok := resolve("/repo/other.txt", dirToTask, tasks)
	if ok {
		t.Error("expected untracked path to be rejected")
	}
}
