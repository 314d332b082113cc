package taskops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grove-run/grove/internal/fsstore"
)

func TestCreateTaskPersistsRecordAndWorktree(t *testing.T) {
	o, _ := newOrchestrator(t)
	repo := initMainRepo(t)

	task, warnings, err := o.CreateTask(repo, "proj", "Add login flow", "HEAD", fsstore.MuxTmux, nil, false)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if task.ID != "add-login-flow" {
		t.Errorf("ID = %q", task.ID)
	}
	if task.Branch != "grove/add-login-flow" {
		t.Errorf("Branch = %q", task.Branch)
	}
	if _, err := os.Stat(task.WorktreePath); err != nil {
		t.Errorf("expected worktree directory: %v", err)
	}

	tf, err := fsstore.LoadTasks(o.Root, "proj")
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if tf.Find("add-login-flow") == nil {
		t.Error("expected task to be persisted in tasks.toml")
	}
}

func TestCreateTaskRejectsDuplicateActiveSlug(t *testing.T) {
	o, _ := newOrchestrator(t)
	repo := initMainRepo(t)

	if _, _, err := o.CreateTask(repo, "proj", "Fix bug", "HEAD", fsstore.MuxTmux, nil, false); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, _, err := o.CreateTask(repo, "proj", "Fix bug", "HEAD", fsstore.MuxTmux, nil, false); err == nil {
		t.Fatal("expected error for duplicate slug")
	}
}

func TestCreateTaskRejectsDuplicateArchivedSlug(t *testing.T) {
	o, _ := newOrchestrator(t)
	repo := initMainRepo(t)

	task, _, err := o.CreateTask(repo, "proj", "Fix bug", "HEAD", fsstore.MuxTmux, nil, false)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := o.ArchiveTask(repo, "proj", task.ID, "tmux", ""); err != nil {
		t.Fatalf("ArchiveTask: %v", err)
	}

	if _, _, err := o.CreateTask(repo, "proj", "Fix bug", "HEAD", fsstore.MuxTmux, nil, false); err == nil {
		t.Fatal("expected error for slug duplicated in archive")
	}
}

func TestCreateTaskInvalidTargetIsTranslated(t *testing.T) {
	o, _ := newOrchestrator(t)
	repo := initMainRepo(t)

	_, _, err := o.CreateTask(repo, "proj", "Ghost task", "does-not-exist", fsstore.MuxTmux, nil, false)
	if err == nil {
		t.Fatal("expected error for invalid target ref")
	}
}

func TestCreateTaskLinksAutolinkPatterns(t *testing.T) {
	o, _ := newOrchestrator(t)
	repo := initMainRepo(t)
	if err := os.WriteFile(filepath.Join(repo, ".env"), []byte("SECRET=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	task, warnings, err := o.CreateTask(repo, "proj", "Needs env", "HEAD", fsstore.MuxTmux, []string{".env"}, false)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if _, err := os.Lstat(filepath.Join(task.WorktreePath, ".env")); err != nil {
		t.Errorf("expected .env symlink in worktree: %v", err)
	}
}
