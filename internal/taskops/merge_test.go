package taskops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grove-run/grove/internal/fsstore"
	"github.com/grove-run/grove/internal/gitops"
	"github.com/grove-run/grove/internal/groveerr"
)

func TestMergeTaskSquashSuccess(t *testing.T) {
	o, _ := newOrchestrator(t)
	repo := initMainRepo(t)

	task, _, err := o.CreateTask(repo, "proj", "Add widget", "HEAD", fsstore.MuxTmux, nil, false)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	task.Target = currentBranch(t, repo)
	tf, _ := fsstore.LoadTasks(o.Root, "proj")
	tf.Upsert(*task)
	fsstore.SaveTasks(o.Root, "proj", tf)
	gitCommit(t, task.WorktreePath, "widget.txt", "widget\n", "add widget")

	if err := fsstore.WriteNotes(o.Root, "proj", task.ID, "Adds the widget."); err != nil {
		t.Fatalf("WriteNotes: %v", err)
	}

	if _, err := o.MergeTask(repo, "proj", task.ID, MergeSquash); err != nil {
		t.Fatalf("MergeTask: %v", err)
	}

	if _, err := os.Stat(filepath.Join(repo, "widget.txt")); err != nil {
		t.Errorf("expected widget.txt merged into main repo: %v", err)
	}
}

func TestMergeTaskCommitSuccess(t *testing.T) {
	o, _ := newOrchestrator(t)
	repo := initMainRepo(t)

	task, _, err := o.CreateTask(repo, "proj", "Add gadget", "HEAD", fsstore.MuxTmux, nil, false)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	task.Target = currentBranch(t, repo)
	tf, _ := fsstore.LoadTasks(o.Root, "proj")
	tf.Upsert(*task)
	fsstore.SaveTasks(o.Root, "proj", tf)
	gitCommit(t, task.WorktreePath, "gadget.txt", "gadget\n", "add gadget")

	if _, err := o.MergeTask(repo, "proj", task.ID, MergeCommitNoFF); err != nil {
		t.Fatalf("MergeTask: %v", err)
	}

	if _, err := os.Stat(filepath.Join(repo, "gadget.txt")); err != nil {
		t.Errorf("expected gadget.txt merged into main repo: %v", err)
	}
}

func TestMergeTaskRejectsDirtyWorktree(t *testing.T) {
	o, _ := newOrchestrator(t)
	repo := initMainRepo(t)

	task, _, err := o.CreateTask(repo, "proj", "Dirty task", "HEAD", fsstore.MuxTmux, nil, false)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	task.Target = currentBranch(t, repo)
	tf, _ := fsstore.LoadTasks(o.Root, "proj")
	tf.Upsert(*task)
	fsstore.SaveTasks(o.Root, "proj", tf)
	if err := os.WriteFile(filepath.Join(task.WorktreePath, "scratch.txt"), []byte("wip"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = o.MergeTask(repo, "proj", task.ID, MergeSquash)
	if err == nil {
		t.Fatal("expected rejection for dirty worktree")
	}
	if !groveerr.Is(err, groveerr.KindGit) {
		t.Errorf("expected KindGit, got %v", err)
	}
}

func TestMergeTaskFailureResetsMain(t *testing.T) {
	o, _ := newOrchestrator(t)
	repo := initMainRepo(t)

	task, _, err := o.CreateTask(repo, "proj", "Conflicting task", "HEAD", fsstore.MuxTmux, nil, false)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	task.Target = currentBranch(t, repo)
	tf, _ := fsstore.LoadTasks(o.Root, "proj")
	tf.Upsert(*task)
	fsstore.SaveTasks(o.Root, "proj", tf)

	// Create a conflicting change on the worktree branch and on main so the
	// squash merge itself stops on the conflict, leaving conflict markers.
	gitCommit(t, task.WorktreePath, "README.md", "conflict from task\n", "conflict from task")
	gitCommit(t, repo, "README.md", "conflict from main\n", "conflict from main")

	_, err = o.MergeTask(repo, "proj", task.ID, MergeSquash)
	if err == nil {
		t.Fatal("expected merge failure from conflicting change")
	}

	main := gitops.NewGit(repo)
	dirty, statusErr := main.HasUncommittedChanges()
	if statusErr != nil {
		t.Fatalf("HasUncommittedChanges: %v", statusErr)
	}
	if dirty {
		t.Error("expected reset_merge to restore a clean main repo after failure")
	}
}

func TestSyncTaskRejectsWhenWorktreeDirty(t *testing.T) {
	o, _ := newOrchestrator(t)
	repo := initMainRepo(t)

	task, _, err := o.CreateTask(repo, "proj", "Sync me", "HEAD", fsstore.MuxTmux, nil, false)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	task.Target = currentBranch(t, repo)
	tf, _ := fsstore.LoadTasks(o.Root, "proj")
	tf.Upsert(*task)
	fsstore.SaveTasks(o.Root, "proj", tf)

	if err := os.WriteFile(filepath.Join(task.WorktreePath, "scratch.txt"), []byte("wip"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = o.SyncTask(repo, "proj", task.ID)
	if err == nil {
		t.Fatal("expected rejection for dirty worktree")
	}
	if !groveerr.Is(err, groveerr.KindGit) {
		t.Errorf("expected KindGit, got %v", err)
	}
}

func TestSyncTaskRebasesOntoTarget(t *testing.T) {
	o, _ := newOrchestrator(t)
	repo := initMainRepo(t)

	task, _, err := o.CreateTask(repo, "proj", "Sync me", "HEAD", fsstore.MuxTmux, nil, false)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	task.Target = currentBranch(t, repo)
	tf, _ := fsstore.LoadTasks(o.Root, "proj")
	tf.Upsert(*task)
	fsstore.SaveTasks(o.Root, "proj", tf)

	gitCommit(t, repo, "upstream.txt", "upstream change\n", "upstream change")
	gitCommit(t, task.WorktreePath, "taskwork.txt", "task change\n", "task change")

	if _, err := o.SyncTask(repo, "proj", task.ID); err != nil {
		t.Fatalf("SyncTask: %v", err)
	}

	if _, err := os.Stat(filepath.Join(task.WorktreePath, "upstream.txt")); err != nil {
		t.Errorf("expected rebase to pull in upstream.txt: %v", err)
	}
}
