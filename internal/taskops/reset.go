package taskops

import (
	"os"
	"path/filepath"

	"github.com/grove-run/grove/internal/fslayout"
	"github.com/grove-run/grove/internal/fsstore"
	"github.com/grove-run/grove/internal/gitops"
	"github.com/grove-run/grove/internal/groveerr"
	"github.com/grove-run/grove/internal/hooks"
	"github.com/grove-run/grove/internal/mux"
)

// ResetTask implements reset_task: kill the session, tear down the
// worktree and branch, wipe per-task data, then recreate a fresh worktree
// from the task's original target.
func (o *Orchestrator) ResetTask(repo, projectKey, taskID string, taskMux mux.Kind, taskSessionName string) (*fsstore.Task, error) {
	active, err := fsstore.LoadTasks(o.Root, projectKey)
	if err != nil {
		return nil, err
	}
	task := active.Find(taskID)
	if task == nil {
		return nil, groveerr.NotFoundf("task %q not found", taskID)
	}

	if err := o.killSession(taskMux, taskSessionName, projectKey, taskID); err != nil {
		return nil, err
	}

	g := gitops.NewGit(repo)
	if _, statErr := os.Stat(task.WorktreePath); statErr == nil {
		if err := g.RemoveWorktree(task.WorktreePath); err != nil {
			return nil, err
		}
	}
	if err := g.DeleteBranch(task.Branch); err != nil {
		return nil, err
	}

	if err := deletePerTaskData(o.Root, projectKey, taskID); err != nil {
		return nil, err
	}

	if err := g.CreateWorktree(task.Branch, task.WorktreePath, task.Target); err != nil {
		return nil, err
	}

	task.UpdatedAt = now()
	active.Upsert(*task)
	if err := fsstore.SaveTasks(o.Root, projectKey, active); err != nil {
		return nil, err
	}

	o.invalidate(repo, task.WorktreePath)
	return task, nil
}

// CleanTask implements clean_task: the same teardown as reset_task, but
// the task record itself is removed and no new worktree is created.
func (o *Orchestrator) CleanTask(repo, projectKey, taskID string, taskMux mux.Kind, taskSessionName string) error {
	active, err := fsstore.LoadTasks(o.Root, projectKey)
	if err != nil {
		return err
	}
	task := active.Find(taskID)
	if task == nil {
		return groveerr.NotFoundf("task %q not found", taskID)
	}

	if err := o.killSession(taskMux, taskSessionName, projectKey, taskID); err != nil {
		return err
	}

	g := gitops.NewGit(repo)
	if _, statErr := os.Stat(task.WorktreePath); statErr == nil {
		if err := g.RemoveWorktree(task.WorktreePath); err != nil {
			return err
		}
	}
	if err := g.DeleteBranch(task.Branch); err != nil {
		return err
	}

	if err := deletePerTaskData(o.Root, projectKey, taskID); err != nil {
		return err
	}

	if err := hooks.Drop(o.Root, projectKey, taskID); err != nil {
		return err
	}

	active.Remove(taskID)
	if err := fsstore.SaveTasks(o.Root, projectKey, active); err != nil {
		return err
	}

	o.invalidate(repo, task.WorktreePath)
	return nil
}

// deletePerTaskData removes every per-task data directory/file: notes,
// chats, comments (TaskDir), summary/todo (AIDir), and the flattened and
// legacy activity logs.
func deletePerTaskData(root, projectKey, taskID string) error {
	paths := []string{
		fslayout.TaskDir(root, projectKey, taskID),
		fslayout.AIDir(root, projectKey, taskID),
		filepath.Dir(fslayout.LegacyActivityFile(root, projectKey, taskID)),
	}
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			return groveerr.Wrap(groveerr.KindIO, err, "removing %s", p)
		}
	}
	activity := fslayout.ActivityFile(root, projectKey, taskID)
	if err := os.Remove(activity); err != nil && !os.IsNotExist(err) {
		return groveerr.Wrap(groveerr.KindIO, err, "removing %s", activity)
	}
	return nil
}
