package taskops

import (
	"os"

	"github.com/grove-run/grove/internal/fslayout"
	"github.com/grove-run/grove/internal/fsstore"
	"github.com/grove-run/grove/internal/gitops"
	"github.com/grove-run/grove/internal/groveerr"
	"github.com/grove-run/grove/internal/hooks"
	"github.com/grove-run/grove/internal/mux"
)

// ArchiveTask implements archive_task: remove the worktree if present,
// move the record from tasks.toml to archived.toml, drop its hook
// notifications, and kill its session (deleting the zellij layout file
// too, since zellij is the one backend with a persisted layout document).
func (o *Orchestrator) ArchiveTask(repo, projectKey, taskID string, taskMux mux.Kind, taskSessionName string) (*fsstore.Task, error) {
	active, err := fsstore.LoadTasks(o.Root, projectKey)
	if err != nil {
		return nil, err
	}
	task := active.Find(taskID)
	if task == nil {
		return nil, groveerr.NotFoundf("task %q not found", taskID)
	}

	if _, statErr := os.Stat(task.WorktreePath); statErr == nil {
		g := gitops.NewGit(repo)
		if err := g.RemoveWorktree(task.WorktreePath); err != nil {
			return nil, err
		}
	}

	removed := active.Remove(taskID)
	if err := fsstore.SaveTasks(o.Root, projectKey, active); err != nil {
		return nil, err
	}

	removed.Status = fsstore.StatusArchived
	removed.UpdatedAt = now()

	archived, err := fsstore.LoadArchived(o.Root, projectKey)
	if err != nil {
		return nil, err
	}
	archived.Upsert(*removed)
	if err := fsstore.SaveArchived(o.Root, projectKey, archived); err != nil {
		return nil, err
	}

	if err := hooks.Drop(o.Root, projectKey, taskID); err != nil {
		return nil, err
	}

	if err := o.killSession(taskMux, taskSessionName, projectKey, taskID); err != nil {
		return nil, err
	}

	o.invalidate(repo, task.WorktreePath)
	return removed, nil
}

// RecoverTask implements recover_task: verify the archived task's branch
// still exists, recreate the worktree from it, and move the record back
// to the active registry.
func (o *Orchestrator) RecoverTask(repo, projectKey, taskID string) (*fsstore.Task, error) {
	archived, err := fsstore.LoadArchived(o.Root, projectKey)
	if err != nil {
		return nil, err
	}
	task := archived.Find(taskID)
	if task == nil {
		return nil, groveerr.NotFoundf("archived task %q not found", taskID)
	}

	g := gitops.NewGit(repo)
	if !g.BranchExists(task.Branch) {
		return nil, groveerr.New(groveerr.KindInvalidData, "cannot recover %q: branch %q no longer exists", taskID, task.Branch)
	}

	if err := g.CreateWorktreeFromBranch(task.Branch, task.WorktreePath); err != nil {
		return nil, err
	}

	removed := archived.Remove(taskID)
	if err := fsstore.SaveArchived(o.Root, projectKey, archived); err != nil {
		return nil, err
	}

	removed.Status = fsstore.StatusActive
	removed.UpdatedAt = now()

	active, err := fsstore.LoadTasks(o.Root, projectKey)
	if err != nil {
		return nil, err
	}
	active.Upsert(*removed)
	if err := fsstore.SaveTasks(o.Root, projectKey, active); err != nil {
		return nil, err
	}

	o.invalidate(repo, removed.WorktreePath)
	return removed, nil
}

// killSession kills a task's session, additionally removing the zellij
// layout document since that is the one backend with persisted layout
// state beyond the session itself.
func (o *Orchestrator) killSession(kind mux.Kind, sessionName, projectKey, taskID string) error {
	if o.Mux == nil || sessionName == "" {
		return nil
	}
	if err := o.Mux.KillSession(kind, sessionName); err != nil {
		return err
	}
	if kind == mux.KindZellij {
		path := fslayout.ZellijLayoutFile(o.Root, projectKey, taskID)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return groveerr.Wrap(groveerr.KindIO, err, "removing zellij layout for %s", taskID)
		}
	}
	return nil
}
