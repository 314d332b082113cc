package taskops

import (
	"fmt"

	"github.com/grove-run/grove/internal/fsstore"
	"github.com/grove-run/grove/internal/gitops"
	"github.com/grove-run/grove/internal/groveerr"
)

// MergeMethod selects how merge_task folds a task's branch into its
// target.
type MergeMethod string

const (
	MergeSquash     MergeMethod = "squash"
	MergeCommitNoFF MergeMethod = "merge_commit"
)

// MergeTask implements merge_task: reject if either the worktree or the
// main repo's target is dirty, check out target in the main repo, and
// fold the task's branch in by the requested method. Any failure once
// target is checked out triggers a best-effort reset_merge before the
// error is returned.
func (o *Orchestrator) MergeTask(repo, projectKey, taskID string, method MergeMethod) (*fsstore.Task, error) {
	active, err := fsstore.LoadTasks(o.Root, projectKey)
	if err != nil {
		return nil, err
	}
	task := active.Find(taskID)
	if task == nil {
		return nil, groveerr.NotFoundf("task %q not found", taskID)
	}

	wt := gitops.NewGit(task.WorktreePath)
	dirty, err := wt.HasUncommittedChanges()
	if err != nil {
		return nil, err
	}
	if dirty {
		return nil, groveerr.Gitf("", "Worktree has uncommitted changes. Please commit or stash first.")
	}

	main := gitops.NewGit(repo)
	dirty, err = main.HasUncommittedChanges()
	if err != nil {
		return nil, err
	}
	if dirty {
		return nil, groveerr.Gitf("", "Cannot merge: '%s' has uncommitted changes. Please commit first.", task.Target)
	}

	if err := main.Checkout(task.Target); err != nil {
		return nil, err
	}

	notes, err := fsstore.ReadNotes(o.Root, projectKey, taskID)
	if err != nil {
		main.ResetMerge()
		return nil, err
	}

	if err := o.executeMerge(main, task, method, notes); err != nil {
		main.ResetMerge()
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

func (o *Orchestrator) executeMerge(main *gitops.Git, task *fsstore.Task, method MergeMethod, notes string) error {
	switch method {
	case MergeSquash:
		if err := main.MergeSquash(task.Branch); err != nil {
			return err
		}
		msg := task.Name
		if notes != "" {
			msg = fmt.Sprintf("%s\n\n%s", task.Name, notes)
		}
		if err := main.Commit(msg); err != nil {
			main.ResetMerge()
			return err
		}
		return nil
	case MergeCommitNoFF:
		msg := fmt.Sprintf("Merge: %s", task.Name)
		if notes != "" {
			msg = fmt.Sprintf("Merge: %s\n\n%s", task.Name, notes)
		}
		return main.MergeNoFF(task.Branch, msg)
	default:
		return groveerr.New(groveerr.KindInvalidData, "unknown merge method %q", method)
	}
}

// SyncTask implements sync_task: rebase a task's worktree onto its
// target, rejecting if either the worktree or the main repo's target is
// dirty.
func (o *Orchestrator) SyncTask(repo, projectKey, taskID string) (*fsstore.Task, error) {
	active, err := fsstore.LoadTasks(o.Root, projectKey)
	if err != nil {
		return nil, err
	}
	task := active.Find(taskID)
	if task == nil {
		return nil, groveerr.NotFoundf("task %q not found", taskID)
	}

	wt := gitops.NewGit(task.WorktreePath)
	dirty, err := wt.HasUncommittedChanges()
	if err != nil {
		return nil, err
	}
	if dirty {
		return nil, groveerr.Gitf("", "Worktree has uncommitted changes. Please commit or stash first.")
	}

	main := gitops.NewGit(repo)
	dirty, err = main.HasUncommittedChanges()
	if err != nil {
		return nil, err
	}
	if dirty {
		return nil, groveerr.Gitf("", "Target branch '%s' has uncommitted changes. Please commit first.", task.Target)
	}

	if err := wt.Rebase(task.Target); err != nil {
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
