// Package taskops is Grove's orchestrator (§4.7): the multi-step
// procedures that create, archive, recover, merge, sync, reset, and
// delete a task, wiring together internal/gitops, internal/mux,
// internal/fsstore, internal/fslayout, internal/autolink, internal/hooks,
// and internal/cache. Follows the convoy/crew orchestration idiom of a
// thin struct holding its collaborators and one method per lifecycle
// step, each method itself a short, sequential, early-return procedure
// rather than a generic state machine.
package taskops

import (
	"os"
	"time"

	"github.com/grove-run/grove/internal/autolink"
	"github.com/grove-run/grove/internal/cache"
	"github.com/grove-run/grove/internal/fslayout"
	"github.com/grove-run/grove/internal/fsstore"
	"github.com/grove-run/grove/internal/gitops"
	"github.com/grove-run/grove/internal/groveerr"
	"github.com/grove-run/grove/internal/mux"
)

// Orchestrator executes task lifecycle operations against a Grove root.
type Orchestrator struct {
	Root  string
	Mux   *mux.Manager
	Cache *cache.Cache
}

// New constructs an Orchestrator.
func New(root string, m *mux.Manager, c *cache.Cache) *Orchestrator {
	return &Orchestrator{Root: root, Mux: m, Cache: c}
}

// invalidate drops cached git-derived values for a project repo or a
// task's worktree, per §4.7's "every mutating operation invalidates the
// git-cache entries keyed by the project's repo path or the task's
// worktree path."
func (o *Orchestrator) invalidate(prefixes ...string) {
	if o.Cache == nil {
		return
	}
	for _, p := range prefixes {
		o.Cache.InvalidatePrefix(p)
	}
}

// now is a seam so tests can observe a fixed CreatedAt/UpdatedAt.
var now = time.Now

// CreateTask implements create_task: compute a slug, reject a duplicate
// against active or archived tasks, create the branch and worktree,
// best-effort AutoLink the worktree, and persist the Task record.
// Session creation is the caller's responsibility.
func (o *Orchestrator) CreateTask(repo, projectKey, name, target string, muxKind fsstore.MultiplexerKind, autolinkPatterns []string, checkGitignore bool) (*fsstore.Task, []autolink.Warning, error) {
	slug := fslayout.ToSlug(name)
	if slug == "" {
		return nil, nil, groveerr.New(groveerr.KindInvalidData, "task name %q yields an empty slug", name)
	}

	active, err := fsstore.LoadTasks(o.Root, projectKey)
	if err != nil {
		return nil, nil, err
	}
	if active.Find(slug) != nil {
		return nil, nil, groveerr.New(groveerr.KindInvalidData, "task %q already exists", slug)
	}
	archived, err := fsstore.LoadArchived(o.Root, projectKey)
	if err != nil {
		return nil, nil, err
	}
	if archived.Find(slug) != nil {
		return nil, nil, groveerr.New(groveerr.KindInvalidData, "task %q already exists in archive", slug)
	}

	branch := fslayout.GenerateBranchName(name)

	worktreesDir := fslayout.WorktreesDir(o.Root, projectKey)
	if err := os.MkdirAll(worktreesDir, 0o755); err != nil {
		return nil, nil, groveerr.Wrap(groveerr.KindIO, err, "creating worktrees directory for %s", projectKey)
	}

	wtPath := fslayout.WorktreePath(o.Root, projectKey, slug)
	g := gitops.NewGit(repo)
	if err := g.CreateWorktree(branch, wtPath, target); err != nil {
		return nil, nil, err
	}

	warnings := autolink.Link(wtPath, repo, autolinkPatterns, checkGitignore)

	ts := now()
	task := fsstore.Task{
		ID:           slug,
		Name:         name,
		Branch:       branch,
		Target:       target,
		WorktreePath: wtPath,
		CreatedAt:    ts,
		UpdatedAt:    ts,
		Status:       fsstore.StatusActive,
		Multiplexer:  muxKind,
	}
	active.Upsert(task)
	if err := fsstore.SaveTasks(o.Root, projectKey, active); err != nil {
		return nil, warnings, err
	}

	o.invalidate(repo, wtPath)
	return &task, warnings, nil
}
