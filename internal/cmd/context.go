package cmd

import (
	"os"
	"path/filepath"

	"github.com/grove-run/grove/internal/cache"
	"github.com/grove-run/grove/internal/fslayout"
	"github.com/grove-run/grove/internal/gitops"
	"github.com/grove-run/grove/internal/groveerr"
	"github.com/grove-run/grove/internal/mux"
	"github.com/grove-run/grove/internal/taskops"
)

// sharedMux and sharedCache are process-lifetime singletons: every
// command invocation is a short-lived process, but within one invocation
// a single Manager/Cache pair is shared by every repoContext it builds.
var (
	sharedMux   = mux.NewManager()
	sharedCache = cache.New()
)

// repoContext bundles the resolved main repo path, Grove root, and
// project key that almost every task subcommand needs.
type repoContext struct {
	Repo       string
	Root       string
	ProjectKey string
	Orch       *taskops.Orchestrator
}

// resolveRepoContext finds the git repository containing the current
// working directory (or repoFlag if set) and derives its Grove
// bookkeeping location.
func resolveRepoContext(repoFlag string) (*repoContext, error) {
	start := repoFlag
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, groveerr.Wrap(groveerr.KindIO, err, "resolving working directory")
		}
		start = wd
	}

	g := gitops.NewGit(start)
	root, err := g.RepoRoot()
	if err != nil {
		return nil, groveerr.New(groveerr.KindInvalidData, "%s is not inside a git repository", start)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, groveerr.Wrap(groveerr.KindIO, err, "resolving repository path")
	}

	groveRoot := fslayout.Root()
	projectKey := fslayout.ProjectKey(absRoot)

	return &repoContext{
		Repo:       absRoot,
		Root:       groveRoot,
		ProjectKey: projectKey,
		Orch:       taskops.New(groveRoot, sharedMux, sharedCache),
	}, nil
}
