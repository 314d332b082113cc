// Package autolink creates symlinks from a task's worktree back into the
// main repo's working tree for user-selected gitignored paths (§4.10):
// things like .env files or downloaded vendor directories that every
// worktree would otherwise have to regenerate independently.
//
// Follows internal/rig's CopyOverlay idiom (enumerate candidate files,
// best-effort per-file with a logged warning on failure, never fatal to
// the caller), adapted from copying files to creating relative symlinks,
// and uses sabhiram/go-gitignore for gitignore matching.
package autolink

import (
	"fmt"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// Warning is one non-fatal failure encountered while linking a pattern.
type Warning struct {
	Pattern string
	Path    string
	Err     error
}

func (w Warning) String() string {
	return fmt.Sprintf("autolink: %s (pattern %s): %v", w.Path, w.Pattern, w.Err)
}

// Link enumerates, for each glob pattern, matching paths under mainRepo
// and creates a relative symlink for each at the same relative path
// inside worktree. When checkGitignore is true, a matched path that is
// not actually gitignored is skipped. Existing files in the worktree are
// never overwritten. Every failure is collected as a Warning rather than
// aborting the remaining patterns.
func Link(worktree, mainRepo string, patterns []string, checkGitignore bool) []Warning {
	var warnings []Warning

	var gi *ignore.GitIgnore
	if checkGitignore {
		var err error
		gi, err = ignore.CompileIgnoreFile(filepath.Join(mainRepo, ".gitignore"))
		if err != nil {
			gi = nil // no .gitignore, or unreadable: treat as "nothing is ignored"
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(mainRepo, pattern))
		if err != nil {
			warnings = append(warnings, Warning{Pattern: pattern, Err: err})
			continue
		}
		for _, absSrc := range matches {
			rel, err := filepath.Rel(mainRepo, absSrc)
			if err != nil {
				warnings = append(warnings, Warning{Pattern: pattern, Path: absSrc, Err: err})
				continue
			}
			if checkGitignore && (gi == nil || !gi.MatchesPath(rel)) {
				continue
			}
			if err := linkOne(worktree, mainRepo, rel); err != nil {
				warnings = append(warnings, Warning{Pattern: pattern, Path: rel, Err: err})
			}
		}
	}
	return warnings
}

// linkOne creates a single relative symlink at <worktree>/<rel> pointing
// at <mainRepo>/<rel>, creating intermediate directories as needed.
// Returns nil without touching the filesystem if the destination already
// exists.
func linkOne(worktree, mainRepo, rel string) error {
	dst := filepath.Join(worktree, rel)
	if _, err := os.Lstat(dst); err == nil {
		return nil // never overwrite an existing worktree file
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	src := filepath.Join(mainRepo, rel)
	relTarget, err := filepath.Rel(filepath.Dir(dst), src)
	if err != nil {
		return fmt.Errorf("computing relative target: %w", err)
	}
	if err := os.Symlink(relTarget, dst); err != nil {
		return fmt.Errorf("creating symlink: %w", err)
	}
	return nil
}
