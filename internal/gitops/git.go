// Package gitops wraps the git CLI as subprocess calls and returns
// structured results and errors. No git library is linked; every
// operation is a documented, testable git invocation, following the
// same subprocess-wrapper idiom as tmux.Tmux and git.Repo.
package gitops

import (
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/grove-run/grove/internal/groveerr"
)

// Git wraps git operations rooted at a working directory.
type Git struct {
	Dir string
}

// NewGit creates a Git wrapper rooted at dir.
func NewGit(dir string) *Git {
	return &Git{Dir: dir}
}

// GitError carries the raw stderr from a failed git invocation so callers
// (and the agents observing them) can inspect the original failure text.
type GitError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *GitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *GitError) Unwrap() error { return e.Err }

var (
	reInvalidRef = regexp.MustCompile(`invalid reference|not a valid object name`)
)

// run executes git with args in g.Dir and returns trimmed stdout.
func (g *Git) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &GitError{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsRepo reports whether g.Dir is inside a git working tree.
func (g *Git) IsRepo() bool {
	_, err := g.run("rev-parse", "--is-inside-work-tree")
	return err == nil
}

// RepoRoot returns the top-level directory of the repository containing
// g.Dir.
func (g *Git) RepoRoot() (string, error) {
	return g.run("rev-parse", "--show-toplevel")
}

// DefaultBranch returns the remote HEAD's default branch name. If that
// cannot be determined (e.g. no remote configured), it returns a local
// "main" or "master" branch, whichever exists first, and "main" otherwise.
func (g *Git) DefaultBranch() string {
	if out, err := g.run("symbolic-ref", "refs/remotes/origin/HEAD"); err == nil {
		return strings.TrimPrefix(out, "refs/remotes/origin/")
	}
	for _, candidate := range []string{"main", "master"} {
		if g.BranchExists(candidate) {
			return candidate
		}
	}
	return "main"
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch() (string, error) {
	out, err := g.run("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return out, nil
}

// BranchExists reports whether a local branch exists.
func (g *Git) BranchExists(branch string) bool {
	_, err := g.run("show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// Status is the parsed result of `git status --porcelain`.
type Status struct {
	Clean     bool
	Staged    []string
	Modified  []string
	Untracked []string
}

// Status returns the repository's working-tree status.
func (g *Git) Status() (*Status, error) {
	out, err := g.run("status", "--porcelain")
	if err != nil {
		return nil, err
	}
	st := &Status{Clean: out == ""}
	if out == "" {
		return st, nil
	}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 3 {
			continue
		}
		x, y, path := line[0], line[1], strings.TrimSpace(line[2:])
		switch {
		case x == '?' && y == '?':
			st.Untracked = append(st.Untracked, path)
		case x != ' ':
			st.Staged = append(st.Staged, path)
		case y != ' ':
			st.Modified = append(st.Modified, path)
		}
	}
	return st, nil
}

// HasUncommittedChanges reports whether there are staged or worktree
// differences (§4.2: "staged or worktree differences").
func (g *Git) HasUncommittedChanges() (bool, error) {
	st, err := g.Status()
	if err != nil {
		return false, err
	}
	return !st.Clean, nil
}

// Add stages a path.
func (g *Git) Add(path string) error {
	_, err := g.run("add", path)
	return err
}

// Commit creates a commit with the given message.
func (g *Git) Commit(msg string) error {
	_, err := g.run("commit", "-m", msg)
	return err
}

// Checkout switches the working tree to ref.
func (g *Git) Checkout(ref string) error {
	_, err := g.run("checkout", ref)
	return err
}

// CreateBranch creates a new branch, optionally from a starting ref.
func (g *Git) CreateBranch(name string, from ...string) error {
	args := []string{"branch", name}
	if len(from) > 0 && from[0] != "" {
		args = append(args, from[0])
	}
	_, err := g.run(args...)
	return err
}

// DeleteBranch force-deletes a local branch. Absence is idempotent.
func (g *Git) DeleteBranch(name string) error {
	if !g.BranchExists(name) {
		return nil
	}
	_, err := g.run("branch", "-D", name)
	return err
}

// Rev resolves ref to a full commit hash.
func (g *Git) Rev(ref string) (string, error) {
	return g.run("rev-parse", ref)
}

// FetchBranch fetches a branch from a remote.
func (g *Git) FetchBranch(remote, branch string) error {
	_, err := g.run("fetch", remote, branch)
	return err
}

// CommitsBehind returns how many commits branch is behind target.
func (g *Git) CommitsBehind(branch, target string) (int, error) {
	out, err := g.run("rev-list", "--count", branch+".."+target)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(out)
}

// FileChanges returns the files that differ between the working tree and
// target.
func (g *Git) FileChanges(target string) ([]string, error) {
	out, err := g.run("diff", "--name-only", target)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CheckConflicts reports which files would conflict if branch were merged
// into the branch currently checked out in g.Dir, without keeping any
// change to the working tree. It performs a trial merge with --no-commit
// --no-ff and aborts it regardless of outcome. The base argument is not
// used: nothing is checked out before the trial merge.
func (g *Git) CheckConflicts(branch, base string) ([]string, error) {
	_, mergeErr := g.run("merge", "--no-commit", "--no-ff", branch)
	defer g.run("merge", "--abort")

	out, err := g.run("diff", "--name-only", "--diff-filter=U")
	if err != nil && mergeErr == nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CreateWorktree creates both a branch and a worktree atomically via
// `git worktree add -b`. Invalid-ref failures are translated to a message
// that tells the caller to create an initial commit first.
func (g *Git) CreateWorktree(branch, path, fromRef string) error {
	args := []string{"worktree", "add", "-b", branch, path}
	if fromRef != "" {
		args = append(args, fromRef)
	}
	_, err := g.run(args...)
	return translateRefError(err)
}

// CreateWorktreeFromBranch creates a worktree for a branch that already
// exists — the recovery path used by recover_task.
func (g *Git) CreateWorktreeFromBranch(branch, path string) error {
	_, err := g.run("worktree", "add", path, branch)
	return translateRefError(err)
}

// RemoveWorktree prunes the worktree registration and deletes the
// directory. Absence of the worktree is not an error (git itself is
// idempotent for `worktree remove --force` on an unregistered path only
// if untracked — callers should check existence first for clean errors).
func (g *Git) RemoveWorktree(path string) error {
	_, err := g.run("worktree", "remove", "--force", path)
	if err != nil {
		if ge, ok := err.(*GitError); ok && strings.Contains(ge.Stderr, "is not a working tree") {
			return nil
		}
		return err
	}
	return nil
}

// MergeSquash performs `git merge --squash <branch>`.
func (g *Git) MergeSquash(branch string) error {
	_, err := g.run("merge", "--squash", branch)
	return err
}

// MergeNoFF performs `git merge --no-ff <branch> -m <msg>`.
func (g *Git) MergeNoFF(branch, msg string) error {
	_, err := g.run("merge", "--no-ff", branch, "-m", msg)
	return err
}

// ResetMerge aborts an in-progress merge and restores HEAD, used as a
// best-effort rollback after a failed merge step.
func (g *Git) ResetMerge() error {
	_, err := g.run("merge", "--abort")
	if err != nil {
		// merge --abort fails if there's no merge in progress (e.g. the
		// failure happened after `merge --squash`, which does not record
		// MERGE_HEAD); fall back to a hard reset of the worktree.
		_, err = g.run("reset", "--hard", "HEAD")
	}
	return err
}

// Rebase rebases the current branch onto target.
func (g *Git) Rebase(target string) error {
	_, err := g.run("rebase", target)
	return err
}

// LsFiles returns the set of git-tracked files, relative to g.Dir.
func (g *Git) LsFiles() ([]string, error) {
	out, err := g.run("ls-files")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// translateRefError maps "invalid reference"/"not a valid object name"
// failures to a human message telling the caller the ref does not exist.
func translateRefError(err error) error {
	if err == nil {
		return nil
	}
	ge, ok := err.(*GitError)
	if !ok {
		return err
	}
	if reInvalidRef.MatchString(ge.Stderr) {
		return groveerr.Gitf(ge.Stderr, "branch does not exist — create an initial commit first")
	}
	return err
}
