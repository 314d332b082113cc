// Package zellij wraps zellij session operations via subprocess. Unlike
// tmux, zellij has no detached-create primitive and leaves EXITED session
// entries behind after a client disconnects from a session whose process
// has died — both quirks are absorbed here so internal/mux sees a uniform
// session-manager surface.
package zellij

import (
	"bytes"
	"os/exec"
	"regexp"
	"strings"
)

// Zellij wraps zellij operations. It is stateless — every call shells out.
type Zellij struct{}

// NewZellij creates a new Zellij wrapper.
func NewZellij() *Zellij {
	return &Zellij{}
}

func (z *Zellij) run(args ...string) (string, error) {
	cmd := exec.Command("zellij", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", &Error{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
		}
		return "", &Error{Args: args, Err: err}
	}
	return stdout.String(), nil
}

// Error carries a failed zellij invocation's raw stderr.
type Error struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return "zellij " + strings.Join(e.Args, " ") + ": " + e.Stderr
	}
	return "zellij " + strings.Join(e.Args, " ") + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// sessionLine matches one "list-sessions" output line: the session name,
// optionally followed by status markers such as "(EXITED - ...)".
var sessionLine = regexp.MustCompile(`^(\S+)(?:\s+\[.*\])?(?:\s+\((EXITED)[^)]*\))?`)

// ListSessions returns the names of sessions that are not EXITED. A zellij
// session lingers in EXITED state after its pane process dies until
// explicitly deleted; such entries are not "alive" from Grove's view.
func (z *Zellij) ListSessions() ([]string, error) {
	out, err := z.run("list-sessions", "--no-formatting")
	if err != nil {
		// zellij returns non-zero when there are no sessions at all.
		if strings.Contains(err.Error(), "No active zellij sessions") {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(stripANSI(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := sessionLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if m[2] == "EXITED" {
			continue
		}
		names = append(names, m[1])
	}
	return names, nil
}

// SessionExists reports whether a non-EXITED session with this name exists.
func (z *Zellij) SessionExists(name string) (bool, error) {
	names, err := z.ListSessions()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// DeleteSession removes a session's registration (including EXITED
// residue). Deleting an absent session is idempotent.
func (z *Zellij) DeleteSession(name string) error {
	_, err := z.run("delete-session", name, "--force")
	if err != nil && strings.Contains(err.Error(), "not found") {
		return nil
	}
	return err
}

// AttachCommand builds the command to start or re-attach to a session.
// zellij has no separate "create" step: starting a command with -s on a
// name that does not exist creates it; on a name that exists and is
// running, use AttachExistingCommand instead.
//
// layoutPath, if non-empty, is passed as -n to apply a KDL layout file on
// first creation.
func (z *Zellij) AttachCommand(name, layoutPath string) *exec.Cmd {
	args := []string{"-s", name}
	if layoutPath != "" {
		args = append(args, "-n", layoutPath)
	}
	return exec.Command("zellij", args...)
}

// AttachExistingCommand builds the command to attach to an already-running
// session.
func (z *Zellij) AttachExistingCommand(name string) *exec.Cmd {
	return exec.Command("zellij", "attach", name)
}

// KillSession terminates a session's running process (it becomes EXITED,
// not removed — callers that want it gone should follow with
// DeleteSession).
func (z *Zellij) KillSession(name string) error {
	_, err := z.run("kill-session", name)
	if err != nil && strings.Contains(err.Error(), "not found") {
		return nil
	}
	return err
}

// IsAvailable reports whether the zellij binary can be invoked at all.
func (z *Zellij) IsAvailable() bool {
	return exec.Command("zellij", "--version").Run() == nil
}
