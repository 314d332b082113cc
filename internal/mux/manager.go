// Package mux exposes a uniform session-manager surface over tmux, zellij,
// and ACP sessions (§4.3): compute a deterministic session name, create,
// attach, check existence, and kill, tolerating each backend's quirks.
package mux

import (
	"os/exec"
	"path/filepath"

	"github.com/grove-run/grove/internal/fslayout"
	"github.com/grove-run/grove/internal/groveerr"
	"github.com/grove-run/grove/internal/mux/tmux"
	"github.com/grove-run/grove/internal/mux/zellij"
)

// Kind mirrors fsstore.MultiplexerKind without importing it, to keep mux
// free of a storage-layer dependency.
type Kind string

const (
	KindTmux   Kind = "tmux"
	KindZellij Kind = "zellij"
	KindACP    Kind = "acp"
)

// Manager dispatches session lifecycle operations to the right backend.
type Manager struct {
	tmux   *tmux.Tmux
	zellij *zellij.Zellij
}

// NewManager constructs a Manager.
func NewManager() *Manager {
	return &Manager{tmux: tmux.NewTmux(), zellij: zellij.NewZellij()}
}

// ResolveMultiplexer picks the effective multiplexer kind for a task: the
// task's own field if set, else the global default.
func ResolveMultiplexer(taskField, globalDefault string) Kind {
	if taskField != "" {
		return Kind(taskField)
	}
	return Kind(globalDefault)
}

// SessionNameFor computes the deterministic session name for a task,
// sizing the truncation budget from the backend's actual socket base path
// when known, falling back to socketBudgetFallback otherwise.
func (m *Manager) SessionNameFor(kind Kind, projectKey, taskSlug string) string {
	base := m.socketBasePath(kind)
	budget := socketBudgetFallback
	if base != "" {
		budget = SessionNameBudget(len(base))
	}
	return SessionName(projectKey, taskSlug, budget)
}

// ResolveSessionName returns stored if non-empty (a task's session name is
// computed once at creation and persisted — recomputing later could drift
// if the socket base path environment changes), else computes a fresh one.
func (m *Manager) ResolveSessionName(stored string, kind Kind, projectKey, taskSlug string) string {
	if stored != "" {
		return stored
	}
	return m.SessionNameFor(kind, projectKey, taskSlug)
}

func (m *Manager) socketBasePath(kind Kind) string {
	if kind != KindZellij {
		return ""
	}
	if !m.zellij.IsAvailable() {
		return ""
	}
	// zellij's socket lives at $TMPDIR/zellij-$UID/<version>/<session-name>;
	// approximate the fixed portion length without shelling out further.
	return filepath.Join("/tmp", "zellij-0000", "0.0.0")
}

// CreateSession creates a session if the backend supports detached
// creation. tmux creates; zellij and acp are no-ops here (§4.3).
func (m *Manager) CreateSession(kind Kind, name, cwd string) error {
	switch kind {
	case KindTmux:
		exists, err := m.tmux.HasSession(name)
		if err != nil {
			return groveerr.Wrap(groveerr.KindSession, err, "checking tmux session %s", name)
		}
		if exists {
			return nil
		}
		if err := m.tmux.NewSession(name, cwd); err != nil {
			return groveerr.Wrap(groveerr.KindSession, err, "creating tmux session %s", name)
		}
		return nil
	case KindZellij, KindACP:
		return nil
	default:
		return groveerr.New(groveerr.KindSession, "unknown multiplexer kind %q", kind)
	}
}

// AttachCommand returns the *exec.Cmd the caller should exec into (or run
// and wait on) to attach a client to the session. For acp it returns nil —
// attachment is a web/UI concern handled by the ACP bridge, not a
// subprocess exec.
func (m *Manager) AttachCommand(kind Kind, name, cwd, layoutPath string) (*exec.Cmd, error) {
	switch kind {
	case KindTmux:
		exists, err := m.tmux.HasSession(name)
		if err != nil {
			return nil, groveerr.Wrap(groveerr.KindSession, err, "checking tmux session %s", name)
		}
		if !exists {
			if err := m.tmux.NewSession(name, cwd); err != nil {
				return nil, groveerr.Wrap(groveerr.KindSession, err, "creating tmux session %s", name)
			}
		}
		return m.tmux.AttachCommand(name), nil
	case KindZellij:
		exists, err := m.zellij.SessionExists(name)
		if err != nil {
			return nil, groveerr.Wrap(groveerr.KindSession, err, "checking zellij session %s", name)
		}
		if !exists {
			if err := m.zellij.DeleteSession(name); err != nil {
				return nil, groveerr.Wrap(groveerr.KindSession, err, "clearing exited zellij session %s", name)
			}
		}
		if exists {
			return m.zellij.AttachExistingCommand(name), nil
		}
		return m.zellij.AttachCommand(name, layoutPath), nil
	case KindACP:
		return nil, nil
	default:
		return nil, groveerr.New(groveerr.KindSession, "unknown multiplexer kind %q", kind)
	}
}

// SessionExists reports whether a live session exists under this backend.
func (m *Manager) SessionExists(kind Kind, name string) (bool, error) {
	switch kind {
	case KindTmux:
		return m.tmux.HasSession(name)
	case KindZellij:
		return m.zellij.SessionExists(name)
	case KindACP:
		// ACP liveness is tracked by the bridge's own registry, not here.
		return false, nil
	default:
		return false, groveerr.New(groveerr.KindSession, "unknown multiplexer kind %q", kind)
	}
}

// KillSession terminates a session. Absence is idempotent for every
// backend.
func (m *Manager) KillSession(kind Kind, name string) error {
	switch kind {
	case KindTmux:
		return m.tmux.KillSession(name)
	case KindZellij:
		if err := m.zellij.KillSession(name); err != nil {
			return err
		}
		return m.zellij.DeleteSession(name)
	case KindACP:
		return nil
	default:
		return groveerr.New(groveerr.KindSession, "unknown multiplexer kind %q", kind)
	}
}

// Tmux exposes the underlying tmux wrapper for the layout engine, which
// needs pane-level operations beyond this uniform surface.
func (m *Manager) Tmux() *tmux.Tmux { return m.tmux }

// Zellij exposes the underlying zellij wrapper for the layout engine.
func (m *Manager) Zellij() *zellij.Zellij { return m.zellij }

// DefaultGroveRoot is used by callers that need a worktree cwd fallback
// when a task record is incomplete.
func DefaultGroveRoot() string { return fslayout.Root() }
