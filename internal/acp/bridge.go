package acp

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/grove-run/grove/internal/fsstore"
)

// registry holds the process-wide presence flag: one live Handle per Key.
type registry struct {
	mu    sync.RWMutex
	byKey map[Key]*Handle
}

func newRegistry() *registry { return &registry{byKey: map[Key]*Handle{}} }

func (r *registry) get(k Key) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byKey[k]
	return h, ok
}

func (r *registry) put(k Key, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[k] = h
}

func (r *registry) remove(k Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byKey, k)
}

// Bridge is the process-wide entry point to every ACP session. It
// deduplicates concurrent get_or_start calls for the same key with
// singleflight so two simultaneous subscribers never race to spawn two
// subprocesses for one task.
type Bridge struct {
	reg    *registry
	flight singleflight.Group
	root   string // Grove root, for persisting session ids onto task records
}

// NewBridge constructs a Bridge. root is the Grove root used to persist a
// session's id back onto its task record (§4.5.1 step 5) as sessions
// start or resume; pass "" to skip persistence (e.g. in tests).
func NewBridge(root string) *Bridge {
	return &Bridge{reg: newRegistry(), root: root}
}

// GetOrStart returns the live handle for key, starting a new session if
// none exists (§4.5.1 step 1), and a fresh subscriber to it.
func (b *Bridge) GetOrStart(key Key, cfg Config) (*Handle, *Subscriber, error) {
	if h, ok := b.reg.get(key); ok {
		return h, h.Subscribe(), nil
	}

	if b.root != "" {
		cfg.onSessionID = func(sessionID string) { persistSessionID(b.root, key, sessionID) }
	}

	result, err, _ := b.flight.Do(flightKey(key), func() (any, error) {
		if h, ok := b.reg.get(key); ok {
			return h, nil
		}
		ready := make(chan *Handle, 1)
		go runSession(key, cfg, b.reg, func(h *Handle) { ready <- h })
		return <-ready, nil
	})
	if err != nil {
		return nil, nil, err
	}
	h := result.(*Handle)
	return h, h.Subscribe(), nil
}

// persistSessionID writes a session's acp_session_id back onto its task
// record so a later run's startup can resume it via session/load. It is
// best-effort: a task that no longer exists (e.g. archived mid-session)
// is silently skipped.
func persistSessionID(root string, key Key, sessionID string) {
	tf, err := fsstore.LoadTasks(root, key.ProjectKey)
	if err != nil {
		return
	}
	task := tf.Find(key.TaskID)
	if task == nil {
		return
	}
	task.ACPSessionID = sessionID
	_ = fsstore.SaveTasks(root, key.ProjectKey, tf)
}

func flightKey(k Key) string {
	return k.ProjectKey + "\x00" + k.TaskID + "\x00" + k.ChatID
}

// NewChatID mints a fresh conversation id for a task that is starting a
// new ACP chat rather than resuming one — chat ids are otherwise opaque
// to Grove, so a random id is as good as any scheme.
func NewChatID() string {
	return uuid.New().String()
}

// NewChat starts a brand-new conversation for a task (as opposed to
// GetOrStart, which resumes an existing one by Key).
func (b *Bridge) NewChat(projectKey, taskID string, cfg Config) (Key, *Handle, *Subscriber, error) {
	key := Key{ProjectKey: projectKey, TaskID: taskID, ChatID: NewChatID()}
	h, sub, err := b.GetOrStart(key, cfg)
	return key, h, sub, err
}

// Kill terminates and forgets the session for key, if one is running.
func (b *Bridge) Kill(key Key) {
	if h, ok := b.reg.get(key); ok {
		h.Kill()
	}
}
