package acp

import (
	"encoding/json"
	"os"
	"os/exec"
	"sync"

	"github.com/grove-run/grove/internal/fslayout"
	"github.com/grove-run/grove/internal/fsstore"
	"github.com/grove-run/grove/internal/groveerr"
)

// Key identifies one ACP conversation.
type Key struct {
	ProjectKey string
	TaskID     string
	ChatID     string
}

// Config configures a session's subprocess and persistence location.
type Config struct {
	Root           string // Grove root, for locating the chat history file
	AgentCommand   string
	AgentArgs      []string
	WorkDir        string
	PersistedACPID string // task's previously persisted acp_session_id, if any

	// onSessionID, if set, is called once the effective session id
	// (new or resumed) is known, so the caller can persist it onto the
	// task record. Set internally by Bridge.GetOrStart.
	onSessionID func(string)
}

// Command is sent on a session's MPSC command channel (§4.5.2).
type Command struct {
	Kind    CommandKind
	Text    string
	ModeID  string
	ModelID string
}

type CommandKind string

const (
	CmdPrompt   CommandKind = "prompt"
	CmdCancel   CommandKind = "cancel"
	CmdSetMode  CommandKind = "set_mode"
	CmdSetModel CommandKind = "set_model"
	CmdKill     CommandKind = "kill"
)

// Subscriber receives a session's event stream: first a replay of history,
// then live events, until the channel is closed (on SessionEnded or
// Unsubscribe). A subscriber whose buffer is full misses live events but
// keeps its channel — see broadcaster.
type Subscriber struct {
	Events <-chan Event
	cancel func()
}

// Unsubscribe stops delivery to this subscriber. Safe to call multiple
// times.
func (s *Subscriber) Unsubscribe() { s.cancel() }

// Handle is a live session's public surface, returned by Bridge.GetOrStart.
type Handle struct {
	key     Key
	conn    *Conn
	cmds    chan Command
	bus     *broadcaster
	adapter ContentAdapter

	mu        sync.Mutex
	history   []Event
	sessionID string
	agentInfo Event // the most recent SessionReady payload; not part of the subscriber replay

	done chan struct{}
}

// SendPrompt enqueues a Prompt command.
func (h *Handle) SendPrompt(text string) { h.enqueue(Command{Kind: CmdPrompt, Text: text}) }

// Cancel enqueues a Cancel command.
func (h *Handle) Cancel() { h.enqueue(Command{Kind: CmdCancel}) }

// SetMode enqueues a SetMode command.
func (h *Handle) SetMode(id string) { h.enqueue(Command{Kind: CmdSetMode, ModeID: id}) }

// SetModel enqueues a SetModel command.
func (h *Handle) SetModel(id string) { h.enqueue(Command{Kind: CmdSetModel, ModelID: id}) }

// Kill enqueues a Kill command, ending the session.
func (h *Handle) Kill() { h.enqueue(Command{Kind: CmdKill}) }

func (h *Handle) enqueue(c Command) {
	select {
	case h.cmds <- c:
	case <-h.done:
	}
}

// Subscribe attaches a new subscriber, delivering the full history replay
// before live events (§4.5.3).
func (h *Handle) Subscribe() *Subscriber {
	h.mu.Lock()
	replay := append([]Event(nil), h.history...)
	h.mu.Unlock()
	return h.bus.subscribe(replay)
}

// GetHistory returns the in-memory event history (the full on-disk log,
// loaded at session start or reattach).
func (h *Handle) GetHistory() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.history...)
}

// runSession hosts one session's lifecycle on a dedicated goroutine: it is
// the Go translation of "spawn a dedicated OS thread hosting a single-
// threaded cooperative scheduler" (§4.5.1 step 2) — a single goroutine
// reading cmds and the agent's notifications serially gives the same
// single-writer guarantee the ACP library's non-thread-safe connection
// requires, without needing a real OS thread pin (Go's goroutines already
// give each session an independent, fair scheduling unit).
func runSession(key Key, cfg Config, registry *registry, onReady func(*Handle)) {
	h := &Handle{
		key:  key,
		cmds: make(chan Command, 32),
		bus:  newBroadcaster(256),
		done: make(chan struct{}),
	}
	h.adapter = NewContentAdapter(cfg.AgentCommand)

	historyPath := fslayout.ChatHistoryFile(cfg.Root, key.ProjectKey, key.TaskID, key.ChatID)
	if raw, err := fsstore.ReadBytesOrNil(historyPath); err == nil && raw != nil {
		if events, derr := DecodeJSONL(raw); derr == nil {
			h.history = events
		}
	}

	registry.put(key, h)
	onReady(h)
	defer registry.remove(key)
	defer close(h.done)

	cmd := exec.Command(cfg.AgentCommand, cfg.AgentArgs...)
	cmd.Dir = cfg.WorkDir
	stdin, err := cmd.StdinPipe()
	if err != nil {
		h.bus.publish(Event{Kind: KindError, Message: err.Error()})
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.bus.publish(Event{Kind: KindError, Message: err.Error()})
		return
	}
	cmd.Stderr = os.Stderr // inherited per §4.5.1 step 3: flows to the grove process's own stderr

	if err := cmd.Start(); err != nil {
		h.bus.publish(Event{Kind: KindError, Message: err.Error()})
		return
	}
	defer func() {
		// Kill-on-drop: the subprocess does not outlive the session.
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	conn := NewConn(stdout, stdin)
	h.conn = conn
	defer conn.Close()

	if err := startup(h, cfg); err != nil {
		h.bus.publish(Event{Kind: KindError, Message: err.Error()})
		return
	}

	commandLoop(h, cfg)

	h.bus.publish(Event{Kind: KindSessionEnded})
}

func startup(h *Handle, cfg Config) error {
	initResult, err := h.conn.Call("initialize", map[string]any{
		"protocolVersion": 1,
		"clientInfo":      map[string]string{"name": "grove", "version": "0"},
	})
	if err != nil {
		return groveerr.Wrap(groveerr.KindSession, err, "initializing acp agent")
	}
	var initInfo struct {
		AgentName    string `json:"agentName"`
		AgentVersion string `json:"agentVersion"`
		Capabilities struct {
			LoadSession bool `json:"loadSession"`
		} `json:"agentCapabilities"`
	}
	_ = json.Unmarshal(initResult, &initInfo)

	var modesModels struct {
		AvailableModes  []string `json:"availableModes"`
		CurrentMode     string   `json:"currentMode"`
		AvailableModels []string `json:"availableModels"`
		CurrentModel    string   `json:"currentModel"`
	}

	sessionID := cfg.PersistedACPID
	resumed := false
	if sessionID != "" && initInfo.Capabilities.LoadSession {
		if loadResult, err := h.conn.Call("session/load", map[string]any{"sessionId": sessionID}); err != nil {
			sessionID = ""
		} else {
			_ = json.Unmarshal(loadResult, &modesModels)
			resumed = true
		}
	}
	if !resumed {
		newResult, err := h.conn.Call("session/new", map[string]any{"cwd": cfg.WorkDir})
		if err != nil {
			return groveerr.Wrap(groveerr.KindSession, err, "starting new acp session")
		}
		var created struct {
			SessionID       string   `json:"sessionId"`
			AvailableModes  []string `json:"availableModes"`
			CurrentMode     string   `json:"currentMode"`
			AvailableModels []string `json:"availableModels"`
			CurrentModel    string   `json:"currentModel"`
		}
		_ = json.Unmarshal(newResult, &created)
		sessionID = created.SessionID
		modesModels.AvailableModes = created.AvailableModes
		modesModels.CurrentMode = created.CurrentMode
		modesModels.AvailableModels = created.AvailableModels
		modesModels.CurrentModel = created.CurrentModel
	}

	ready := Event{
		Kind: KindSessionReady, SessionID: sessionID,
		AgentName: initInfo.AgentName, AgentVersion: initInfo.AgentVersion,
		AvailableModes: modesModels.AvailableModes, CurrentMode: modesModels.CurrentMode,
		AvailableModels: modesModels.AvailableModels, CurrentModel: modesModels.CurrentModel,
	}
	h.mu.Lock()
	h.sessionID = sessionID
	h.agentInfo = ready
	h.mu.Unlock()
	h.bus.publish(ready)

	if cfg.onSessionID != nil {
		cfg.onSessionID(sessionID)
	}

	go forwardNotifications(h, cfg)
	return nil
}

// forwardNotifications drains the agent's session/update and
// request_permission calls, converting them to Events and fanning them
// out (§4.5.3) and persisting them (§4.5.3, should_persist).
func forwardNotifications(h *Handle, cfg Config) {
	for msg := range h.conn.Notifications() {
		switch msg.Method {
		case "session/update":
			ev := decodeSessionUpdate(msg.Params, h.adapter)
			h.record(ev, cfg)
		case "session/request_permission":
			handlePermissionRequest(h, msg)
		}
	}
}

func (h *Handle) record(ev Event, cfg Config) {
	h.bus.publish(ev)
	if !ev.ShouldPersist() {
		return
	}
	h.mu.Lock()
	h.history = append(h.history, ev)
	h.mu.Unlock()
}

// decodeSessionUpdate is intentionally permissive: unrecognised update
// shapes decode to a best-effort MessageChunk rather than being dropped.
func decodeSessionUpdate(params json.RawMessage, adapter ContentAdapter) Event {
	var generic struct {
		SessionUpdate string          `json:"sessionUpdate"`
		Content       json.RawMessage `json:"content"`
		ToolCallID    string          `json:"toolCallId"`
		Title         string          `json:"title"`
		Status        string          `json:"status"`
		Mode          string          `json:"currentModeId"`
	}
	_ = json.Unmarshal(params, &generic)

	switch generic.SessionUpdate {
	case "agent_message_chunk":
		return Event{Kind: KindMessageChunk, Text: extractText(generic.Content)}
	case "agent_thought_chunk":
		return Event{Kind: KindThoughtChunk, Text: extractText(generic.Content)}
	case "tool_call":
		return Event{Kind: KindToolCall, ToolCallID: generic.ToolCallID, Title: generic.Title, Status: generic.Status}
	case "tool_call_update":
		return Event{Kind: KindToolCallUpdate, ToolCallID: generic.ToolCallID, Status: generic.Status,
			Content: renderToolCallContent(generic.Content, adapter)}
	case "plan":
		return Event{Kind: KindPlanUpdate}
	case "current_mode_update":
		return Event{Kind: KindModeChange, Mode: generic.Mode}
	default:
		return Event{Kind: KindMessageChunk, Text: extractText(generic.Content)}
	}
}

func extractText(raw json.RawMessage) string {
	var text struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &text); err == nil {
		return text.Text
	}
	var s string
	_ = json.Unmarshal(raw, &s)
	return s
}

func renderToolCallContent(raw json.RawMessage, adapter ContentAdapter) string {
	var c struct {
		Type    string `json:"type"`
		Text    string `json:"text"`
		OldText string `json:"oldText"`
		NewText string `json:"newText"`
		Path    string `json:"path"`
		ID      string `json:"terminalId"`
	}
	_ = json.Unmarshal(raw, &c)
	switch c.Type {
	case "diff":
		return adapter.Render(ToolCallContent{IsDiff: true, DiffPath: c.Path, DiffOld: c.OldText, DiffNew: c.NewText})
	case "terminal":
		return adapter.Render(ToolCallContent{IsTerminal: true, TerminalID: c.ID})
	default:
		return adapter.Render(ToolCallContent{Text: c.Text})
	}
}

// handlePermissionRequest auto-accepts the first AllowOnce/AllowAlways
// option (or the first option at all) and emits a PermissionRequest event
// for observability (§4.5.4).
func handlePermissionRequest(h *Handle, msg rpcMessage) {
	var req struct {
		Options []struct {
			OptionID string `json:"optionId"`
			Kind     string `json:"kind"`
		} `json:"options"`
		ToolCall struct {
			Title string `json:"title"`
		} `json:"toolCall"`
	}
	_ = json.Unmarshal(msg.Params, &req)

	h.bus.publish(Event{Kind: KindPermissionRequest, Description: req.ToolCall.Title})

	chosen := ""
	for _, opt := range req.Options {
		if opt.Kind == "allow_once" || opt.Kind == "allow_always" {
			chosen = opt.OptionID
			break
		}
	}
	if chosen == "" && len(req.Options) > 0 {
		chosen = req.Options[0].OptionID
	}
	_ = h.conn.Reply(msg.ID, map[string]any{"outcome": map[string]string{"outcome": "selected", "optionId": chosen}}, nil)
}

func commandLoop(h *Handle, cfg Config) {
	for cmd := range h.cmds {
		switch cmd.Kind {
		case CmdPrompt:
			h.record(Event{Kind: KindUserMessage, Text: cmd.Text}, cfg)
			h.bus.publish(Event{Kind: KindBusy, IsBusy: true})
			_, err := h.conn.Call("session/prompt", map[string]any{"sessionId": h.sessionID, "prompt": []map[string]string{{"type": "text", "text": cmd.Text}}})
			h.bus.publish(Event{Kind: KindBusy, IsBusy: false})
			if err != nil {
				h.record(Event{Kind: KindError, Message: err.Error()}, cfg)
			} else {
				h.record(Event{Kind: KindComplete, StopReason: "end_turn"}, cfg)
			}
			h.compactAndPersist(cfg)
		case CmdCancel:
			_ = h.conn.Notify("session/cancel", map[string]any{"sessionId": h.sessionID})
		case CmdSetMode:
			_, _ = h.conn.Call("session/set_mode", map[string]any{"sessionId": h.sessionID, "modeId": cmd.ModeID})
		case CmdSetModel:
			_, _ = h.conn.Call("session/set_model", map[string]any{"sessionId": h.sessionID, "modelId": cmd.ModelID})
		case CmdKill:
			return
		}
	}
}

// compactAndPersist runs the end-of-turn rewrite (§4.5.6) and atomically
// writes it to disk.
func (h *Handle) compactAndPersist(cfg Config) {
	h.mu.Lock()
	compacted := CompactHistory(h.history)
	h.history = compacted
	h.mu.Unlock()

	data, err := EncodeJSONL(compacted)
	if err != nil {
		return
	}
	path := fslayout.ChatHistoryFile(cfg.Root, h.key.ProjectKey, h.key.TaskID, h.key.ChatID)
	_ = fsstore.AtomicWriteBytes(path, data)
}
