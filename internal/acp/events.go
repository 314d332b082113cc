package acp

// EventKind discriminates the variants of an Event.
type EventKind string

const (
	KindUserMessage        EventKind = "user_message"
	KindMessageChunk       EventKind = "message_chunk"
	KindThoughtChunk       EventKind = "thought_chunk"
	KindToolCall           EventKind = "tool_call"
	KindToolCallUpdate     EventKind = "tool_call_update"
	KindPlanUpdate         EventKind = "plan_update"
	KindModeChange         EventKind = "mode_change"
	KindComplete           EventKind = "complete"
	KindBusy               EventKind = "busy"
	KindError              EventKind = "error"
	KindSessionReady       EventKind = "session_ready"
	KindSessionEnded       EventKind = "session_ended"
	KindAvailableCommands  EventKind = "available_commands"
	KindQueueUpdate        EventKind = "queue_update"
	KindPermissionRequest  EventKind = "permission_request"
)

// ToolCallLocation is a file+line reference surfaced by a tool call.
type ToolCallLocation struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

// PlanEntry is one step of an agent's reported plan.
type PlanEntry struct {
	Content string `json:"content"`
	Status  string `json:"status"`
}

// Event is one item in a session's event stream, persisted or transient
// depending on Kind (see ShouldPersist).
type Event struct {
	Kind EventKind `json:"kind"`

	// UserMessage / MessageChunk / ThoughtChunk
	Text string `json:"text,omitempty"`

	// ToolCall / ToolCallUpdate
	ToolCallID   string             `json:"tool_call_id,omitempty"`
	Title        string             `json:"title,omitempty"`
	Status       string             `json:"status,omitempty"`
	Content      string             `json:"content,omitempty"`
	Locations    []ToolCallLocation `json:"locations,omitempty"`

	// PlanUpdate
	Plan []PlanEntry `json:"plan,omitempty"`

	// ModeChange
	Mode string `json:"mode,omitempty"`

	// Complete
	StopReason string `json:"stop_reason,omitempty"`

	// Error
	Message string `json:"message,omitempty"`

	// SessionReady
	SessionID        string   `json:"session_id,omitempty"`
	AgentName        string   `json:"agent_name,omitempty"`
	AgentVersion     string   `json:"agent_version,omitempty"`
	AvailableModes   []string `json:"available_modes,omitempty"`
	CurrentMode      string   `json:"current_mode,omitempty"`
	AvailableModels  []string `json:"available_models,omitempty"`
	CurrentModel     string   `json:"current_model,omitempty"`

	// PermissionRequest
	Description string `json:"description,omitempty"`

	// Busy
	IsBusy bool `json:"is_busy,omitempty"`
}

// ShouldPersist reports whether this event kind is written to the
// on-disk transcript. Transient-only kinds (§4.5.3): Busy, Error,
// SessionEnded, SessionReady, AvailableCommands, QueueUpdate.
func (e Event) ShouldPersist() bool {
	switch e.Kind {
	case KindBusy, KindError, KindSessionEnded, KindSessionReady, KindAvailableCommands, KindQueueUpdate:
		return false
	default:
		return true
	}
}
