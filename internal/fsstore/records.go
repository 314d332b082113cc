package fsstore

import (
	"strconv"
	"strings"
	"time"

	"github.com/grove-run/grove/internal/fslayout"
)

// Project is an entry in the workspace registry.
type Project struct {
	Key          string    `toml:"key"`
	Path         string    `toml:"path"`
	Name         string    `toml:"name"`
	RegisteredAt time.Time `toml:"registered_at"`
}

// Workspace is the top-level registry of all known projects.
type Workspace struct {
	Projects []Project `toml:"projects"`
}

// LoadWorkspace reads the workspace registry, returning an empty one if it
// does not exist yet.
func LoadWorkspace(root string) (*Workspace, error) {
	ws := &Workspace{}
	if err := ReadTOML(fslayout.WorkspaceFile(root), ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// SaveWorkspace atomically persists the workspace registry.
func SaveWorkspace(root string, ws *Workspace) error {
	return AtomicWriteTOML(fslayout.WorkspaceFile(root), ws)
}

// FindProject returns the project with the given key, or nil.
func (w *Workspace) FindProject(key string) *Project {
	for i := range w.Projects {
		if w.Projects[i].Key == key {
			return &w.Projects[i]
		}
	}
	return nil
}

// TaskStatus enumerates a task's lifecycle state.
type TaskStatus string

const (
	StatusActive   TaskStatus = "active"
	StatusArchived TaskStatus = "archived"
)

// MultiplexerKind enumerates the three supported session backends.
type MultiplexerKind string

const (
	MuxTmux   MultiplexerKind = "tmux"
	MuxZellij MultiplexerKind = "zellij"
	MuxACP    MultiplexerKind = "acp"
)

// Task is one unit of work: a worktree, a branch, and optionally a
// long-lived session.
type Task struct {
	ID            string          `toml:"id"`
	Name          string          `toml:"name"`
	Branch        string          `toml:"branch"`
	Target        string          `toml:"target"`
	WorktreePath  string          `toml:"worktree_path"`
	CreatedAt     time.Time       `toml:"created_at"`
	UpdatedAt     time.Time       `toml:"updated_at"`
	Status        TaskStatus      `toml:"status"`
	Multiplexer   MultiplexerKind `toml:"multiplexer"`
	SessionName   string          `toml:"session_name"`
	ACPSessionID  string          `toml:"acp_session_id,omitempty"`
}

// TaskFile is the on-disk shape of tasks.toml and archived.toml.
type TaskFile struct {
	Tasks []Task `toml:"tasks"`
}

// LoadTasks reads a project's active tasks.
func LoadTasks(root, projectKey string) (*TaskFile, error) {
	tf := &TaskFile{}
	if err := ReadTOML(fslayout.TasksFile(root, projectKey), tf); err != nil {
		return nil, err
	}
	return tf, nil
}

// SaveTasks atomically persists a project's active tasks.
func SaveTasks(root, projectKey string, tf *TaskFile) error {
	return AtomicWriteTOML(fslayout.TasksFile(root, projectKey), tf)
}

// LoadArchived reads a project's archived tasks.
func LoadArchived(root, projectKey string) (*TaskFile, error) {
	tf := &TaskFile{}
	if err := ReadTOML(fslayout.ArchivedFile(root, projectKey), tf); err != nil {
		return nil, err
	}
	return tf, nil
}

// SaveArchived atomically persists a project's archived tasks.
func SaveArchived(root, projectKey string, tf *TaskFile) error {
	return AtomicWriteTOML(fslayout.ArchivedFile(root, projectKey), tf)
}

// Find returns the task with the given id, or nil.
func (tf *TaskFile) Find(id string) *Task {
	for i := range tf.Tasks {
		if tf.Tasks[i].ID == id {
			return &tf.Tasks[i]
		}
	}
	return nil
}

// Remove deletes the task with the given id, returning it, or nil if absent.
func (tf *TaskFile) Remove(id string) *Task {
	for i := range tf.Tasks {
		if tf.Tasks[i].ID == id {
			t := tf.Tasks[i]
			tf.Tasks = append(tf.Tasks[:i], tf.Tasks[i+1:]...)
			return &t
		}
	}
	return nil
}

// Upsert inserts or replaces a task by id.
func (tf *TaskFile) Upsert(t Task) {
	for i := range tf.Tasks {
		if tf.Tasks[i].ID == t.ID {
			tf.Tasks[i] = t
			return
		}
	}
	tf.Tasks = append(tf.Tasks, t)
}

// AlertLevel enumerates a hook notification's severity.
type AlertLevel string

const (
	AlertNone     AlertLevel = ""
	AlertNotice   AlertLevel = "notice"
	AlertWarn     AlertLevel = "warn"
	AlertCritical AlertLevel = "critical"
)

// rank orders alert levels for the monotone-update invariant.
func (l AlertLevel) rank() int {
	switch l {
	case AlertCritical:
		return 3
	case AlertWarn:
		return 2
	case AlertNotice:
		return 1
	default:
		return 0
	}
}

// Less reports whether l is strictly lower severity than other.
func (l AlertLevel) Less(other AlertLevel) bool { return l.rank() < other.rank() }

// HooksData is the on-disk shape of hooks.toml: task id -> alert level.
type HooksData struct {
	Levels map[string]AlertLevel `toml:"levels"`
}

// LoadHooks reads a project's hook-alert registry.
func LoadHooks(root, projectKey string) (*HooksData, error) {
	hd := &HooksData{Levels: map[string]AlertLevel{}}
	if err := ReadTOML(fslayout.HooksFile(root, projectKey), hd); err != nil {
		return nil, err
	}
	if hd.Levels == nil {
		hd.Levels = map[string]AlertLevel{}
	}
	return hd, nil
}

// SaveHooks atomically persists a project's hook-alert registry.
func SaveHooks(root, projectKey string, hd *HooksData) error {
	return AtomicWriteTOML(fslayout.HooksFile(root, projectKey), hd)
}

// TodoData is a task's AI-maintained TODO list.
type TodoData struct {
	Todo []string `json:"todo"`
	Done []string `json:"done"`
}

// EditEvent is one recorded file modification.
type EditEvent struct {
	Timestamp int64  `json:"timestamp"`
	File      string `json:"file"`
}

// CommentKind discriminates the three review-comment variants.
type CommentKind string

const (
	CommentInline  CommentKind = "inline"
	CommentFile    CommentKind = "file"
	CommentProject CommentKind = "project"
)

// CommentStatus enumerates a comment's resolution state.
type CommentStatus string

const (
	CommentOpen     CommentStatus = "open"
	CommentResolved CommentStatus = "resolved"
	CommentOutdated CommentStatus = "outdated"
)

// CommentReply is a threaded reply to a Comment.
type CommentReply struct {
	Author    string    `toml:"author"`
	Body      string    `toml:"body"`
	CreatedAt time.Time `toml:"created_at"`
}

// Comment is a review comment: inline (file+side+line range+anchor
// snapshot), file-level, or project-level.
type Comment struct {
	ID             string         `toml:"id"`
	Kind           CommentKind    `toml:"kind"`
	File           string         `toml:"file,omitempty"`
	Side           string         `toml:"side,omitempty"`
	LineStart      int            `toml:"line_start,omitempty"`
	LineEnd        int            `toml:"line_end,omitempty"`
	AnchorSnapshot string         `toml:"anchor_snapshot,omitempty"`
	Body           string         `toml:"body"`
	Status         CommentStatus  `toml:"status"`
	Replies        []CommentReply `toml:"replies,omitempty"`
	CreatedAt      time.Time      `toml:"created_at"`
}

// ParseLocation parses a "path:line" or "path:Lstart-Lend" comment anchor
// into its file path and inclusive line range (§8). Supports:
//   - "src/main.go:42"       -> ("src/main.go", 42, 42)
//   - "src/main.go:L42"      -> ("src/main.go", 42, 42)
//   - "src/app.go:100-105"   -> ("src/app.go", 100, 105)
//   - "src/app.go:L100-L105" -> ("src/app.go", 100, 105)
//
// A location with no colon is treated as a bare file at line range 1-1.
// An unparseable line number defaults to 1 (or to the start line, for an
// unparseable end).
func ParseLocation(loc string) (file string, start, end int) {
	colon := strings.LastIndex(loc, ":")
	if colon < 0 {
		return loc, 1, 1
	}
	file = loc[:colon]
	linePart := strings.TrimPrefix(loc[colon+1:], "L")

	if dash := strings.Index(linePart, "-"); dash >= 0 {
		start = parseLineOr(linePart[:dash], 1)
		end = parseLineOr(strings.TrimPrefix(linePart[dash+1:], "L"), start)
		return file, start, end
	}
	start = parseLineOr(linePart, 1)
	return file, start, start
}

func parseLineOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// CommentFile is the on-disk shape of a task's comments.toml.
type CommentFile struct {
	Comments []Comment `toml:"comments"`
}

// LoadComments reads a task's review comments.
func LoadComments(root, projectKey, taskID string) (*CommentFile, error) {
	cf := &CommentFile{}
	if err := ReadTOML(fslayout.CommentsFile(root, projectKey, taskID), cf); err != nil {
		return nil, err
	}
	return cf, nil
}

// SaveComments atomically persists a task's review comments.
func SaveComments(root, projectKey, taskID string, cf *CommentFile) error {
	return AtomicWriteTOML(fslayout.CommentsFile(root, projectKey, taskID), cf)
}
