package fsstore

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/grove-run/grove/internal/fslayout"
	"github.com/grove-run/grove/internal/groveerr"
)

// ReadNotes returns a task's notes.md content, or "" if absent.
func ReadNotes(root, projectKey, taskID string) (string, error) {
	return readTextOrEmpty(fslayout.NotesFile(root, projectKey, taskID))
}

// WriteNotes atomically writes a task's notes.md.
func WriteNotes(root, projectKey, taskID, content string) error {
	return atomicWrite(fslayout.NotesFile(root, projectKey, taskID), []byte(content), 0o644)
}

// ReadSummary returns a task's AI summary.md content, or "" if absent.
func ReadSummary(root, projectKey, taskID string) (string, error) {
	return readTextOrEmpty(fslayout.SummaryFile(root, projectKey, taskID))
}

// WriteSummary atomically writes a task's AI summary.md.
func WriteSummary(root, projectKey, taskID, content string) error {
	return atomicWrite(fslayout.SummaryFile(root, projectKey, taskID), []byte(content), 0o644)
}

func readTextOrEmpty(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", groveerr.Wrap(groveerr.KindIO, err, "reading %s", path)
	}
	return string(data), nil
}

// ReadTodo returns a task's TODO list, or an empty one if absent.
func ReadTodo(root, projectKey, taskID string) (*TodoData, error) {
	path := fslayout.TodoFile(root, projectKey, taskID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &TodoData{}, nil
		}
		return nil, groveerr.Wrap(groveerr.KindIO, err, "reading %s", path)
	}
	td := &TodoData{}
	if err := json.Unmarshal(data, td); err != nil {
		return nil, groveerr.Wrap(groveerr.KindJsonParse, err, "parsing %s", path)
	}
	return td, nil
}

// WriteTodo atomically writes a task's TODO list.
func WriteTodo(root, projectKey, taskID string, td *TodoData) error {
	data, err := json.MarshalIndent(td, "", "  ")
	if err != nil {
		return groveerr.Wrap(groveerr.KindJsonParse, err, "encoding todo")
	}
	return atomicWrite(fslayout.TodoFile(root, projectKey, taskID), data, 0o644)
}

// AddTodo appends an item to the pending TODO list.
func (td *TodoData) AddTodo(item string) {
	td.Todo = append(td.Todo, item)
}

// CompleteTodo moves an item from Todo to Done. Returns false if the item
// was not found in Todo.
func (td *TodoData) CompleteTodo(item string) bool {
	for i, t := range td.Todo {
		if t == item {
			td.Todo = append(td.Todo[:i], td.Todo[i+1:]...)
			td.Done = append(td.Done, item)
			return true
		}
	}
	return false
}

// ReadEditEvents reads a task's full edit-event log, falling back to the
// legacy activity/<task_id>/edits.jsonl path if the flattened path is
// absent.
func ReadEditEvents(root, projectKey, taskID string) ([]EditEvent, error) {
	path := fslayout.ActivityFile(root, projectKey, taskID)
	events, err := readEditEventsFile(path)
	if err != nil {
		return nil, err
	}
	if events != nil {
		return events, nil
	}
	return readEditEventsFile(fslayout.LegacyActivityFile(root, projectKey, taskID))
}

func readEditEventsFile(path string) ([]EditEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, groveerr.Wrap(groveerr.KindIO, err, "reading %s", path)
	}
	return decodeJSONLEvents(data)
}

func decodeJSONLEvents(data []byte) ([]EditEvent, error) {
	var events []EditEvent
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var e EditEvent
		if err := dec.Decode(&e); err != nil {
			break
		}
		events = append(events, e)
	}
	return events, nil
}

// AppendEditEvent appends a single edit event to a task's activity log.
func AppendEditEvent(root, projectKey, taskID string, e EditEvent) error {
	return AppendEditEvents(root, projectKey, taskID, []EditEvent{e})
}

// AppendEditEvents appends a batch of edit events to a task's activity log
// under a single lock acquisition.
func AppendEditEvents(root, projectKey, taskID string, events []EditEvent) error {
	lines := make([][]byte, 0, len(events))
	for _, e := range events {
		line, err := json.Marshal(e)
		if err != nil {
			return groveerr.Wrap(groveerr.KindJsonParse, err, "encoding edit event")
		}
		lines = append(lines, line)
	}
	return AppendLines(fslayout.ActivityFile(root, projectKey, taskID), lines)
}
