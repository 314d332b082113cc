// Package watcher tracks git-tracked-file modifications inside each live
// task's worktree (§4.6): one fsnotify watcher per project, a background
// goroutine owning the recursive watch and a control channel, 100ms event
// batching, 2s per-(task,file) debounce, an in-memory edit history capped
// at 1,000 events per task, and a 30s/10-event flush cadence to the JSONL
// activity log in internal/fsstore.
//
// Grounded on the corpus's fsnotify idiom (wilbur182-forge's
// internal/adapter/tieredwatcher: a single watchLoop select-ing on
// watcher.Events/Errors, with a debounce timer per path) adapted to
// Grove's per-task accounting and disk-backed history instead of a
// session hot/cold tier.
package watcher

import (
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/grove-run/grove/internal/fsstore"
	"github.com/grove-run/grove/internal/gitops"
)

const (
	debounceWindow   = 2 * time.Second
	batchInterval    = 100 * time.Millisecond
	trackedRefresh   = 60 * time.Second
	maxEventsPerTask = 1000
	dropFraction     = 0.2
	flushInterval    = 30 * time.Second
	flushEventCount  = 10
)

// Event is one in-memory edit record, identical in shape to the persisted
// fsstore.EditEvent.
type Event struct {
	Timestamp time.Time
	File      string
}

type taskState struct {
	worktreePath string
	watchedDirs  []string // every directory under worktreePath currently registered with fsnotify
	tracked      map[string]bool
	trackedAt    time.Time

	mu          sync.Mutex
	lastEdit    map[string]time.Time // per-file debounce clock
	history     []Event              // capped ring, oldest-first
	fileCounts  map[string]int
	fileLast    map[string]time.Time
	pending     []Event // buffered since the last flush
	lastFlushAt time.Time
}

// Watcher watches every registered task's worktree for one project and
// maintains per-task in-memory history plus a durable JSONL log.
type Watcher struct {
	root       string
	projectKey string

	fsw *fsnotify.Watcher

	mu     sync.Mutex
	tasks  map[string]*taskState // task id -> state
	dirToTask map[string]string  // watched worktree root -> task id

	control chan func()
	done    chan struct{}
	closed  bool
}

// New starts a watcher for one project. Grove root and project key are
// used to locate each task's activity log under internal/fsstore's
// layout.
func New(root, projectKey string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:       root,
		projectKey: projectKey,
		fsw:        fsw,
		tasks:      make(map[string]*taskState),
		dirToTask:  make(map[string]string),
		control:    make(chan func()),
		done:       make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Watch registers taskID's worktree for watching. Re-registering the same
// task id replaces its worktree path. Loads any persisted history from
// disk first, rebuilding in-memory state without re-applying the
// debounce window (disk is ground truth per §4.6).
func (w *Watcher) Watch(taskID, worktreePath string) error {
	g := gitops.NewGit(worktreePath)
	files, err := g.LsFiles()
	if err != nil {
		return err
	}
	tracked := make(map[string]bool, len(files))
	for _, f := range files {
		tracked[f] = true
	}

	persisted, err := fsstore.ReadEditEvents(w.root, w.projectKey, taskID)
	if err != nil {
		return err
	}

	ts := &taskState{
		worktreePath: worktreePath,
		tracked:      tracked,
		trackedAt:    now(),
		lastEdit:     make(map[string]time.Time),
		fileCounts:   make(map[string]int),
		fileLast:     make(map[string]time.Time),
		lastFlushAt:  now(),
	}
	for _, e := range persisted {
		ev := Event{Timestamp: time.Unix(e.Timestamp, 0), File: e.File}
		appendHistoryLocked(ts, ev)
	}

	done := make(chan error, 1)
	w.control <- func() {
		dirs, err := addRecursive(w.fsw, worktreePath)
		if err != nil {
			done <- err
			return
		}
		ts.watchedDirs = dirs
		w.mu.Lock()
		if old, ok := w.tasks[taskID]; ok && old.worktreePath != worktreePath {
			delete(w.dirToTask, old.worktreePath)
		}
		w.tasks[taskID] = ts
		w.dirToTask[worktreePath] = taskID
		w.mu.Unlock()
		done <- nil
	}
	return <-done
}

// Unwatch stops watching taskID's worktree, flushing any pending events
// to disk first.
func (w *Watcher) Unwatch(taskID string) {
	done := make(chan struct{})
	w.control <- func() {
		w.mu.Lock()
		ts, ok := w.tasks[taskID]
		if ok {
			delete(w.tasks, taskID)
			delete(w.dirToTask, ts.worktreePath)
		}
		w.mu.Unlock()
		if ok {
			w.flushTask(taskID, ts)
			for _, dir := range ts.watchedDirs {
				w.fsw.Remove(dir)
			}
		}
		close(done)
	}
	<-done
}

// Close drains pending events to disk and shuts the watcher down.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	done := make(chan struct{})
	w.control <- func() {
		w.mu.Lock()
		tasks := make(map[string]*taskState, len(w.tasks))
		for id, ts := range w.tasks {
			tasks[id] = ts
		}
		w.mu.Unlock()
		for id, ts := range tasks {
			w.flushTask(id, ts)
		}
		close(done)
	}
	<-done
	close(w.done)
	return w.fsw.Close()
}

// History returns a task's in-memory edit history, oldest first.
func (w *Watcher) History(taskID string) []Event {
	w.mu.Lock()
	ts, ok := w.tasks[taskID]
	w.mu.Unlock()
	if !ok {
		return nil
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]Event, len(ts.history))
	copy(out, ts.history)
	return out
}

// TimelineHour is one hour's worth of minute-bucketed edit counts.
type TimelineHour struct {
	Hour    time.Time // truncated to the hour
	Buckets [60]uint32
}

// Timeline returns minute-bucketed edit counts per hour, non-empty hours
// only, time-sorted.
func (w *Watcher) Timeline(taskID string) []TimelineHour {
	w.mu.Lock()
	ts, ok := w.tasks[taskID]
	w.mu.Unlock()
	if !ok {
		return nil
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()

	byHour := map[time.Time]*TimelineHour{}
	for _, e := range ts.history {
		hour := e.Timestamp.Truncate(time.Hour)
		th, ok := byHour[hour]
		if !ok {
			th = &TimelineHour{Hour: hour}
			byHour[hour] = th
		}
		th.Buckets[e.Timestamp.Minute()]++
	}
	out := make([]TimelineHour, 0, len(byHour))
	for _, th := range byHour {
		out = append(out, *th)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour.Before(out[j].Hour) })
	return out
}

// Hotlist returns the most-edited files for a task, most-edited first.
func (w *Watcher) Hotlist(taskID string, limit int) []string {
	w.mu.Lock()
	ts, ok := w.tasks[taskID]
	w.mu.Unlock()
	if !ok {
		return nil
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()

	type count struct {
		file string
		n    int
	}
	counts := make([]count, 0, len(ts.fileCounts))
	for f, n := range ts.fileCounts {
		counts = append(counts, count{f, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].n != counts[j].n {
			return counts[i].n > counts[j].n
		}
		return counts[i].file < counts[j].file
	})
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	files := make([]string, len(counts))
	for i, c := range counts {
		files[i] = c.file
	}
	return files
}

// now is a seam so tests can avoid depending on wall-clock timing for
// debounce edge cases.
var now = time.Now

func appendHistoryLocked(ts *taskState, e Event) {
	ts.history = append(ts.history, e)
	if len(ts.history) > maxEventsPerTask {
		drop := int(float64(len(ts.history)) * dropFraction)
		if drop < 1 {
			drop = 1
		}
		ts.history = append([]Event(nil), ts.history[drop:]...)
	}
	ts.fileCounts[e.File]++
	ts.fileLast[e.File] = e.Timestamp
}
