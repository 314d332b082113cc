package watcher

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/grove-run/grove/internal/fsstore"
	"github.com/grove-run/grove/internal/gitops"
)

// addRecursive registers root and every subdirectory under it (skipping
// .git, since fsnotify has no native recursive mode) and returns the list
// of directories now watched.
func addRecursive(fsw *fsnotify.Watcher, root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return err
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

// loop is the watcher's dedicated goroutine: it owns the fsnotify watcher
// and the control channel (functions submitted by the exported methods
// above), batches raw fsnotify events per 100ms, and runs the periodic
// tracked-file refresh and flush tickers. Nothing outside this goroutine
// touches w.fsw or the per-task pending/debounce state directly.
func (w *Watcher) loop() {
	batch := time.NewTicker(batchInterval)
	defer batch.Stop()
	refresh := time.NewTicker(trackedRefresh)
	defer refresh.Stop()
	flushTick := time.NewTicker(flushInterval)
	defer flushTick.Stop()

	var pendingRaw []fsnotify.Event

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			pendingRaw = append(pendingRaw, ev)

		case <-w.fsw.Errors:
			// A notifier-level error degrades the watcher silently per
			// §4.6's "file watcher failures never terminate the process".

		case <-batch.C:
			if len(pendingRaw) == 0 {
				continue
			}
			w.applyBatch(pendingRaw)
			pendingRaw = nil

		case <-refresh.C:
			w.refreshTracked()

		case <-flushTick.C:
			w.flushDue()

		case fn := <-w.control:
			fn()

		case <-w.done:
			return
		}
	}
}

// applyBatch accepts raw fsnotify events per §4.6's three-part filter
// (data-modification/rename-to/create, never directory, under a watched
// root and git-tracked), debounces per (task,file), and queues survivors
// for the next flush.
func (w *Watcher) applyBatch(events []fsnotify.Event) {
	w.mu.Lock()
	dirToTask := make(map[string]string, len(w.dirToTask))
	for dir, id := range w.dirToTask {
		dirToTask[dir] = id
	}
	tasks := make(map[string]*taskState, len(w.tasks))
	for id, ts := range w.tasks {
		tasks[id] = ts
	}
	w.mu.Unlock()

	ts0 := now()
	for _, ev := range events {
		if ev.Op&fsnotify.Create != 0 {
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				w.watchNewDir(ev.Name, dirToTask, tasks)
				continue // directory events are never file edits
			}
		}
		if !acceptedOp(ev.Op) {
			continue
		}
		taskID, ts, rel, ok := resolve(ev.Name, dirToTask, tasks)
		if !ok {
			continue
		}

		ts.mu.Lock()
		if last, seen := ts.lastEdit[rel]; seen && ts0.Sub(last) < debounceWindow {
			ts.mu.Unlock()
			continue
		}
		ts.lastEdit[rel] = ts0
		e := Event{Timestamp: ts0, File: rel}
		appendHistoryLocked(ts, e)
		ts.pending = append(ts.pending, e)
		shouldFlush := len(ts.pending) >= flushEventCount
		ts.mu.Unlock()

		if shouldFlush {
			w.flushTask(taskID, ts)
		}
	}
}

// watchNewDir extends a task's recursive watch to a newly created
// subdirectory (fsnotify does not pick these up on its own).
func (w *Watcher) watchNewDir(dirPath string, dirToTask map[string]string, tasks map[string]*taskState) {
	var ownerID string
	bestLen := -1
	for dir, id := range dirToTask {
		if underRoot(dirPath, dir) && len(dir) > bestLen {
			bestLen = len(dir)
			ownerID = id
		}
	}
	if ownerID == "" {
		return
	}
	ts := tasks[ownerID]
	if ts == nil {
		return
	}
	dirs, err := addRecursive(w.fsw, dirPath)
	if err != nil {
		return
	}
	w.mu.Lock()
	if live, ok := w.tasks[ownerID]; ok && live == ts {
		ts.watchedDirs = append(ts.watchedDirs, dirs...)
	}
	w.mu.Unlock()
}

// acceptedOp reports whether a raw fsnotify op is one of the three kinds
// §4.6 accepts: data modification, create, or rename-to. fsnotify reports
// a rename as Rename on the old name and Create on the new name, so
// rename-to arrives as Create; Rename (the old name) and Remove are not
// accepted.
func acceptedOp(op fsnotify.Op) bool {
	return op&(fsnotify.Write|fsnotify.Create) != 0
}

// resolve maps a raw event's absolute path to its owning task and
// worktree-relative path, applying the "under a watched root and
// git-tracked" acceptance filter. The longest matching root wins so a
// nested worktree under another cannot mis-attribute events.
func resolve(absPath string, dirToTask map[string]string, tasks map[string]*taskState) (taskID string, ts *taskState, rel string, ok bool) {
	bestLen := -1
	for dir, id := range dirToTask {
		if !underRoot(absPath, dir) {
			continue
		}
		if len(dir) > bestLen {
			bestLen = len(dir)
			taskID = id
		}
	}
	if taskID == "" {
		return "", nil, "", false
	}
	ts = tasks[taskID]
	if ts == nil {
		return "", nil, "", false
	}
	rel = relPath(ts.worktreePath, absPath)
	ts.mu.Lock()
	tracked := ts.tracked[rel]
	ts.mu.Unlock()
	if !tracked {
		return "", nil, "", false
	}
	return taskID, ts, rel, true
}

func underRoot(absPath, root string) bool {
	if absPath == root {
		return false // the root directory itself, never a file event we care about
	}
	return len(absPath) > len(root) && absPath[:len(root)] == root && (absPath[len(root)] == '/' || root[len(root)-1] == '/')
}

func relPath(root, absPath string) string {
	rel := absPath[len(root):]
	for len(rel) > 0 && rel[0] == '/' {
		rel = rel[1:]
	}
	return rel
}

func (w *Watcher) refreshTracked() {
	w.mu.Lock()
	tasks := make(map[string]*taskState, len(w.tasks))
	for id, ts := range w.tasks {
		tasks[id] = ts
	}
	w.mu.Unlock()

	for _, ts := range tasks {
		g := gitops.NewGit(ts.worktreePath)
		files, err := g.LsFiles()
		if err != nil {
			continue // worktree may be mid-operation; try again next cycle
		}
		tracked := make(map[string]bool, len(files))
		for _, f := range files {
			tracked[f] = true
		}
		ts.mu.Lock()
		ts.tracked = tracked
		ts.trackedAt = now()
		ts.mu.Unlock()
	}
}

func (w *Watcher) flushDue() {
	w.mu.Lock()
	tasks := make(map[string]*taskState, len(w.tasks))
	for id, ts := range w.tasks {
		tasks[id] = ts
	}
	w.mu.Unlock()

	for id, ts := range tasks {
		ts.mu.Lock()
		due := len(ts.pending) > 0 && now().Sub(ts.lastFlushAt) >= flushInterval
		ts.mu.Unlock()
		if due {
			w.flushTask(id, ts)
		}
	}
}

// flushTask writes a task's pending events to disk. Safe to call from any
// goroutine; fsstore's own locking serializes concurrent writers.
func (w *Watcher) flushTask(taskID string, ts *taskState) {
	ts.mu.Lock()
	pending := ts.pending
	ts.pending = nil
	ts.lastFlushAt = now()
	ts.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	records := make([]fsstore.EditEvent, len(pending))
	for i, e := range pending {
		records[i] = fsstore.EditEvent{Timestamp: e.Timestamp.Unix(), File: e.File}
	}
	// Best-effort: a flush failure degrades to "lost this batch of
	// persisted history" rather than crashing the watcher.
	_ = fsstore.AppendEditEvents(w.root, w.projectKey, taskID, records)
}
