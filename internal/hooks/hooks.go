// Package hooks manages the per-project alert level an agent hook can
// raise against a task (§4.9): notice < warn < critical, monotone (a
// lower level never overwrites a higher one), persisted to hooks.toml
// via internal/fsstore.
package hooks

import "github.com/grove-run/grove/internal/fsstore"

// Update raises taskID's alert level to level if level outranks
// whatever is currently stored (or nothing is stored yet), then
// persists the registry. A lower level is silently ignored.
func Update(root, projectKey, taskID string, level fsstore.AlertLevel) error {
	hd, err := fsstore.LoadHooks(root, projectKey)
	if err != nil {
		return err
	}
	if current, ok := hd.Levels[taskID]; ok && !current.Less(level) {
		return nil
	}
	hd.Levels[taskID] = level
	return fsstore.SaveHooks(root, projectKey, hd)
}

// LoadWithCleanup loads a project's hook registry and drops entries for
// task ids that are neither active nor archived, rewriting the file
// only if cleanup actually changed it.
func LoadWithCleanup(root, projectKey string) (*fsstore.HooksData, error) {
	hd, err := fsstore.LoadHooks(root, projectKey)
	if err != nil {
		return nil, err
	}

	known, err := knownTaskIDs(root, projectKey)
	if err != nil {
		return nil, err
	}

	changed := false
	for taskID := range hd.Levels {
		if !known[taskID] {
			delete(hd.Levels, taskID)
			changed = true
		}
	}
	if changed {
		if err := fsstore.SaveHooks(root, projectKey, hd); err != nil {
			return nil, err
		}
	}
	return hd, nil
}

// Drop removes taskID's alert level entirely. Both archiving and cleaning
// a task call it.
func Drop(root, projectKey, taskID string) error {
	hd, err := fsstore.LoadHooks(root, projectKey)
	if err != nil {
		return err
	}
	if _, ok := hd.Levels[taskID]; !ok {
		return nil
	}
	delete(hd.Levels, taskID)
	return fsstore.SaveHooks(root, projectKey, hd)
}

func knownTaskIDs(root, projectKey string) (map[string]bool, error) {
	known := map[string]bool{}
	active, err := fsstore.LoadTasks(root, projectKey)
	if err != nil {
		return nil, err
	}
	for _, t := range active.Tasks {
		known[t.ID] = true
	}
	archived, err := fsstore.LoadArchived(root, projectKey)
	if err != nil {
		return nil, err
	}
	for _, t := range archived.Tasks {
		known[t.ID] = true
	}
	return known, nil
}
