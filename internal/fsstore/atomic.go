// Package fsstore is Grove's storage layer: the ground truth for every
// record that must survive a restart. It wraps TOML for structured
// registries (workspace, tasks, archived tasks, hooks, config) and JSONL
// for append-only logs (chat history, edit events), and makes every
// mutating write atomic via a temp-file-then-rename, guarded by an
// advisory flock so two goroutines in this process never interleave
// writes to the same file.
//
// Contract: readers tolerate missing files and return a zero value: a
// file under the Grove root is a cache of prior state, not a contract.
// Writers create parent directories as needed.
package fsstore

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"

	"github.com/grove-run/grove/internal/groveerr"
)

// withLock acquires an exclusive advisory lock on path+".lock", creating
// the parent directory if needed, and runs fn while holding it.
func withLock(path string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return groveerr.Wrap(groveerr.KindIO, err, "creating directory for %s", path)
	}
	lk := flock.New(path + ".lock")
	if err := lk.Lock(); err != nil {
		return groveerr.Wrap(groveerr.KindIO, err, "locking %s", path)
	}
	defer lk.Unlock()
	return fn()
}

// atomicWrite writes data to path via a .tmp sibling and an atomic rename.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	return withLock(path, func() error {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, perm); err != nil {
			return groveerr.Wrap(groveerr.KindIO, err, "writing %s", tmp)
		}
		if err := os.Rename(tmp, path); err != nil {
			return groveerr.Wrap(groveerr.KindIO, err, "renaming %s to %s", tmp, path)
		}
		return nil
	})
}

// AtomicWriteBytes atomically writes raw data to path via a .tmp sibling
// and rename. Used by collaborators (e.g. the ACP bridge's chat-history
// compaction) that maintain their own on-disk encoding.
func AtomicWriteBytes(path string, data []byte) error {
	return atomicWrite(path, data, 0o644)
}

// ReadBytesOrNil reads path, returning (nil, nil) if it does not exist.
func ReadBytesOrNil(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, groveerr.Wrap(groveerr.KindIO, err, "reading %s", path)
	}
	return data, nil
}

// AtomicWriteTOML atomically serialises v as TOML to path.
func AtomicWriteTOML(path string, v any) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return groveerr.Wrap(groveerr.KindTomlSerialize, err, "encoding %s", path)
	}
	return atomicWrite(path, buf.Bytes(), 0o644)
}

// ReadTOML decodes the TOML file at path into v. A missing file leaves v
// untouched and returns nil (see package contract).
func ReadTOML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return groveerr.Wrap(groveerr.KindIO, err, "reading %s", path)
	}
	if _, err := toml.Decode(string(data), v); err != nil {
		return groveerr.Wrap(groveerr.KindTomlParse, err, "parsing %s", path)
	}
	return nil
}

// AppendLine appends a single line (without trailing newline supplied by
// the caller) to path, creating the file and parent directories as
// needed. Used for JSONL append-only logs.
func AppendLine(path string, line []byte) error {
	return AppendLines(path, [][]byte{line})
}

// AppendLines appends multiple lines to path under a single lock
// acquisition and file open, so a batched flush (e.g. the file watcher's
// 30s/10-event cadence) costs one lock round trip instead of one per
// event.
func AppendLines(path string, lines [][]byte) error {
	if len(lines) == 0 {
		return nil
	}
	return withLock(path, func() error {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return groveerr.Wrap(groveerr.KindIO, err, "creating directory for %s", path)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return groveerr.Wrap(groveerr.KindIO, err, "opening %s", path)
		}
		defer f.Close()
		for _, line := range lines {
			if _, err := f.Write(append(line, '\n')); err != nil {
				return groveerr.Wrap(groveerr.KindIO, err, "appending to %s", path)
			}
		}
		return nil
	})
}
