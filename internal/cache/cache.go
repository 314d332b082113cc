// Package cache is an in-process TTL cache of cheap git queries (§4.8):
// branch existence, ahead/behind counts, conflict checks. It exists to
// keep the UI responsive against repos where a `git` subprocess call
// costs tens of milliseconds; it carries no capacity limit of its own —
// entries are naturally bounded by (project, task) cardinality — and is
// invalidated wholesale by prefix whenever a task operation mutates git
// state.
//
// Built on the standard library only: the corpus carries no generic TTL
// cache library (grep of _examples turns up none), and the three map
// shapes plus invalidate_prefix are a dozen lines of sync.Mutex-guarded
// map code that a dependency would not meaningfully simplify.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry[T any] struct {
	value  T
	expiry time.Time
}

// Cache holds three independently-typed maps, matching the three value
// shapes Grove's git queries actually produce: a bare string (e.g. the
// default branch name), an optional count (e.g. commits-behind, nil if
// the query could not be answered), and a pair of counts (e.g. files
// added/removed).
type Cache struct {
	mu      sync.Mutex
	strings map[string]entry[string]
	counts  map[string]entry[*uint32]
	pairs   map[string]entry[[2]uint32]
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{
		strings: make(map[string]entry[string]),
		counts:  make(map[string]entry[*uint32]),
		pairs:   make(map[string]entry[[2]uint32]),
	}
}

// GetOrComputeString returns the cached string for key if its TTL has
// not elapsed, else computes it via f, caches it, and returns it.
func (c *Cache) GetOrComputeString(key string, ttl time.Duration, f func() (string, error)) (string, error) {
	c.mu.Lock()
	if e, ok := c.strings[key]; ok && now().Before(e.expiry) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	v, err := f()
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.strings[key] = entry[string]{value: v, expiry: now().Add(ttl)}
	c.mu.Unlock()
	return v, nil
}

// GetOrComputeCount returns the cached optional count for key if its TTL
// has not elapsed, else computes it via f, caches it, and returns it.
func (c *Cache) GetOrComputeCount(key string, ttl time.Duration, f func() (*uint32, error)) (*uint32, error) {
	c.mu.Lock()
	if e, ok := c.counts[key]; ok && now().Before(e.expiry) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	v, err := f()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.counts[key] = entry[*uint32]{value: v, expiry: now().Add(ttl)}
	c.mu.Unlock()
	return v, nil
}

// GetOrComputePair returns the cached count pair for key if its TTL has
// not elapsed, else computes it via f, caches it, and returns it.
func (c *Cache) GetOrComputePair(key string, ttl time.Duration, f func() ([2]uint32, error)) ([2]uint32, error) {
	c.mu.Lock()
	if e, ok := c.pairs[key]; ok && now().Before(e.expiry) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	v, err := f()
	if err != nil {
		return [2]uint32{}, err
	}
	c.mu.Lock()
	c.pairs[key] = entry[[2]uint32]{value: v, expiry: now().Add(ttl)}
	c.mu.Unlock()
	return v, nil
}

// InvalidatePrefix drops every entry across all three maps whose key
// starts with prefix. Called by every git-mutating task operation,
// keyed by the project's repo path or the task's worktree path.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.strings {
		if strings.HasPrefix(k, prefix) {
			delete(c.strings, k)
		}
	}
	for k := range c.counts {
		if strings.HasPrefix(k, prefix) {
			delete(c.counts, k)
		}
	}
	for k := range c.pairs {
		if strings.HasPrefix(k, prefix) {
			delete(c.pairs, k)
		}
	}
}

var now = time.Now
