package discovery

import (
	"context"
	"path/filepath"
	"sync"
)

// Cache memoizes scan results per source directory for the life of the
// process. There is no automatic invalidation: callers that change files on
// disk must call Invalidate or Clear (the watcher does this).
//
// Results are shared between callers and must be treated as read-only.
//
// Thread-safety: safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	scanner *Scanner
	entries map[string]*Result
}

// NewCache creates a cache backed by scanner.
func NewCache(scanner *Scanner) *Cache {
	return &Cache{scanner: scanner, entries: map[string]*Result{}}
}

// Scanner returns the underlying scanner.
func (c *Cache) Scanner() *Scanner {
	return c.scanner
}

// Get returns the cached result for dir, scanning it on first use.
// Failed scans are not cached.
func (c *Cache) Get(ctx context.Context, dir string) (*Result, error) {
	key := filepath.Clean(dir)

	c.mu.Lock()
	defer c.mu.Unlock()

	if res, ok := c.entries[key]; ok {
		return res, nil
	}
	res, err := c.scanner.Scan(ctx, key)
	if err != nil {
		return nil, err
	}
	c.entries[key] = res
	return res, nil
}

// Invalidate drops the cached result for dir.
func (c *Cache) Invalidate(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, filepath.Clean(dir))
}

// Clear drops every cached result.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]*Result{}
}
