package txpool

import "sync"

// CacheMode selects what a Pool does with a scope's Session between
// entries.
type CacheMode int

const (
	// Persistent keeps each scope's Session alive across pool entries:
	// each Enter reloads its overlay onto a fresh one that re-takes every
	// key the old one still held, so those takes carry over from entry to
	// entry.
	Persistent CacheMode = iota
	// OneTime finishes and drops each scope's Session at the end of
	// every entry, so the next Enter opens a fresh one.
	OneTime
)

// Cache holds the live SessionHandle for each scope name a Pool has
// opened, reused across entries under Persistent mode and cleared after
// every exit under OneTime mode.
type Cache struct {
	mode CacheMode
	mu   sync.Mutex
	byName map[string]SessionHandle
}

// NewCache builds an empty cache in the given mode.
func NewCache(mode CacheMode) *Cache {
	return &Cache{mode: mode, byName: make(map[string]SessionHandle)}
}

// Get returns the cached session for name, if one is currently live.
func (c *Cache) Get(name string) (SessionHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byName[name]
	return s, ok
}

// Set installs sess as the current session for name.
func (c *Cache) Set(name string, sess SessionHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName[name] = sess
}

// Persistent reports whether this cache keeps sessions alive across pool
// entries rather than finishing them at every exit.
func (c *Cache) Persistent() bool {
	return c.mode == Persistent
}

// Forget drops the cached session for name, if the cache's mode is
// OneTime; Persistent caches keep it regardless.
func (c *Cache) Forget(name string) {
	if c.mode != OneTime {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byName, name)
}

// Names returns every scope name currently cached, in unspecified order.
func (c *Cache) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	return names
}
