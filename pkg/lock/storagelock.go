package lock

import (
	"context"
	"sync"

	"github.com/cuemby/overlaydb/pkg/storage"
)

// StorageLockClient builds a CompositeLock spanning a Storage's primary
// key plus every named secondary mapping's key for the same entity value,
// the composite lock that makes it safe to, say, create an entity by a
// unique secondary key without racing another goroutine inserting under
// the same key via a different primary id. Each secondary LockMap is
// backed by that mapping's own IdentityMap, so acquiring a secondary lock
// pins the entity's residency in that mapping for as long as the lock is
// held, same as the primary lock does through Storage.
type StorageLockClient[E any] struct {
	mapping       string
	storage       *storage.Storage[E]
	primary       *LockClient
	secondaryMu   sync.Mutex
	secondary     map[string]*LockClient
	secondaryName []string
}

// NewStorageLockClient builds a client locking s's primary key under
// mapping, plus each of secondaryNames. A secondary client is resolved
// lazily on first Lock, so a name registered on s after this call still
// ends up locked once its mapping exists.
func NewStorageLockClient[E any](mapping string, s *storage.Storage[E], secondaryNames ...string) *StorageLockClient[E] {
	return &StorageLockClient[E]{
		mapping:       mapping,
		storage:       s,
		primary:       NewLockClient(NewLockMap(mapping, NewStorageTaker(s))),
		secondary:     make(map[string]*LockClient, len(secondaryNames)),
		secondaryName: secondaryNames,
	}
}

// Mapping returns the name of the primary mapping this client locks.
func (c *StorageLockClient[E]) Mapping() string { return c.mapping }

// KeyOf returns value's key under the primary mapping this client locks.
func (c *StorageLockClient[E]) KeyOf(value *E) storage.Key {
	return c.storage.KeyOf(value)
}

// secondaryClient returns the LockClient backing name, building and
// caching it against the mapping's own IdentityMap on first use.
func (c *StorageLockClient[E]) secondaryClient(name string) (*LockClient, bool) {
	c.secondaryMu.Lock()
	defer c.secondaryMu.Unlock()
	if client, ok := c.secondary[name]; ok {
		return client, true
	}
	m, ok := c.storage.Mapping(name)
	if !ok {
		return nil, false
	}
	client := NewLockClient(NewLockMap(name, NewIdentityMapTaker(m)))
	c.secondary[name] = client
	return client, true
}

// Lock acquires a StorageLock over value's keys across every configured
// mapping, blocking until every key is held or ctx is done.
func (c *StorageLockClient[E]) Lock(ctx context.Context, value *E) (*StorageLock[E], error) {
	entries := []Entry{{
		Mapping: c.mapping,
		Client:  c.primary,
		Key:     c.storage.KeyOf(value),
	}}
	for _, name := range c.secondaryName {
		client, ok := c.secondaryClient(name)
		if !ok {
			continue
		}
		m, ok := c.storage.Mapping(name)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Mapping: name,
			Client:  client,
			Key:     m.KeyOf(value),
		})
	}

	composite := NewCompositeLock(entries...)
	if err := composite.Acquire(ctx); err != nil {
		return nil, err
	}
	return &StorageLock[E]{composite: composite}, nil
}

// ReleaseAll drops every lock this client currently holds across every
// mapping, primary and secondary alike.
func (c *StorageLockClient[E]) ReleaseAll() {
	c.primary.ReleaseAll()
	c.secondaryMu.Lock()
	clients := make([]*LockClient, 0, len(c.secondary))
	for _, client := range c.secondary {
		clients = append(clients, client)
	}
	c.secondaryMu.Unlock()
	for _, client := range clients {
		client.ReleaseAll()
	}
}

// StorageLock is one entity value's acquired composite lock, returned by
// StorageLockClient.Lock. Release frees every mapping's key together.
type StorageLock[E any] struct {
	composite *CompositeLock
}

// Release unlocks every key this StorageLock holds.
func (l *StorageLock[E]) Release() error {
	return l.composite.Release()
}
