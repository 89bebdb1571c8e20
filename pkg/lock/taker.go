// Package lock provides an async-aware, fine-grained lock manager over
// storage keys. Locks are keyed by storage.Key alone, the
// package never needs to know an entity's concrete type, only whether a
// key is currently pinned in its owning mapping, so everything here stays
// non-generic. The one generic seam is Taker, a narrow adapter that lets a
// storage.IdentityMap[E] back a lock without lock itself becoming generic
// over E.
package lock

import "github.com/cuemby/overlaydb/pkg/storage"

// Key is an alias for storage.Key, re-exported so callers of this package
// rarely need to import pkg/storage just to name a key.
type Key = storage.Key

// Taker is the residency side of a lock: acquiring a lock pins its key in
// whatever mapping backs it, so the entity cannot be evicted out from
// under a holder. It is satisfied by storage.IdentityMap[E] and by
// storage.Storage[E] through the generic adapters below.
type Taker interface {
	TakeKey(key Key) bool
	ReleaseKey(key Key) error
}

// identityMapTaker adapts a *storage.IdentityMap[E] to Taker, discarding
// the typed value Take returns, lock only cares that the key stayed
// resident, never about the entity itself.
type identityMapTaker[E any] struct {
	inner *storage.IdentityMap[E]
}

// NewIdentityMapTaker wraps m so it can back a LockMap.
func NewIdentityMapTaker[E any](m *storage.IdentityMap[E]) Taker {
	return identityMapTaker[E]{inner: m}
}

func (t identityMapTaker[E]) TakeKey(key Key) bool {
	_, ok := t.inner.Take(key)
	return ok
}

func (t identityMapTaker[E]) ReleaseKey(key Key) error {
	return t.inner.Release(key)
}

// storageTaker adapts a *storage.Storage[E] to Taker, the same way, for
// StorageLock below.
type storageTaker[E any] struct {
	inner *storage.Storage[E]
}

// NewStorageTaker wraps s so it can back a LockMap.
func NewStorageTaker[E any](s *storage.Storage[E]) Taker {
	return storageTaker[E]{inner: s}
}

func (t storageTaker[E]) TakeKey(key Key) bool {
	_, ok := t.inner.Take(key)
	return ok
}

func (t storageTaker[E]) ReleaseKey(key Key) error {
	return t.inner.Release(key)
}
