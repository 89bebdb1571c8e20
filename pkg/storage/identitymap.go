package storage

import (
	"errors"
	"sync"
)

// ErrNotTaken is returned by IdentityMap.Release when called on a key that
// was never taken, or whose take count has already reached zero. The
// original treats this as a programming error and asserts; this module
// instead returns an error, since a caller may legitimately want to
// tolerate a double-release in cleanup paths.
var ErrNotTaken = errors.New("storage: key not taken")

// IdentityMap wraps a Mapping with per-key reference counting.
// Take increments a key's count and returns the stored value (if any);
// Release decrements it. A key with a positive count is "taken", callers
// use this to track liveness of in-flight references independently of
// whatever caching policy a Storage layers on top.
type IdentityMap[E any] struct {
	mu    sync.Mutex
	inner Mapping[E]
	taken map[Key]int
}

// NewIdentityMap wraps inner with take/release bookkeeping.
func NewIdentityMap[E any](inner Mapping[E]) *IdentityMap[E] {
	return &IdentityMap[E]{
		inner: inner,
		taken: make(map[Key]int),
	}
}

// Take increments key's take count and returns its current value, if
// present. A Void key is always reported not-found and is never counted.
func (m *IdentityMap[E]) Take(key Key) (*E, bool) {
	if IsVoid(key) {
		return nil, false
	}
	m.mu.Lock()
	m.taken[key]++
	m.mu.Unlock()
	return m.inner.Get(key)
}

// Release decrements key's take count. It returns ErrNotTaken if key's
// count was already zero or absent.
func (m *IdentityMap[E]) Release(key Key) error {
	if IsVoid(key) {
		return ErrNotTaken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count, ok := m.taken[key]
	if !ok || count <= 0 {
		return ErrNotTaken
	}
	count--
	if count == 0 {
		delete(m.taken, key)
	} else {
		m.taken[key] = count
	}
	return nil
}

// TakenCount reports how many outstanding takes a key has.
func (m *IdentityMap[E]) TakenCount(key Key) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taken[key]
}

// IsTaken reports whether key has at least one outstanding take.
func (m *IdentityMap[E]) IsTaken(key Key) bool {
	return m.TakenCount(key) > 0
}

// TakenKeys returns every key with a positive take count, in unspecified
// order.
func (m *IdentityMap[E]) TakenKeys() []Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]Key, 0, len(m.taken))
	for k, count := range m.taken {
		if count > 0 {
			keys = append(keys, k)
		}
	}
	return keys
}

// ReleaseAll drops every outstanding take, in unspecified order: the
// original's equivalent leaves iteration order to the underlying dict, and
// Go map iteration order is likewise unspecified here.
func (m *IdentityMap[E]) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taken = make(map[Key]int)
}

// Set, Get, Delete, Contains, KeyOf, Add, Remove, Has, Subkey, Subkeys,
// Natural, Values, and EmptyCopy delegate straight to the wrapped Mapping;
// IdentityMap only adds the take/release layer on top.

func (m *IdentityMap[E]) Set(key Key, value *E)   { m.inner.Set(key, value) }
func (m *IdentityMap[E]) Get(key Key) (*E, bool)  { return m.inner.Get(key) }
func (m *IdentityMap[E]) Delete(key Key)          { m.inner.Delete(key) }
func (m *IdentityMap[E]) Contains(key Key) bool   { return m.inner.Contains(key) }
func (m *IdentityMap[E]) KeyOf(value *E) Key      { return m.inner.KeyOf(value) }
func (m *IdentityMap[E]) Add(value *E)            { m.inner.Add(value) }
func (m *IdentityMap[E]) Remove(value *E)         { m.inner.Remove(value) }
func (m *IdentityMap[E]) Has(value *E) bool       { return m.inner.Has(value) }
func (m *IdentityMap[E]) Subkey(main Key, value *E) Key { return m.inner.Subkey(main, value) }
func (m *IdentityMap[E]) Subkeys(main Key) []Key  { return m.inner.Subkeys(main) }
func (m *IdentityMap[E]) Natural(main Key) []*E   { return m.inner.Natural(main) }
func (m *IdentityMap[E]) Values() []*E            { return m.inner.Values() }

func (m *IdentityMap[E]) EmptyCopy() Mapping[E] {
	return NewIdentityMap[E](m.inner.EmptyCopy())
}
