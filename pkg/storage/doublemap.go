package storage

import (
	"runtime"
	"sync"
	"weak"
)

// DoubleSideMap is a bijection key -> value with a weak reverse index
// value -> key. Invariant: if m.data[k] == v then the reverse
// index maps v back to k, and the reverse index never keeps v alive on its
// own, it is built on weak.Pointer, which the Go runtime reclaims (via
// runtime.AddCleanup, registered in set) the moment no strong reference to
// v remains anywhere else in the program.
type DoubleSideMap[E any] struct {
	mu      sync.RWMutex
	data    map[Key]*E
	reverse map[weak.Pointer[E]]Key
	hash    HashFunc[E]
}

// NewDoubleSideMap constructs a flat double-sided map. hash may be nil,
// meaning the mapping is identity-only: KeyOf falls back to Void for any
// value not already present in the reverse index.
func NewDoubleSideMap[E any](hash HashFunc[E]) *DoubleSideMap[E] {
	return &DoubleSideMap[E]{
		data:    make(map[Key]*E),
		reverse: make(map[weak.Pointer[E]]Key),
		hash:    hash,
	}
}

func (m *DoubleSideMap[E]) Set(key Key, value *E) {
	if IsVoid(key) || value == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, value)
}

func (m *DoubleSideMap[E]) setLocked(key Key, value *E) {
	m.data[key] = value
	wp := weak.Make(value)
	if _, tracked := m.reverse[wp]; !tracked {
		runtime.AddCleanup(value, m.forgetReverse, wp)
	}
	m.reverse[wp] = key
}

// forgetReverse is the cleanup invoked once value becomes unreachable. It
// must not retain value itself, only the weak handle and key space it
// indexed, that is the whole point of the weak reverse index.
func (m *DoubleSideMap[E]) forgetReverse(wp weak.Pointer[E]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reverse, wp)
}

func (m *DoubleSideMap[E]) Get(key Key) (*E, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *DoubleSideMap[E]) Delete(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

func (m *DoubleSideMap[E]) Contains(key Key) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *DoubleSideMap[E]) KeyOf(value *E) Key {
	if value == nil {
		return Void
	}
	m.mu.RLock()
	if k, ok := m.reverse[weak.Make(value)]; ok {
		m.mu.RUnlock()
		return k
	}
	m.mu.RUnlock()
	return m.generateKey(value)
}

func (m *DoubleSideMap[E]) generateKey(value *E) Key {
	if m.hash == nil {
		return Void
	}
	return m.hash(value)
}

func (m *DoubleSideMap[E]) Add(value *E) {
	m.Set(m.KeyOf(value), value)
}

func (m *DoubleSideMap[E]) Remove(value *E) {
	m.Delete(m.KeyOf(value))
}

func (m *DoubleSideMap[E]) Has(value *E) bool {
	return m.Contains(m.KeyOf(value))
}

func (m *DoubleSideMap[E]) Subkey(main Key, _ *E) Key {
	return main
}

func (m *DoubleSideMap[E]) Subkeys(main Key) []Key {
	if m.Contains(main) {
		return []Key{main}
	}
	return nil
}

func (m *DoubleSideMap[E]) Natural(main Key) []*E {
	if v, ok := m.Get(main); ok {
		return []*E{v}
	}
	return nil
}

func (m *DoubleSideMap[E]) Values() []*E {
	m.mu.RLock()
	defer m.mu.RUnlock()
	values := make([]*E, 0, len(m.data))
	for _, v := range m.data {
		values = append(values, v)
	}
	return values
}

func (m *DoubleSideMap[E]) EmptyCopy() Mapping[E] {
	return NewDoubleSideMap[E](m.hash)
}

// Insert stores value under the subkey derived from main, matching the
// original's insert(main_key, value) helper used by collection inserts
// with an explicit key.
func (m *DoubleSideMap[E]) Insert(main Key, value *E) {
	m.Set(m.Subkey(main, value), value)
}
