package storage

import (
	"runtime"
	"sync"
	"weak"
)

// DoubleSideCollectionMap is the one-to-many variant of DoubleSideMap
//: one dimension (main) is a grouping key shared by a set of
// values, the other (sub) is each value's identity under some other,
// unique mapping, typically a Storage's primary id map. It stores
// data[main][sub] = value. KeyOf(value) = CompositeKey{hash(value),
// idMap.KeyOf(value)}. Insertion or deletion with Void in either
// component is a no-op; deleting the last entry under a main key prunes
// the now-empty inner map.
type DoubleSideCollectionMap[E any] struct {
	mu      sync.RWMutex
	data    map[Key]map[Key]*E
	reverse map[weak.Pointer[E]]CompositeKey
	idMap   Mapping[E]
	hash    HashFunc[E]
}

// NewDoubleSideCollectionMap builds a collection map grouping by hash,
// keyed sub-wise by idMap's own keying (usually a Storage's id mapping).
func NewDoubleSideCollectionMap[E any](idMap Mapping[E], hash HashFunc[E]) *DoubleSideCollectionMap[E] {
	return &DoubleSideCollectionMap[E]{
		data:    make(map[Key]map[Key]*E),
		reverse: make(map[weak.Pointer[E]]CompositeKey),
		idMap:   idMap,
		hash:    hash,
	}
}

func (m *DoubleSideCollectionMap[E]) Set(key Key, value *E) {
	ck, ok := key.(CompositeKey)
	if !ok || value == nil {
		return
	}
	m.setComposite(ck, value)
}

func (m *DoubleSideCollectionMap[E]) setComposite(ck CompositeKey, value *E) {
	if IsVoid(ck.Main) || IsVoid(ck.Sub) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.data[ck.Main]
	if !ok {
		bucket = make(map[Key]*E)
		m.data[ck.Main] = bucket
	}
	bucket[ck.Sub] = value

	wp := weak.Make(value)
	if _, tracked := m.reverse[wp]; !tracked {
		runtime.AddCleanup(value, m.forgetReverse, wp)
	}
	m.reverse[wp] = ck
}

func (m *DoubleSideCollectionMap[E]) forgetReverse(wp weak.Pointer[E]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reverse, wp)
}

func (m *DoubleSideCollectionMap[E]) Get(key Key) (*E, bool) {
	ck, ok := key.(CompositeKey)
	if !ok {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket, ok := m.data[ck.Main]
	if !ok {
		return nil, false
	}
	v, ok := bucket[ck.Sub]
	return v, ok
}

func (m *DoubleSideCollectionMap[E]) Delete(key Key) {
	ck, ok := key.(CompositeKey)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.data[ck.Main]
	if !ok {
		return
	}
	delete(bucket, ck.Sub)
	if len(bucket) == 0 {
		delete(m.data, ck.Main)
	}
}

func (m *DoubleSideCollectionMap[E]) Contains(key Key) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *DoubleSideCollectionMap[E]) KeyOf(value *E) Key {
	if value == nil {
		return Void
	}
	m.mu.RLock()
	if ck, ok := m.reverse[weak.Make(value)]; ok {
		m.mu.RUnlock()
		return ck
	}
	m.mu.RUnlock()
	return m.generateKey(value)
}

func (m *DoubleSideCollectionMap[E]) generateKey(value *E) Key {
	main := Void
	if m.hash != nil {
		main = m.hash(value)
	}
	return CompositeKey{Main: main, Sub: m.idMap.KeyOf(value)}
}

func (m *DoubleSideCollectionMap[E]) Add(value *E) {
	m.Set(m.KeyOf(value), value)
}

func (m *DoubleSideCollectionMap[E]) Remove(value *E) {
	m.Delete(m.KeyOf(value))
}

func (m *DoubleSideCollectionMap[E]) Has(value *E) bool {
	return m.Contains(m.KeyOf(value))
}

func (m *DoubleSideCollectionMap[E]) Subkey(main Key, value *E) Key {
	return CompositeKey{Main: main, Sub: m.idMap.KeyOf(value)}
}

func (m *DoubleSideCollectionMap[E]) Subkeys(main Key) []Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket, ok := m.data[main]
	if !ok {
		return nil
	}
	keys := make([]Key, 0, len(bucket))
	for sub := range bucket {
		keys = append(keys, CompositeKey{Main: main, Sub: sub})
	}
	return keys
}

func (m *DoubleSideCollectionMap[E]) Natural(main Key) []*E {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket, ok := m.data[main]
	if !ok {
		return nil
	}
	values := make([]*E, 0, len(bucket))
	for _, v := range bucket {
		values = append(values, v)
	}
	return values
}

func (m *DoubleSideCollectionMap[E]) Values() []*E {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var values []*E
	for _, bucket := range m.data {
		for _, v := range bucket {
			values = append(values, v)
		}
	}
	return values
}

func (m *DoubleSideCollectionMap[E]) EmptyCopy() Mapping[E] {
	return NewDoubleSideCollectionMap[E](m.idMap, m.hash)
}

// Insert stores value under (main, idMap.KeyOf(value)).
func (m *DoubleSideCollectionMap[E]) Insert(main Key, value *E) {
	m.Set(m.Subkey(main, value), value)
}
