package overlay

import (
	"context"
	"sync"

	"github.com/cuemby/overlaydb/pkg/storage"
)

// StorageTransaction is the domain-facing half of an overlay: it pairs one
// IdentityMapTransaction per named mapping, primary and secondary alike,
// with the Storage they shadow, and adds the higher-level operations a
// DataSource actually calls, Save for a brand-new entity, Remember for one
// restored unchanged from the backing store, Delete, and the Flush/Finish
// lifecycle that decides what of all that actually reaches the shared
// Storage. Keys passed to Contains/Take/TakeWritable/Save/Remember/Delete
// are always primary keys; querying through a secondary mapping goes
// through MappingEntry/Natural instead, since a secondary mapping's own
// key space (e.g. an owner) differs from the primary's.
type StorageTransaction[E any] struct {
	store        *storage.Storage[E]
	primary      *IdentityMapTransaction[E]
	secondaryMap map[string]*storage.IdentityMap[E]
	secondary    map[string]*IdentityMapTransaction[E]

	mu           sync.Mutex
	created      map[storage.Key]bool
	deleted      map[storage.Key]bool
	deletedValue map[storage.Key]*E
}

// NewStorageTransaction opens an overlay over store, with one
// IdentityMapTransaction for the primary mapping and one for every
// secondary mapping store currently has registered.
func NewStorageTransaction[E any](store *storage.Storage[E]) *StorageTransaction[E] {
	tx := &StorageTransaction[E]{
		store:        store,
		primary:      NewIdentityMapTransaction[E](store.Name(), store.Primary()),
		secondaryMap: make(map[string]*storage.IdentityMap[E]),
		secondary:    make(map[string]*IdentityMapTransaction[E]),
		created:      make(map[storage.Key]bool),
		deleted:      make(map[storage.Key]bool),
		deletedValue: make(map[storage.Key]*E),
	}
	for _, name := range store.MappingNames() {
		m, ok := store.Mapping(name)
		if !ok {
			continue
		}
		tx.secondaryMap[name] = m
		tx.secondary[name] = NewIdentityMapTransaction[E](name, m)
	}
	return tx
}

// Contains reports whether key currently resolves to a live value within
// this transaction, false for anything marked Deleted, regardless of
// what the shared Storage still holds.
func (tx *StorageTransaction[E]) Contains(key storage.Key) bool {
	tx.mu.Lock()
	deleted := tx.deleted[key]
	tx.mu.Unlock()
	if deleted {
		return false
	}
	_, ok := tx.primary.Peek(key)
	if ok {
		return true
	}
	return tx.store.Contains(key)
}

// Take returns key's value, taking it from the shared Storage the first
// time this transaction sees it.
func (tx *StorageTransaction[E]) Take(key storage.Key) (*E, bool) {
	return tx.primary.Take(key)
}

// Peek returns key's current value without taking it.
func (tx *StorageTransaction[E]) Peek(key storage.Key) (*E, bool) {
	return tx.primary.Peek(key)
}

// TakeWritable is Take followed by MakeWritable, the copy-on-write point:
// the value returned from here on is this transaction's own clone, safe
// to mutate without affecting any other open transaction.
func (tx *StorageTransaction[E]) TakeWritable(key storage.Key) (*E, bool) {
	if _, ok := tx.primary.Take(key); !ok {
		return nil, false
	}
	return tx.primary.MakeWritable(key)
}

// Release gives back one outstanding Take on key.
func (tx *StorageTransaction[E]) Release(key storage.Key) error {
	return tx.primary.Release(key)
}

// DirtyKeys returns every primary key this transaction has written to
// (via TakeWritable or Save) since the last Flush, in unspecified order.
func (tx *StorageTransaction[E]) DirtyKeys() []storage.Key {
	return tx.primary.UpdatedKeys()
}

// ResidentKeys returns every primary key this transaction currently holds
// an outstanding take on, in unspecified order.
func (tx *StorageTransaction[E]) ResidentKeys() []storage.Key {
	return tx.primary.ResidentKeys()
}

// Save installs value as a brand-new entity under key: it is pushed into
// the primary overlay plus every secondary mapping's own overlay (keyed by
// that mapping's own derivation of value's key), and will be cached into
// the shared Storage at Flush. New(key) reports true until the next
// Flush or Finish.
func (tx *StorageTransaction[E]) Save(key storage.Key, value *E) {
	tx.mu.Lock()
	tx.created[key] = true
	delete(tx.deleted, key)
	delete(tx.deletedValue, key)
	tx.mu.Unlock()

	tx.primary.Push(key, value)
	for name, ovl := range tx.secondary {
		m := tx.secondaryMap[name]
		ovl.Push(m.KeyOf(value), value)
	}
}

// Remember installs value as key's local value without marking it dirty,
// used when a DataSource restores a value from the backing store
// unchanged; it becomes visible to this transaction's Contains/Take/
// MappingEntry but is not written back by Flush unless later mutated via
// TakeWritable.
func (tx *StorageTransaction[E]) Remember(key storage.Key, value *E) {
	tx.primary.SetLocal(key, value)
	for name, ovl := range tx.secondary {
		m := tx.secondaryMap[name]
		ovl.SetLocal(m.KeyOf(value), value)
	}
}

// Delete marks key as removed for the lifetime of this transaction;
// Flush uncaches it from the shared Storage, which purges it from every
// mapping there, primary and secondary alike.
func (tx *StorageTransaction[E]) Delete(key storage.Key) {
	value, _ := tx.primary.Peek(key)
	tx.mu.Lock()
	tx.deleted[key] = true
	delete(tx.created, key)
	if value != nil {
		tx.deletedValue[key] = value
	}
	tx.mu.Unlock()
}

// New reports whether key was created fresh within this transaction via
// Save, rather than pre-existing in the shared Storage.
func (tx *StorageTransaction[E]) New(key storage.Key) bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.created[key]
}

// Deleted reports whether key was marked for removal within this
// transaction.
func (tx *StorageTransaction[E]) Deleted(key storage.Key) bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.deleted[key]
}

// AwaitRestoration runs fn against value at most once per key for this
// transaction's lifetime.
func (tx *StorageTransaction[E]) AwaitRestoration(ctx context.Context, key storage.Key, value *E, fn RestoreFunc[E]) error {
	return tx.primary.AwaitRestoration(ctx, key, value, fn)
}

// Natural returns every value currently grouped under main within the
// named secondary mapping, force-taking each one's own subkey into that
// mapping's overlay so the copy-on-write guarantee extends to collection
// reads, not only single-key ones. It reports ok false if mapping was
// never registered on this transaction's Storage.
func (tx *StorageTransaction[E]) Natural(mapping string, main storage.Key) ([]*E, bool) {
	m, ok := tx.secondaryMap[mapping]
	if !ok {
		return nil, false
	}
	ovl := tx.secondary[mapping]
	subkeys := m.Subkeys(main)
	return ovl.TakeAll(subkeys), true
}

// Flush writes every updated and newly created, non-deleted value back
// into the shared Storage, and uncaches everything marked Deleted. A key
// that was both Saved and Deleted within the same transaction never
// reached the shared Storage in the first place, so it is also kept out
// of every secondary mapping's Storage, not just the primary one.
func (tx *StorageTransaction[E]) Flush(ctx context.Context) {
	tx.mu.Lock()
	deletedKeys := make([]storage.Key, 0, len(tx.deleted))
	for k := range tx.deleted {
		deletedKeys = append(deletedKeys, k)
	}
	deletedValues := make([]*E, 0, len(tx.deletedValue))
	for _, v := range tx.deletedValue {
		deletedValues = append(deletedValues, v)
	}
	tx.mu.Unlock()

	tx.primary.Flush(func(key storage.Key, value *E) {
		tx.mu.Lock()
		isDeleted := tx.deleted[key]
		tx.mu.Unlock()
		if isDeleted {
			return
		}
		tx.store.Cache(key, value)
	})

	for name, ovl := range tx.secondary {
		m := tx.secondaryMap[name]
		skip := make(map[storage.Key]bool, len(deletedValues))
		for _, v := range deletedValues {
			skip[m.KeyOf(v)] = true
		}
		ovl.Flush(func(key storage.Key, value *E) {
			if skip[key] {
				return
			}
			m.Set(key, value)
		})
	}

	for _, k := range deletedKeys {
		tx.store.Uncache(k)
	}

	tx.mu.Lock()
	tx.created = make(map[storage.Key]bool)
	tx.deleted = make(map[storage.Key]bool)
	tx.deletedValue = make(map[storage.Key]*E)
	tx.mu.Unlock()
}

// Finish releases every outstanding take this transaction holds, across
// every mapping, and discards all local state, committed or not, the
// deferred cleanup step a pool exit always runs.
func (tx *StorageTransaction[E]) Finish() {
	tx.primary.Finish()
	for _, ovl := range tx.secondary {
		ovl.Finish()
	}
	tx.mu.Lock()
	tx.created = make(map[storage.Key]bool)
	tx.deleted = make(map[storage.Key]bool)
	tx.deletedValue = make(map[storage.Key]*E)
	tx.mu.Unlock()
}

// Entry returns a StorageEntry bound to key within the primary mapping,
// for the force-take/await-restoration access pattern.
func (tx *StorageTransaction[E]) Entry(key storage.Key) *StorageEntry[E] {
	return &StorageEntry[E]{tx: tx, key: key}
}

// MappingEntry returns a query facade bound to main within the named
// secondary mapping, for the force-take-every-subkey/await-restoration
// access pattern a collection lookup needs (e.g. every widget under one
// owner in a "by_owner" mapping).
func (tx *StorageTransaction[E]) MappingEntry(mapping string, main storage.Key) *MappingEntry[E] {
	return &MappingEntry[E]{tx: tx, mapping: mapping, main: main}
}
