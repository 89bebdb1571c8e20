package overlay

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/overlaydb/pkg/log"
	"github.com/cuemby/overlaydb/pkg/metrics"
	"github.com/cuemby/overlaydb/pkg/storage"
)

// RestoreFunc populates value's attributes from whatever backs the
// identity map, a DataSource's Restore, typically. It is awaited at most
// once per key per transaction.
type RestoreFunc[E any] func(ctx context.Context, value *E) error

// IdentityMapTransaction is the copy-on-write layer over one
// storage.IdentityMap: it shadows every key it Takes locally, clones a
// key's value the first time it is made writable, and only pushes
// updated values back into the real identity map at Flush.
type IdentityMapTransaction[E any] struct {
	mu       sync.Mutex
	mapping  string
	source   *storage.IdentityMap[E]
	local    map[storage.Key]*E
	takes    map[storage.Key]int
	writable map[storage.Key]bool
	updated  map[storage.Key]bool
	restored map[storage.Key]bool
}

// NewIdentityMapTransaction opens an overlay over source.
func NewIdentityMapTransaction[E any](mapping string, source *storage.IdentityMap[E]) *IdentityMapTransaction[E] {
	return &IdentityMapTransaction[E]{
		mapping:  mapping,
		source:   source,
		local:    make(map[storage.Key]*E),
		takes:    make(map[storage.Key]int),
		writable: make(map[storage.Key]bool),
		updated:  make(map[storage.Key]bool),
		restored: make(map[storage.Key]bool),
	}
}

// Register records key as managed by this overlay without taking it from
// the source map yet, used for keys the caller will populate itself via
// Push (e.g. a brand-new entity with no prior existence to take from).
func (t *IdentityMapTransaction[E]) Register(key storage.Key) {
	if storage.IsVoid(key) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.local[key]; !ok {
		t.local[key] = nil
	}
}

// Take returns key's value, taking it from the source map the first time
// this overlay sees it and memoizing the real take count so repeated
// local Takes never over-take the source.
func (t *IdentityMapTransaction[E]) Take(key storage.Key) (*E, bool) {
	if storage.IsVoid(key) {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.takes[key]++
	first := t.takes[key] == 1
	if v, ok := t.local[key]; ok && v != nil {
		if first {
			t.source.Take(key)
		}
		return v, true
	}

	take := t.source.Get
	if first {
		take = t.source.Take
	}
	v, ok := take(key)
	if !ok {
		return nil, false
	}
	t.local[key] = v
	metrics.OverlayTakenKeys.WithLabelValues(t.mapping).Inc()
	return v, true
}

// Peek returns key's current value without taking it: the local overlay
// value if one exists, otherwise whatever is resident in the source map.
func (t *IdentityMapTransaction[E]) Peek(key storage.Key) (*E, bool) {
	t.mu.Lock()
	if v, ok := t.local[key]; ok && v != nil {
		t.mu.Unlock()
		return v, true
	}
	t.mu.Unlock()
	return t.source.Get(key)
}

// SetLocal installs value as key's local overlay value without taking it
// from the source map or marking it updated, used to seed a freshly
// restored value into the overlay before it has been mutated.
func (t *IdentityMapTransaction[E]) SetLocal(key storage.Key, value *E) {
	if storage.IsVoid(key) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.local[key] = value
}

// TakeAll is Take over every key in keys, skipping any that are not
// found rather than failing the whole batch.
func (t *IdentityMapTransaction[E]) TakeAll(keys []storage.Key) []*E {
	values := make([]*E, 0, len(keys))
	for _, k := range keys {
		if v, ok := t.Take(k); ok {
			values = append(values, v)
		}
	}
	return values
}

// MakeWritable clones key's value (if it is Cloneable and not already
// cloned by this overlay) and marks it updated, so Flush writes it back.
func (t *IdentityMapTransaction[E]) MakeWritable(key storage.Key) (*E, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.local[key]
	if !ok || v == nil {
		return nil, false
	}
	if !t.writable[key] {
		v = OptionalClone(v)
		t.local[key] = v
		t.writable[key] = true
	}
	t.updated[key] = true
	return v, true
}

// MakeReadonly clears the updated flag for key so Flush no longer writes
// it back. The writable flag and whatever clone already happened are
// kept, so a later MakeWritable call reuses the same local clone rather
// than cloning twice.
func (t *IdentityMapTransaction[E]) MakeReadonly(key storage.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.updated, key)
}

// Push installs value directly as key's local overlay value, marking it
// updated. Used when a caller constructs a replacement value outright
// rather than mutating the one Take returned.
func (t *IdentityMapTransaction[E]) Push(key storage.Key, value *E) {
	if storage.IsVoid(key) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.local[key] = value
	t.writable[key] = true
	t.updated[key] = true
}

// Release decrements key's local take count, releasing the real take on
// the source map once it reaches zero. The local overlay value is kept
// until Flush or Finish regardless.
func (t *IdentityMapTransaction[E]) Release(key storage.Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.takes[key]
	if !ok || n <= 0 {
		return storage.ErrNotTaken
	}
	n--
	if n == 0 {
		delete(t.takes, key)
		if err := t.source.Release(key); err != nil {
			return err
		}
	} else {
		t.takes[key] = n
	}
	return nil
}

// UpdatedKeys returns every key currently marked dirty (mutated via
// MakeWritable or Push since the last Flush), in unspecified order.
func (t *IdentityMapTransaction[E]) UpdatedKeys() []storage.Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]storage.Key, 0, len(t.updated))
	for k := range t.updated {
		keys = append(keys, k)
	}
	return keys
}

// ResidentKeys returns every key this overlay currently holds at least one
// outstanding take on, in unspecified order.
func (t *IdentityMapTransaction[E]) ResidentKeys() []storage.Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]storage.Key, 0, len(t.takes))
	for k := range t.takes {
		keys = append(keys, k)
	}
	return keys
}

// AwaitRestoration runs fn against value exactly once per key for the
// lifetime of this overlay; subsequent calls for the same key are no-ops
// that return nil.
func (t *IdentityMapTransaction[E]) AwaitRestoration(ctx context.Context, key storage.Key, value *E, fn RestoreFunc[E]) error {
	t.mu.Lock()
	if t.restored[key] || fn == nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	timer := metrics.NewTimer()
	err := fn(ctx, value)
	timer.ObserveDuration(metrics.RestorationDuration)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RestorationsTotal.WithLabelValues(outcome).Inc()

	lg := log.WithMapping(t.mapping).With().Interface("key", key).Logger()
	if err != nil {
		lg.Warn().Err(err).Msg("restoration failed")
		return fmt.Errorf("overlay: restore %v: %w", key, err)
	}

	t.mu.Lock()
	t.restored[key] = true
	t.mu.Unlock()
	lg.Debug().Msg("restored")
	return nil
}

// Flush writes every updated local value back to the source map's
// underlying storage and clears the updated set. It does not release
// takes, call Finish for that.
func (t *IdentityMapTransaction[E]) Flush(push func(key storage.Key, value *E)) {
	timer := metrics.NewTimer()
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.updated {
		if v := t.local[key]; v != nil {
			push(key, v)
		}
	}
	t.updated = make(map[storage.Key]bool)
	timer.ObserveDuration(metrics.OverlayFlushDuration)
}

// Finish releases every take this overlay still holds against the source
// map, in unspecified order, and discards all local state. It is the
// deferred cleanup step a transaction always runs on exit, committed or
// not.
func (t *IdentityMapTransaction[E]) Finish() {
	t.mu.Lock()
	keys := make([]storage.Key, 0, len(t.takes))
	for k := range t.takes {
		keys = append(keys, k)
	}
	t.takes = make(map[storage.Key]int)
	t.local = make(map[storage.Key]*E)
	t.writable = make(map[storage.Key]bool)
	t.updated = make(map[storage.Key]bool)
	t.restored = make(map[storage.Key]bool)
	t.mu.Unlock()

	for _, k := range keys {
		_ = t.source.Release(k)
	}
	metrics.OverlayTakenKeys.WithLabelValues(t.mapping).Set(0)
}
