// Package txpool coordinates one or more scope.Scope instances as a
// single cross-scope transaction: entering a pool pre-locks
// and pre-takes a declared write-set, opens one scope.Session per scope
// (dependencies first), and exiting commits or rolls back every scope in
// parallel before always releasing every lock.
package txpool

import (
	"context"
	"fmt"

	"github.com/cuemby/overlaydb/pkg/lock"
	"github.com/cuemby/overlaydb/pkg/scope"
)

// WriteRequest is one entity a pool entry intends to mutate: it knows how
// to lock itself and how to pre-take itself writable into its scope's
// session overlay once that session exists, but hides its entity type
// behind this non-generic interface so a Pool.Enter call can accept write
// requests for unrelated entity types in one slice, the same way
// ScopeBinding lets a Pool hold scopes for unrelated entity types.
type WriteRequest interface {
	Mapping() string
	Lock(ctx context.Context) (unlock func() error, err error)
	TakeWritable(ctx context.Context, sess SessionHandle) error
}

type writeRequest[E any] struct {
	client *lock.StorageLockClient[E]
	value  *E
}

// Writable declares value as part of a pool entry's write-set: entering
// the pool will acquire a StorageLock through client, spanning its
// storage's primary key and every secondary mapping it was built with,
// derived from value, before any scope's session is opened.
//
// client must be the same *lock.StorageLockClient built once for a given
// Storage and shared by every caller that writes to it, a fresh client
// per call would build a fresh, unshared LockMap and two requests for the
// same entity across different calls would never actually contend.
func Writable[E any](client *lock.StorageLockClient[E], value *E) WriteRequest {
	return writeRequest[E]{client: client, value: value}
}

func (w writeRequest[E]) Mapping() string { return w.client.Mapping() }

func (w writeRequest[E]) Lock(ctx context.Context) (func() error, error) {
	sl, err := w.client.Lock(ctx, w.value)
	if err != nil {
		return nil, err
	}
	return sl.Release, nil
}

// TakeWritable pre-takes value into sess's overlay, writable: if the
// entity is already resident it is taken and cloned in place, otherwise
// its slot is reserved (the underlying Take still happens, and marks the
// key's residency) and w.value is installed directly as the new entity,
// so a handler body that opens this entry next (via StorageTransaction.
// Entry/MappingEntry) sees a value already there to mutate rather than
// one it must construct itself.
func (w writeRequest[E]) TakeWritable(ctx context.Context, sess SessionHandle) error {
	typed, ok := sess.(*scope.Session[E])
	if !ok {
		return fmt.Errorf("txpool: session type mismatch for scope %s", w.client.Mapping())
	}
	key := w.client.KeyOf(w.value)
	if _, ok := typed.Overlay.TakeWritable(key); ok {
		return nil
	}
	typed.Overlay.Save(key, w.value)
	return nil
}
