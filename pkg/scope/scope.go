// Package scope ties one storage.Storage to the backing-store collaborator
// that keeps it honest: a Scope bundles the Storage, a factory for the
// backing store's own transaction object, and an optional DataSource
// factory for restoring, writing, and releasing entities against that
// backing store.
package scope

import (
	"context"

	"github.com/cuemby/overlaydb/pkg/storage"
)

// Transaction is the backing-store collaborator contract: a
// transaction object with commit and rollback operations, invoked exactly
// once each at pool exit. pkg/scope/boltscope and pkg/scope/remotescope
// are concrete implementations of it.
type Transaction interface {
	DoCommit(ctx context.Context) error
	DoRollback(ctx context.Context) error
}

// Scope describes how one entity type's Storage is backed: its identity
// maps, how to open a fresh backing-store Transaction, how to build a
// DataSource over that transaction, and which other scopes (by name) must
// be constructed first within the same pool entry.
type Scope[E any] struct {
	Name    string
	Storage *storage.Storage[E]
	Deps    []string

	// CreateTransaction opens a fresh backing-store transaction for one
	// pool entry. It may be nil for a purely in-memory scope with no
	// backing store to commit or roll back.
	CreateTransaction func(ctx context.Context) (Transaction, error)

	// CreateSource builds this scope's DataSource against an already-open
	// backing-store transaction. It may be nil for a scope whose entities
	// never need restoration from, or persistence to, an external store.
	CreateSource func(ctx context.Context, txn Transaction) (DataSource[E], error)
}
