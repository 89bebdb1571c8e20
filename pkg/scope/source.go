package scope

import (
	"context"

	"github.com/cuemby/overlaydb/pkg/storage"
)

// DataSource is the optional per-entity restoration and persistence
// collaborator contract: Identify confirms an entity
// exists in the backing store without fully loading it, Restore populates
// a taken value's attributes, Writable prepares a value for mutation
// against the backing store (e.g. a row-level lock), Flush persists a
// value that was changed, and Release lets go of whatever backing-store
// resource Writable acquired.
type DataSource[E any] interface {
	Identify(ctx context.Context, key storage.Key) (bool, error)
	Restore(ctx context.Context, key storage.Key, value *E) error
	Writable(ctx context.Context, key storage.Key, value *E) error
	Flush(ctx context.Context, key storage.Key, value *E) error
	Release(ctx context.Context, key storage.Key) error
}
