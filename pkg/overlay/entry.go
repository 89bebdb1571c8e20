package overlay

import (
	"context"
	"fmt"

	"github.com/cuemby/overlaydb/pkg/storage"
)

// StorageEntry is a handle on one key within a StorageTransaction's
// primary mapping, for the original's subscript-driven access pattern
// (`tx[key]` forces a Take of any untaken key and then awaits restoration
// before handing back the value). Go has no operator overload for
// indexing, so Get and Call are the idiomatic stand-ins: both force-take
// the key the first time they are called and restore it at most once.
type StorageEntry[E any] struct {
	tx  *StorageTransaction[E]
	key storage.Key
}

// Get force-takes the entry's key if not already taken, awaits fn's
// restoration exactly once, and returns the resulting value.
func (e *StorageEntry[E]) Get(ctx context.Context, fn RestoreFunc[E]) (*E, error) {
	value, ok := e.tx.Take(e.key)
	if !ok {
		return nil, fmt.Errorf("overlay: key %v not found", e.key)
	}
	if err := e.tx.AwaitRestoration(ctx, e.key, value, fn); err != nil {
		return nil, err
	}
	return value, nil
}

// Call is Get followed by invoking apply against the resolved value.
func (e *StorageEntry[E]) Call(ctx context.Context, fn RestoreFunc[E], apply func(*E) error) error {
	value, err := e.Get(ctx, fn)
	if err != nil {
		return err
	}
	return apply(value)
}

// MappingEntry is a handle on one grouping key (main) within a named
// secondary mapping of a StorageTransaction, the collection-mapping
// analogue of StorageEntry: Get force-takes every subkey currently
// grouped under main that this transaction hasn't already taken, awaits
// restoration for each exactly once, and returns the resulting values.
type MappingEntry[E any] struct {
	tx      *StorageTransaction[E]
	mapping string
	main    storage.Key
}

// Get force-takes every subkey under this entry's main key within its
// mapping, awaits fn's restoration once per value, and returns the
// resulting values: empty for a main key with nothing grouped under it,
// one or more otherwise.
func (e *MappingEntry[E]) Get(ctx context.Context, fn RestoreFunc[E]) ([]*E, error) {
	m, ok := e.tx.secondaryMap[e.mapping]
	if !ok {
		return nil, fmt.Errorf("overlay: mapping %s not registered", e.mapping)
	}
	ovl := e.tx.secondary[e.mapping]
	subkeys := m.Subkeys(e.main)
	values := make([]*E, 0, len(subkeys))
	for _, key := range subkeys {
		value, ok := ovl.Take(key)
		if !ok {
			continue
		}
		if err := ovl.AwaitRestoration(ctx, key, value, fn); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}
