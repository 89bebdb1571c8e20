// Package overlay implements the copy-on-write storage transaction (spec
// §4.6): a per-transaction view over a storage.Storage that shadows taken
// entities locally, only writing mutations back (or discarding them) at
// Flush/Finish, and never mutating the shared Storage in place while the
// transaction is open.
package overlay

// Cloneable lets an entity opt into copy-on-write tracking: the first
// write-access to a Cloneable value within an overlay clones it, so
// concurrent readers holding the original value from the shared Storage
// never see a half-applied mutation. Entities that do not implement
// Cloneable are tracked by pointer identity only, matching the original's
// isinstance(obj, Cloneable) check via a type assertion.
type Cloneable interface {
	Clone() any
}

// OptionalClone returns a writable copy of value if it implements
// Cloneable, or value itself otherwise. A non-Cloneable entity is mutated
// in place by design, this module makes no promise of isolation for it,
// exactly as the original leaves non-Cloneable objects unprotected.
func OptionalClone[E any](value *E) *E {
	if value == nil {
		return nil
	}
	c, ok := any(value).(Cloneable)
	if !ok {
		return value
	}
	cloned := c.Clone()
	typed, ok := cloned.(*E)
	if !ok {
		return value
	}
	return typed
}
