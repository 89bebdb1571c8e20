package storage

// Mapping is the shared surface of DoubleSideMap and DoubleSideCollectionMap,
// and of IdentityMap, which proxies it while adding
// take/release bookkeeping. Natural always returns a slice: a
// flat mapping returns zero or one element, a collection mapping returns
// zero or more. This is a deliberate Go-idiomatic flattening of the
// original's "scalar for flat maps, a collection for grouped maps",
// encoding that distinction in the type system would require a second,
// near-duplicate interface for no behavioral gain, since callers already
// branch on mapping kind, not on Natural's static return type.
type Mapping[E any] interface {
	// Set assigns value under key. A Void key is a silent no-op.
	Set(key Key, value *E)
	// Get returns the value stored at key, if any.
	Get(key Key) (*E, bool)
	// Delete removes whatever is stored at key.
	Delete(key Key)
	// Contains reports whether key is present.
	Contains(key Key) bool
	// KeyOf returns value's key: the memoized reverse-index entry if
	// present, otherwise the freshly-generated key.
	KeyOf(value *E) Key
	// Add is Set(KeyOf(value), value).
	Add(value *E)
	// Remove is Delete(KeyOf(value)).
	Remove(value *E)
	// Has reports whether value is stored under its own key.
	Has(value *E) bool
	// Subkey derives the concrete key under which value would be stored
	// when inserted against the grouping dimension main.
	Subkey(main Key, value *E) Key
	// Subkeys yields every concrete key currently stored under main.
	Subkeys(main Key) []Key
	// Natural returns every value currently stored under main.
	Natural(main Key) []*E
	// Values returns every value currently stored, in unspecified order.
	Values() []*E
	// EmptyCopy returns a new, empty Mapping with the same keying logic.
	EmptyCopy() Mapping[E]
}
