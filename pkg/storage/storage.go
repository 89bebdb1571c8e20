package storage

import (
	"reflect"
	"runtime"
	"sync"
)

// UncachePolicy selects what a Storage does with an entry once its take
// count drops back to zero. The three variants replace the
// original's three concrete Storage subclasses with one type switching on
// a small enum, since Go has no equivalent of overriding a single method
// in a subclass for this little logic.
type UncachePolicy int

const (
	// CacheDefault keeps entries resident once cached; only an explicit
	// Uncache call evicts them.
	CacheDefault UncachePolicy = iota
	// CacheVoid evicts an entry the instant its take count reaches zero.
	CacheVoid
	// CacheWeak evicts an entry's strong reference once its take count
	// reaches zero, same as CacheVoid, but Uncache always reports false
	// for it, eviction under this policy is not an observable event,
	// it is the absence of a reason to keep the value alive.
	CacheWeak
)

// Storage bundles a primary identity map (keyed by an entity's own id)
// with zero or more secondary named identity maps, e.g. a "by_owner"
// collection map alongside the primary "by_id" map. Every named mapping,
// primary and secondary alike, has its own independent take count: Cache
// and Uncache keep every mapping's resident value in sync, and Uncache
// under CacheWeak only purges once none of them still has an outstanding
// take for the value.
type Storage[E any] struct {
	mu        sync.RWMutex
	name      string
	policy    UncachePolicy
	primary   *IdentityMap[E]
	secondary map[string]*IdentityMap[E]
}

// NewStorage constructs a named Storage over a fresh primary identity map
// keyed by hash.
func NewStorage[E any](name string, policy UncachePolicy, hash HashFunc[E]) *Storage[E] {
	return &Storage[E]{
		name:      name,
		policy:    policy,
		primary:   NewIdentityMap[E](NewDoubleSideMap[E](hash)),
		secondary: make(map[string]*IdentityMap[E]),
	}
}

// NewVoidStorage is NewStorage with CacheVoid.
func NewVoidStorage[E any](name string, hash HashFunc[E]) *Storage[E] {
	return NewStorage[E](name, CacheVoid, hash)
}

// NewWeakStorage is NewStorage with CacheWeak.
func NewWeakStorage[E any](name string, hash HashFunc[E]) *Storage[E] {
	return NewStorage[E](name, CacheWeak, hash)
}

// Name returns the storage's name, used only for logging and metrics
// labels.
func (s *Storage[E]) Name() string { return s.name }

// Primary returns the underlying primary identity map, for collaborators
// (e.g. pkg/lock) that need to build their own Taker or LockClient
// directly against it rather than going through Storage.
func (s *Storage[E]) Primary() *IdentityMap[E] { return s.primary }

// AddMapping registers a secondary mapping under name, wrapping it in its
// own IdentityMap so it gets take/release bookkeeping independent of the
// primary map's. It only adds names not already present; re-registering an
// existing name is a no-op. It reports whether the mapping was added.
func (s *Storage[E]) AddMapping(name string, m Mapping[E]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.secondary[name]; exists {
		return false
	}
	s.secondary[name] = NewIdentityMap[E](m)
	return true
}

// Mapping returns the secondary identity map registered under name.
func (s *Storage[E]) Mapping(name string) (*IdentityMap[E], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.secondary[name]
	return m, ok
}

// MappingNames returns every registered secondary mapping's name, in
// unspecified order.
func (s *Storage[E]) MappingNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.secondary))
	for name := range s.secondary {
		names = append(names, name)
	}
	return names
}

// Cache stores value in the primary map under key and in every secondary
// mapping, and binds value to this Storage in the process-wide registry
// so Of(value) can find it later.
func (s *Storage[E]) Cache(key Key, value *E) {
	if IsVoid(key) || value == nil {
		return
	}
	s.mu.Lock()
	s.primary.Set(key, value)
	for _, m := range s.secondary {
		m.Add(value)
	}
	s.mu.Unlock()
	Bind(s, value)
}

// Uncache evicts key from every mapping. It reports whether the entry was
// removed, except under CacheWeak, where it always reports false: eviction
// there is not a caller-visible outcome, only a relaxation of what keeps
// the value alive. Under CacheWeak the eviction itself is also withheld,
// not just its report, if any mapping (primary or secondary) still has an
// outstanding take for the value's key within that mapping.
func (s *Storage[E]) Uncache(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.primary.Get(key)
	if !ok {
		return false
	}
	if s.policy == CacheWeak && s.anyMappingTakenLocked(value) {
		return false
	}
	s.purgeLocked(key, value)
	return s.policy != CacheWeak
}

// anyMappingTakenLocked reports whether value is still taken under its key
// in the primary map or any secondary mapping. Callers must hold s.mu.
func (s *Storage[E]) anyMappingTakenLocked(value *E) bool {
	if s.primary.IsTaken(s.primary.KeyOf(value)) {
		return true
	}
	for _, m := range s.secondary {
		if m.IsTaken(m.KeyOf(value)) {
			return true
		}
	}
	return false
}

func (s *Storage[E]) purgeLocked(key Key, value *E) {
	s.primary.Delete(key)
	for _, m := range s.secondary {
		m.Remove(value)
	}
}

// Take increments key's take count and returns its cached value.
func (s *Storage[E]) Take(key Key) (*E, bool) {
	return s.primary.Take(key)
}

// Release decrements key's take count. If the count reaches zero and the
// storage's policy is CacheVoid or CacheWeak, the entry is evicted as a
// side effect.
func (s *Storage[E]) Release(key Key) error {
	if err := s.primary.Release(key); err != nil {
		return err
	}
	if s.policy != CacheDefault && !s.primary.IsTaken(key) {
		s.Uncache(key)
	}
	return nil
}

// IsTaken reports whether key has an outstanding take.
func (s *Storage[E]) IsTaken(key Key) bool {
	return s.primary.IsTaken(key)
}

// ReleaseAll drops every outstanding take without evicting anything,
// mirroring IdentityMap.ReleaseAll. Callers that also want eviction must
// call Uncache themselves.
func (s *Storage[E]) ReleaseAll() {
	s.primary.ReleaseAll()
}

// Get returns the value cached under key, without affecting take counts.
func (s *Storage[E]) Get(key Key) (*E, bool) {
	return s.primary.Get(key)
}

// Contains reports whether key is cached in the primary map.
func (s *Storage[E]) Contains(key Key) bool {
	return s.primary.Contains(key)
}

// KeyOf returns value's key under the primary map.
func (s *Storage[E]) KeyOf(value *E) Key {
	return s.primary.KeyOf(value)
}

// registry is the process-wide, type-erased value -> owning-Storage index
// backing the package-level Bind/Of functions. Go's weak
// references require a static type parameter at the call site, so this
// boundary cannot itself use weak.Pointer directly; instead it tracks
// liveness by registering a runtime.AddCleanup against the bound value
// from inside the generic Bind function, where E is still statically
// known, and erases only the map's value slot (an *Storage[E] boxed as
// any) and its key (the bound value's address).
var registry = struct {
	mu sync.Mutex
	m  map[uintptr]any
}{m: make(map[uintptr]any)}

// Bind records that value currently belongs to s, for later lookup via
// Of. It is called automatically by Cache; exported for callers that
// cache entities by means other than Storage.Cache (e.g. a DataSource
// restoring a value directly into a mapping).
func Bind[E any](s *Storage[E], value *E) {
	if value == nil {
		return
	}
	addr := reflect.ValueOf(value).Pointer()
	registry.mu.Lock()
	registry.m[addr] = s
	registry.mu.Unlock()
	runtime.AddCleanup(value, forgetBinding, addr)
}

func forgetBinding(addr uintptr) {
	registry.mu.Lock()
	delete(registry.m, addr)
	registry.mu.Unlock()
}

// Of returns the Storage that value was last bound to, if any. The type
// assertion fails closed: a value address reused by an unrelated type
// after the original was collected reports not-found rather than a wrong
// Storage.
func Of[E any](value *E) (*Storage[E], bool) {
	if value == nil {
		return nil, false
	}
	addr := reflect.ValueOf(value).Pointer()
	registry.mu.Lock()
	boxed, ok := registry.m[addr]
	registry.mu.Unlock()
	if !ok {
		return nil, false
	}
	s, ok := boxed.(*Storage[E])
	return s, ok
}
