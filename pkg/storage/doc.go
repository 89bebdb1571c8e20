/*
Package storage provides the schema-agnostic, in-memory identity maps that
back every scope's cached entities, plus the process-wide binding registry
that lets an arbitrary entity pointer be traced back to its owning
Storage.

# Architecture

	┌─────────────────────── STORAGE LAYER ────────────────────────┐
	│                                                                │
	│  Mapping[E]            shared surface: Set/Get/Delete/KeyOf   │
	│    ├─ DoubleSideMap[E]            flat key -> *E, weak reverse│
	│    └─ DoubleSideCollectionMap[E]  main -> sub -> *E, weak rev.│
	│                                                                │
	│  IdentityMap[E]         wraps a Mapping[E], adds take/release │
	│                         reference counting        │
	│                                                                │
	│  Storage[E]             a primary IdentityMap[E] plus named   │
	│                         secondary Mapping[E]s, an eviction     │
	│                         policy (CacheDefault/Void/Weak), and   │
	│                         registration in the process-wide       │
	│                         Bind/Of registry                       │
	│                                                                │
	│  BoltStorage[E]         a Storage[E] fronting an on-disk       │
	│                         bbolt bucket as its backing collator   │
	└────────────────────────────────────────────────────────────────┘

# Weak references

DoubleSideMap and DoubleSideCollectionMap's reverse indices are built on
weak.Pointer[E] and runtime.AddCleanup: the reverse index never keeps an
entity alive on its own. This requires E to be known statically at the
call site, which Go's weak package enforces by construction; every type
in this package up through Storage[E] stays generic for exactly that
reason.

The one place this module needs dynamic polymorphism across unrelated
entity types, tracing an arbitrary *E back to whichever Storage cached
it, is handled by a single, narrow type-erasure boundary: Bind and Of
key a process-wide map by the bound value's address (reflect.Value.Pointer)
and store the owning *Storage[E] boxed as any, still registering its
liveness cleanup from within generic code where E is known. Nothing
outside storage.go needs to erase a type to use this package.

# Cache policies

CacheDefault keeps entries resident until an explicit Uncache. CacheVoid
evicts the instant a take count reaches zero. CacheWeak does the same but
never reports the eviction through Uncache's return value: under
CacheWeak, losing the strong reference is not itself an event worth a
caller-visible signal.
*/
package storage
