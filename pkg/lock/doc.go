/*
Package lock provides fine-grained, async-aware mutual exclusion over
storage keys.

# Architecture

	┌───────────────────────── LOCK LAYER ──────────────────────────┐
	│                                                                 │
	│  Taker                   residency adapter: pins a key while a │
	│                          lock on it is held (IdentityMap or     │
	│                          Storage, via NewIdentityMapTaker /      │
	│                          NewStorageTaker)                       │
	│                                                                 │
	│  LockMap                 weak-valued key -> *GlobalLock factory │
	│  GlobalLock              one key's mutex + residency take       │
	│                                                                 │
	│  LockClient              re-entrant acquire/release against one │
	│                          LockMap, keyed by a context-carried    │
	│                          reentry token                          │
	│  IdentityMapLockClient   convenience constructor over an         │
	│                          IdentityMap[E]                          │
	│                                                                 │
	│  CompositeLock           several (mapping, client, key) entries │
	│                          acquired/released together, in         │
	│                          parallel via errgroup                  │
	│  StorageLockClient       builds a CompositeLock spanning a       │
	│                          Storage's primary key plus every        │
	│                          secondary mapping's key for one value   │
	└──────────────────────────────────────────────────────────────────┘

# Re-entrancy

Go has no portable equivalent of asyncio.current_task(), so a LockClient
cannot detect on its own that two Acquire calls for the same key came from
"the same logical holder." Callers that want re-entrant acquisition must
derive a context with lock.WithReentryToken and pass it down; a context
with no token never re-enters, and every Acquire for it blocks as a fresh
holder would.

# Cancellation

Acquire always respects ctx. Because the underlying primitive is a plain
sync.Mutex, a cancelled Acquire still completes the mutex lock in the
background and immediately releases it, this avoids leaking an unbounded
number of blocked mutex locks across repeated cancelled attempts, at the
cost of one extra lock/unlock cycle per cancellation.
*/
package lock
