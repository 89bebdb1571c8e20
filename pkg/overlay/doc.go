/*
Package overlay implements the copy-on-write transaction view over a
storage.Storage.

# Architecture

	┌──────────────────────── OVERLAY LAYER ─────────────────────────┐
	│                                                                  │
	│  Cloneable                  opt-in copy-on-write for an entity   │
	│                                                                  │
	│  IdentityMapTransaction[E]  local shadow of one IdentityMap:     │
	│                             Take/Release refcounting, the real   │
	│                             clone-on-first-write, and Flush's    │
	│                             push-back of whatever got updated    │
	│                                                                  │
	│  StorageTransaction[E]      adds Save/Remember/Delete/New/       │
	│                             Deleted on top, and decides at       │
	│                             Flush what reaches the shared        │
	│                             Storage versus what was only ever    │
	│                             local                                │
	│                                                                  │
	│  StorageEntry[E]            force-take-then-restore handle on    │
	│                             one key, replacing the original's    │
	│                             subscript operator                   │
	└────────────────────────────────────────────────────────────────────┘

# Restoration

A DataSource's restore callback is awaited at most once per key per
transaction, AwaitRestoration tracks this with a restored set exactly the
way the original does, so a value Taken twice within the same transaction
is only ever hydrated from the backing store once.

# What Flush does not do

Flush never releases a take, it only decides which local values are
worth writing back to the shared Storage. Finish is the operation that
releases every outstanding take at once, and it always runs, committed or rolled
back, which is why callers of this package keep it in a deferred branch
rather than calling it conditionally.
*/
package overlay
