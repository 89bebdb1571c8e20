/*
Package scope ties a storage.Storage to its backing-store collaborator.

# Architecture

	┌───────────────────────── SCOPE LAYER ──────────────────────────┐
	│                                                                  │
	│  Transaction          backing-store contract: DoCommit/         │
	│                       DoRollback, implemented concretely by      │
	│                       pkg/scope/boltscope and                    │
	│                       pkg/scope/remotescope                      │
	│                                                                  │
	│  DataSource[E]        Identify/Restore/Writable/Flush/Release    │
	│                       against one open Transaction               │
	│                                                                  │
	│  Scope[E]             Storage + Deps + factories for the above   │
	│  Session[E]           one pool entry's live Scope: backend       │
	│                       Transaction, DataSource, and a fresh        │
	│                       copy-on-write overlay.StorageTransaction    │
	└────────────────────────────────────────────────────────────────────┘

A Scope with a nil CreateTransaction and nil CreateSource is a purely
in-memory scope: its Session has no backend to commit or roll back, and
Commit only ever flushes the overlay into the shared Storage. This is the
common case for entities that exist only for the lifetime of a process
and were never meant to survive a restart.
*/
package scope
