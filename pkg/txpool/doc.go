// Package txpool ties pkg/lock, pkg/overlay, and pkg/scope together into
// a cross-scope transaction.
//
//	Pool
//	 ├─ scopes  map[string]ScopeBinding   (topologically ordered by Deps)
//	 └─ cache   *Cache                    (Persistent or OneTime)
//
//	Enter(ctx, writes...) *Entry
//	 1. attach a fresh reentry token to ctx
//	 2. lock every WriteRequest, in the order given
//	 3. for each scope, in dependency order: reuse the cached Session
//	    (Reload-ing its overlay first), or Begin a new one and cache it
//	 4. pre-take each WriteRequest's entity writable into its own scope's
//	    Session.Overlay, now that every Session exists
//
//	Exit(commit)
//	 1. Commit (or Rollback) every open Session in parallel
//	 2. always: Finish every Session not held by a Persistent cache, forget
//	    OneTime cache entries, and release every lock acquired by Enter
//
// A scope with no declared write requests still participates in Enter:
// write requests only gate locking and pre-taking, not which scopes open a
// session. Every registered scope is walked on every entry. A Persistent
// cache's Session is never Finished at Exit; its overlay's outstanding
// takes carry over until the next Enter's Reload re-takes them into a
// fresh overlay and finishes the old one.
//
// WriteRequest and ScopeBinding are the type-erasure boundaries in this
// package: locking an entity requires its lock.StorageLockClient[E], so
// writeRequest[E] holds E and exposes only E-free methods, and Bind wraps
// a scope.Scope[E] in the small generic adapter scopeBinding[E] the same
// way. SessionHandle needs no adapter: the scope.Session[E] methods a Pool
// drives never mention E in their signatures, so *scope.Session[E]
// satisfies it directly.
package txpool
