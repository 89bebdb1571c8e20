package scope

import (
	"context"
	"fmt"

	"github.com/cuemby/overlaydb/pkg/log"
	"github.com/cuemby/overlaydb/pkg/overlay"
)

// Session is one pool entry's live view of a Scope: the backing-store
// Transaction (if any), the DataSource built against it (if any), and the
// copy-on-write overlay over the Scope's Storage. It is the concrete
// thing a pool entry walks scopes (Deps first) to build one of, per spec
// §4.8.
type Session[E any] struct {
	Scope   *Scope[E]
	Backend Transaction
	Source  DataSource[E]
	Overlay *overlay.StorageTransaction[E]
}

// Begin opens a fresh Session for scope: a backing-store transaction (if
// scope.CreateTransaction is set), a DataSource over it (if
// scope.CreateSource is set), and a new copy-on-write overlay.
func Begin[E any](ctx context.Context, sc *Scope[E]) (*Session[E], error) {
	sess := &Session[E]{
		Scope:   sc,
		Overlay: overlay.NewStorageTransaction[E](sc.Storage),
	}

	if sc.CreateTransaction != nil {
		backend, err := sc.CreateTransaction(ctx)
		if err != nil {
			return nil, fmt.Errorf("scope %s: begin transaction: %w", sc.Name, err)
		}
		sess.Backend = backend
	}

	if sc.CreateSource != nil {
		source, err := sc.CreateSource(ctx, sess.Backend)
		if err != nil {
			return nil, fmt.Errorf("scope %s: create source: %w", sc.Name, err)
		}
		sess.Source = source
	}

	return sess, nil
}

// RestoreFunc adapts this session's DataSource.Restore to overlay's
// RestoreFunc shape, for use with StorageEntry/AwaitRestoration.
func (sess *Session[E]) RestoreFunc(key any) overlay.RestoreFunc[E] {
	if sess.Source == nil {
		return nil
	}
	return func(ctx context.Context, value *E) error {
		return sess.Source.Restore(ctx, key, value)
	}
}

// Commit pushes every dirty key through the DataSource, if any (Identify,
// Writable, Flush, Release in that order, per key), flushes the overlay
// back into the Scope's Storage, then commits the backing-store
// transaction, if any.
func (sess *Session[E]) Commit(ctx context.Context) error {
	if err := sess.flushSource(ctx); err != nil {
		return err
	}
	sess.Overlay.Flush(ctx)
	if sess.Backend == nil {
		return nil
	}
	if err := sess.Backend.DoCommit(ctx); err != nil {
		log.WithScope(sess.Scope.Name).Warn().Err(err).Msg("commit failed")
		return fmt.Errorf("scope %s: commit: %w", sess.Scope.Name, err)
	}
	return nil
}

// flushSource drives the DataSource for every key the overlay has written
// to since it was opened, in the order the backing-store collaborator
// contract expects: confirm the key's prior existence, prepare it for
// mutation, persist it, then release whatever Writable acquired.
func (sess *Session[E]) flushSource(ctx context.Context) error {
	if sess.Source == nil {
		return nil
	}
	for _, key := range sess.Overlay.DirtyKeys() {
		value, ok := sess.Overlay.Peek(key)
		if !ok {
			continue
		}
		if _, err := sess.Source.Identify(ctx, key); err != nil {
			return fmt.Errorf("scope %s: identify %v: %w", sess.Scope.Name, key, err)
		}
		if err := sess.Source.Writable(ctx, key, value); err != nil {
			return fmt.Errorf("scope %s: writable %v: %w", sess.Scope.Name, key, err)
		}
		if err := sess.Source.Flush(ctx, key, value); err != nil {
			log.WithScope(sess.Scope.Name).Warn().Err(err).Interface("key", key).Msg("source flush failed")
			return fmt.Errorf("scope %s: flush %v: %w", sess.Scope.Name, key, err)
		}
		if err := sess.Source.Release(ctx, key); err != nil {
			return fmt.Errorf("scope %s: release %v: %w", sess.Scope.Name, key, err)
		}
	}
	return nil
}

// Rollback releases the DataSource's hold on every dirty key, then rolls
// back the backing-store transaction, if any, discarding the overlay's
// pending writes without flushing them.
func (sess *Session[E]) Rollback(ctx context.Context) error {
	if sess.Source != nil {
		for _, key := range sess.Overlay.DirtyKeys() {
			if err := sess.Source.Release(ctx, key); err != nil {
				log.WithScope(sess.Scope.Name).Warn().Err(err).Interface("key", key).Msg("source release on rollback failed")
			}
		}
	}
	if sess.Backend == nil {
		return nil
	}
	if err := sess.Backend.DoRollback(ctx); err != nil {
		log.WithScope(sess.Scope.Name).Warn().Err(err).Msg("rollback failed")
		return fmt.Errorf("scope %s: rollback: %w", sess.Scope.Name, err)
	}
	return nil
}

// Finish releases every outstanding take the overlay holds. It always
// runs, committed or rolled back.
func (sess *Session[E]) Finish() {
	sess.Overlay.Finish()
}

// Reload rotates this session's overlay: it builds a fresh one, re-takes
// every key the old overlay still held resident, then finishes the old
// one. Re-taking before releasing closes the residency gap a Persistent
// Cache would otherwise leave between one pool entry's Exit and the
// next's Enter, the guarantee that lets the next entry see whatever the
// prior one committed without the value getting evicted in between.
func (sess *Session[E]) Reload(ctx context.Context) error {
	old := sess.Overlay
	keys := old.ResidentKeys()
	fresh := overlay.NewStorageTransaction[E](sess.Scope.Storage)
	for _, key := range keys {
		fresh.Take(key)
	}
	sess.Overlay = fresh
	old.Finish()
	return nil
}
