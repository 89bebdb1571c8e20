package txpool

import (
	"context"
	"fmt"

	"github.com/cuemby/overlaydb/pkg/lock"
	"github.com/cuemby/overlaydb/pkg/log"
	"github.com/cuemby/overlaydb/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Pool coordinates a fixed set of scopes as one cross-scope transaction
//. Scopes are topologically ordered by Deps once, at
// construction; every Enter walks them in that order.
type Pool struct {
	scopes map[string]ScopeBinding
	order  []string
	cache  *Cache
}

// New builds a Pool over scopes, ordering them so every scope's Deps are
// opened before it. It returns an error if scopes form a dependency
// cycle, or if a scope names a dependency that was never registered.
func New(mode CacheMode, scopes ...ScopeBinding) (*Pool, error) {
	byName := make(map[string]ScopeBinding, len(scopes))
	for _, s := range scopes {
		byName[s.Name()] = s
	}
	order, err := topoSort(byName)
	if err != nil {
		return nil, err
	}
	return &Pool{scopes: byName, order: order, cache: NewCache(mode)}, nil
}

func topoSort(byName map[string]ScopeBinding) ([]string, error) {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make(map[string]int, len(byName))
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("txpool: dependency cycle involving scope %s", name)
		}
		sc, ok := byName[name]
		if !ok {
			return fmt.Errorf("txpool: scope %s depends on unregistered scope %s", name, name)
		}
		state[name] = visiting
		for _, dep := range sc.Deps() {
			if _, ok := byName[dep]; !ok {
				return fmt.Errorf("txpool: scope %s depends on unregistered scope %s", name, dep)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = visited
		order = append(order, name)
		return nil
	}

	for name := range byName {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Entry is one open walk through a Pool: a declared write-set's locks,
// held for its duration, and the per-scope sessions built to service it.
type Entry struct {
	pool     *Pool
	ctx      context.Context
	sessions map[string]SessionHandle
	unlocks  []func() error
	timer    *metrics.Timer
}

// Enter acquires the lock for every declared write request, then opens or
// reloads a Session for every registered scope, in dependency order: a
// fresh scope gets a fresh Session, a scope the cache already holds gets
// reloaded (its overlay rotated onto a fresh one that re-takes every key
// the old one still held, before the old one finishes). Finally it
// pre-takes every write request's entity writable into its scope's
// session overlay, so the entry's body finds it already there to mutate.
// On any failure it releases whatever locks it already acquired before
// returning.
func (p *Pool) Enter(ctx context.Context, writes ...WriteRequest) (*Entry, error) {
	metrics.PoolActiveEntries.Inc()
	timer := metrics.NewTimer()
	ctx = lock.WithReentryToken(ctx, new(byte))

	lg := log.WithComponent("txpool")

	unlocks := make([]func() error, 0, len(writes))
	for _, w := range writes {
		unlock, err := w.Lock(ctx)
		if err != nil {
			releaseAll(unlocks)
			metrics.PoolActiveEntries.Dec()
			metrics.PoolEntriesTotal.WithLabelValues("lock_failed").Inc()
			lg.Warn().Err(err).Str("mapping", w.Mapping()).Msg("pool entry lock failed")
			return nil, fmt.Errorf("txpool: lock %s: %w", w.Mapping(), err)
		}
		unlocks = append(unlocks, unlock)
	}

	sessions := make(map[string]SessionHandle, len(p.order))
	for _, name := range p.order {
		if sess, ok := p.cache.Get(name); ok {
			if err := sess.Reload(ctx); err != nil {
				releaseAll(unlocks)
				metrics.PoolActiveEntries.Dec()
				metrics.PoolEntriesTotal.WithLabelValues("reload_failed").Inc()
				lg.Warn().Err(err).Str("scope", name).Msg("pool entry scope reload failed")
				return nil, fmt.Errorf("txpool: reload scope %s: %w", name, err)
			}
			sessions[name] = sess
			continue
		}
		sess, err := p.scopes[name].Begin(ctx)
		if err != nil {
			releaseAll(unlocks)
			metrics.PoolActiveEntries.Dec()
			metrics.PoolEntriesTotal.WithLabelValues("begin_failed").Inc()
			lg.Warn().Err(err).Str("scope", name).Msg("pool entry scope begin failed")
			return nil, fmt.Errorf("txpool: begin scope %s: %w", name, err)
		}
		sessions[name] = sess
		p.cache.Set(name, sess)
	}

	for _, w := range writes {
		sess, ok := sessions[w.Mapping()]
		if !ok {
			releaseAll(unlocks)
			metrics.PoolActiveEntries.Dec()
			metrics.PoolEntriesTotal.WithLabelValues("write_scope_missing").Inc()
			lg.Warn().Str("mapping", w.Mapping()).Msg("pool entry write request names unregistered scope")
			return nil, fmt.Errorf("txpool: write request for unregistered scope %s", w.Mapping())
		}
		if err := w.TakeWritable(ctx, sess); err != nil {
			releaseAll(unlocks)
			metrics.PoolActiveEntries.Dec()
			metrics.PoolEntriesTotal.WithLabelValues("take_writable_failed").Inc()
			lg.Warn().Err(err).Str("mapping", w.Mapping()).Msg("pool entry pre-take-writable failed")
			return nil, fmt.Errorf("txpool: take writable %s: %w", w.Mapping(), err)
		}
	}

	return &Entry{pool: p, ctx: ctx, sessions: sessions, unlocks: unlocks, timer: timer}, nil
}

func releaseAll(unlocks []func() error) {
	for _, u := range unlocks {
		_ = u()
	}
}

// Exit commits every scope's session in parallel if commit is true,
// otherwise rolls every one of them back, then releases every lock this
// entry acquired, regardless of the outcome. Under a OneTime cache every
// session is also finished here, so the next Enter opens a fresh one;
// under a Persistent cache the session and its overlay's outstanding
// takes live on, and the next Enter's reload step is what eventually
// finishes this exit's overlay, after re-taking everything it still held
// into a fresh one.
func (e *Entry) Exit(commit bool) error {
	defer func() {
		for _, name := range e.pool.order {
			if sess, ok := e.sessions[name]; ok && !e.pool.cache.Persistent() {
				sess.Finish()
			}
			e.pool.cache.Forget(name)
		}
		releaseAll(e.unlocks)
		metrics.PoolActiveEntries.Dec()
		e.timer.ObserveDuration(metrics.PoolEntryDuration)
	}()

	g, gctx := errgroup.WithContext(e.ctx)
	for name, sess := range e.sessions {
		name, sess := name, sess
		g.Go(func() error {
			if commit {
				return sess.Commit(gctx)
			}
			return sess.Rollback(gctx)
		})
	}
	err := g.Wait()

	outcome := "rollback"
	if commit {
		outcome = "commit"
	}
	if err != nil {
		outcome = "error"
	}
	metrics.PoolEntriesTotal.WithLabelValues(outcome).Inc()
	return err
}

// Session returns the live session for scope name within this entry, for
// callers that need to reach its overlay directly.
func (e *Entry) Session(name string) (SessionHandle, bool) {
	sess, ok := e.sessions[name]
	return sess, ok
}
