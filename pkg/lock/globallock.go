package lock

import (
	"context"
	"sync"

	"github.com/cuemby/overlaydb/pkg/log"
	"github.com/cuemby/overlaydb/pkg/metrics"
	"github.com/cuemby/overlaydb/pkg/storage"
)

// GlobalLock is the unit of mutual exclusion for one key: a
// plain mutex paired with a Taker that pins the key's residency for as
// long as the lock is held, so the locked entity cannot be evicted from
// its mapping while someone holds the lock on it.
type GlobalLock struct {
	key     Key
	mapping string
	taker   Taker
	mu      sync.Mutex
}

func newGlobalLock(key Key, mapping string, taker Taker) *GlobalLock {
	return &GlobalLock{key: key, mapping: mapping, taker: taker}
}

// Acquire blocks until the lock is free or ctx is done, taking the key
// from its backing mapping on success. A lock already held when ctx is
// cancelled is still acquired in the background and immediately released,
// so the mutex never leaks a permanently-pending lock attempt.
func (l *GlobalLock) Acquire(ctx context.Context) error {
	lg := log.WithMapping(l.mapping).With().Interface("key", l.key).Logger()
	timer := metrics.NewTimer()
	done := make(chan struct{})
	go func() {
		l.mu.Lock()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		lg.Warn().Msg("lock acquire cancelled while waiting")
		go func() {
			<-done
			l.mu.Unlock()
		}()
		return ctx.Err()
	}
	timer.ObserveDurationVec(metrics.LockWaitDuration, l.mapping)
	if waited := timer.Duration(); waited > 0 {
		lg.Debug().Dur("waited", waited).Msg("lock contention")
	}
	l.taker.TakeKey(l.key)
	metrics.LocksHeld.WithLabelValues(l.mapping).Inc()
	lg.Debug().Msg("lock acquired")
	return nil
}

// Release unlocks and releases the key's residency take.
func (l *GlobalLock) Release() error {
	defer l.mu.Unlock()
	metrics.LocksHeld.WithLabelValues(l.mapping).Dec()
	if err := l.taker.ReleaseKey(l.key); err != nil && err != storage.ErrNotTaken {
		return err
	}
	return nil
}
