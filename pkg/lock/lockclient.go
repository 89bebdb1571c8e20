package lock

import (
	"context"
	"errors"
	"sync"

	"github.com/cuemby/overlaydb/pkg/storage"
)

// ErrNotHeld is returned by LockClient.Release when called for a key the
// client does not currently hold.
var ErrNotHeld = errors.New("lock: key not held by this client")

type reentryTokenKey struct{}

// WithReentryToken attaches token to ctx, marking every lock acquired
// through this context as belonging to the same logical holder. A pool
// entry calls this once per goroutine tree it spawns, Go
// has no equivalent of asyncio.current_task() to detect this
// automatically, so the caller supplies the scope of reentrance explicitly.
func WithReentryToken(ctx context.Context, token any) context.Context {
	return context.WithValue(ctx, reentryTokenKey{}, token)
}

func reentryToken(ctx context.Context) any {
	return ctx.Value(reentryTokenKey{})
}

type heldLock struct {
	lock  *GlobalLock
	token any
	depth int
}

// LockClient acquires and releases locks from one LockMap, re-entrantly:
// a second Acquire for the same key under the same reentry token succeeds
// immediately and only the matching number of Releases actually frees the
// underlying GlobalLock. A client with no reentry token in its
// context never re-enters, every Acquire blocks as if it were a fresh
// holder, matching the original's behavior outside of a task that opted
// in to re-entrant locking.
type LockClient struct {
	mu      sync.Mutex
	lockMap *LockMap
	held    map[Key]*heldLock
}

// NewLockClient builds a client over lockMap.
func NewLockClient(lockMap *LockMap) *LockClient {
	return &LockClient{
		lockMap: lockMap,
		held:    make(map[Key]*heldLock),
	}
}

// Acquire blocks until key's lock is held by this client, or ctx is done.
func (c *LockClient) Acquire(ctx context.Context, key Key) error {
	token := reentryToken(ctx)

	c.mu.Lock()
	if h, ok := c.held[key]; ok && token != nil && h.token == token {
		h.depth++
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	gl := c.lockMap.Get(key)
	if err := gl.Acquire(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.held[key] = &heldLock{lock: gl, token: token, depth: 1}
	c.mu.Unlock()
	return nil
}

// Release decrements key's re-entrancy depth, releasing the underlying
// GlobalLock once it reaches zero.
func (c *LockClient) Release(key Key) error {
	c.mu.Lock()
	h, ok := c.held[key]
	if !ok {
		c.mu.Unlock()
		return ErrNotHeld
	}
	h.depth--
	if h.depth > 0 {
		c.mu.Unlock()
		return nil
	}
	delete(c.held, key)
	c.mu.Unlock()
	return h.lock.Release()
}

// ReleaseAll releases every lock this client currently holds, in
// unspecified order, regardless of re-entrancy depth. It is the
// deferred "always run" step of a pool exit.
func (c *LockClient) ReleaseAll() {
	c.mu.Lock()
	held := c.held
	c.held = make(map[Key]*heldLock)
	c.mu.Unlock()

	for _, h := range held {
		_ = h.lock.Release()
	}
}

// HeldKeys returns every key currently held by this client, in
// unspecified order.
func (c *LockClient) HeldKeys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, 0, len(c.held))
	for k := range c.held {
		keys = append(keys, k)
	}
	return keys
}

// IdentityMapLockClient builds a LockClient whose locks pin residency in
// m directly, without a caller having to wire a LockMap and Taker by
// hand, the generic convenience constructor matching the original's
// identity-map-bound lock client.
func IdentityMapLockClient[E any](mapping string, m *storage.IdentityMap[E]) *LockClient {
	return NewLockClient(NewLockMap(mapping, NewIdentityMapTaker(m)))
}
