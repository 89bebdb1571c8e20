package lock

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Entry pairs a LockClient with the key it should acquire within a
// CompositeLock, typically one mapping's key derived from the same
// resolved entity value.
type Entry struct {
	Mapping string
	Client  *LockClient
	Key     Key
}

// CompositeLock acquires and releases several alternate keys of one
// entity together, its primary id plus every secondary mapping's key
// for the same value. Acquisition and release both fan out in
// parallel via errgroup, the idiomatic replacement for the original's
// asyncio.gather: if any entry fails to acquire, the others that already
// succeeded are still released before the error is returned, so a
// partial composite lock is never left held.
type CompositeLock struct {
	entries []Entry
}

// NewCompositeLock builds a composite lock over entries.
func NewCompositeLock(entries ...Entry) *CompositeLock {
	return &CompositeLock{entries: entries}
}

// Acquire locks every entry in parallel. On partial failure it releases
// whatever succeeded before returning the first error.
func (c *CompositeLock) Acquire(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	acquired := make([]bool, len(c.entries))
	for i, e := range c.entries {
		i, e := i, e
		g.Go(func() error {
			if err := e.Client.Acquire(gctx, e.Key); err != nil {
				return err
			}
			acquired[i] = true
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		for i, e := range c.entries {
			if acquired[i] {
				_ = e.Client.Release(e.Key)
			}
		}
	}
	return err
}

// Release unlocks every entry in parallel, collecting the first error but
// attempting every release regardless of earlier failures.
func (c *CompositeLock) Release() error {
	var g errgroup.Group
	for _, e := range c.entries {
		e := e
		g.Go(func() error {
			return e.Client.Release(e.Key)
		})
	}
	return g.Wait()
}
