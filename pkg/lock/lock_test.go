package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/overlaydb/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   string
	Name string
}

func newTestStorage() *storage.Storage[widget] {
	s := storage.NewStorage[widget]("widgets", storage.CacheDefault, func(v *widget) storage.Key {
		return v.ID
	})
	byName := storage.NewDoubleSideMap[widget](func(v *widget) storage.Key {
		return v.Name
	})
	s.AddMapping("by_name", byName)
	return s
}

func TestGlobalLockExclusion(t *testing.T) {
	s := newTestStorage()
	lm := NewLockMap("widgets", NewStorageTaker(s))

	gl := lm.Get("k1")
	require.NoError(t, gl.Acquire(context.Background()))

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		gl2 := lm.Get("k1")
		require.NoError(t, gl2.Acquire(context.Background()))
		acquired.Store(true)
		require.NoError(t, gl2.Release())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, acquired.Load(), "second acquire should block while first holds the lock")

	require.NoError(t, gl.Release())
	<-done
	assert.True(t, acquired.Load())
}

func TestGlobalLockVoidNeverShares(t *testing.T) {
	s := newTestStorage()
	lm := NewLockMap("widgets", NewStorageTaker(s))

	a := lm.Get(storage.Void)
	b := lm.Get(storage.Void)
	assert.NotSame(t, a, b, "Void key must never share a lock instance")
}

func TestLockClientReentry(t *testing.T) {
	s := newTestStorage()
	client := IdentityMapLockClient("widgets", s.Primary())

	ctx := WithReentryToken(context.Background(), "holder-1")
	require.NoError(t, client.Acquire(ctx, "k1"))
	require.NoError(t, client.Acquire(ctx, "k1"), "reentrant acquire under same token must not deadlock")

	require.NoError(t, client.Release("k1"))
	assert.Contains(t, client.HeldKeys(), Key("k1"), "one more release is still owed")

	require.NoError(t, client.Release("k1"))
	assert.NotContains(t, client.HeldKeys(), Key("k1"))
}

func TestLockClientWithoutTokenNeverReenters(t *testing.T) {
	s := newTestStorage()
	client := IdentityMapLockClient("widgets", s.Primary())

	require.NoError(t, client.Acquire(context.Background(), "k1"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := client.Acquire(ctx, "k1")
	assert.ErrorIs(t, err, context.DeadlineExceeded, "without a shared token, a second acquire must block like a stranger")
}

func TestLockClientReleaseAll(t *testing.T) {
	s := newTestStorage()
	client := IdentityMapLockClient("widgets", s.Primary())

	require.NoError(t, client.Acquire(context.Background(), "a"))
	require.NoError(t, client.Acquire(context.Background(), "b"))
	require.Len(t, client.HeldKeys(), 2)

	client.ReleaseAll()
	assert.Empty(t, client.HeldKeys())

	// the underlying locks must really be free again
	require.NoError(t, client.Acquire(context.Background(), "a"))
	client.ReleaseAll()
}

func TestCompositeLockAcquiresAndReleasesEverything(t *testing.T) {
	s := newTestStorage()
	client := NewStorageLockClient("widgets", s, "by_name")

	w := &widget{ID: "w1", Name: "alpha"}
	sl, err := client.Lock(context.Background(), w)
	require.NoError(t, err)
	require.NoError(t, sl.Release())
}

func TestCompositeLockPartialFailureReleasesAcquired(t *testing.T) {
	primaryMap := storage.NewIdentityMap[widget](storage.NewDoubleSideMap[widget](nil))
	secondaryMap := storage.NewIdentityMap[widget](storage.NewDoubleSideMap[widget](nil))

	primaryClient := IdentityMapLockClient("primary", primaryMap)
	secondaryClient := IdentityMapLockClient("secondary", secondaryMap)

	// Pre-hold the secondary key from another goroutine so the composite's
	// second entry cannot complete, then confirm the first entry is
	// released rather than left dangling.
	require.NoError(t, secondaryClient.Acquire(context.Background(), "s1"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		secondaryClient.ReleaseAll()
	}()

	composite := NewCompositeLock(
		Entry{Mapping: "primary", Client: primaryClient, Key: "p1"},
		Entry{Mapping: "secondary", Client: secondaryClient, Key: "s1"},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := composite.Acquire(ctx)
	assert.Error(t, err)
	wg.Wait()

	// the primary entry must have been released when the secondary failed
	assert.NoError(t, primaryClient.Acquire(context.Background(), "p1"))
}
