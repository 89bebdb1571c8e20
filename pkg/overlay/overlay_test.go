package overlay

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/cuemby/overlaydb/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	ID      string
	Balance int
}

func (a *account) Clone() any {
	clone := *a
	return &clone
}

func newAccountStorage() *storage.Storage[account] {
	return storage.NewStorage[account]("accounts", storage.CacheDefault, func(v *account) storage.Key {
		return v.ID
	})
}

func TestStorageTransactionSaveFlushVisible(t *testing.T) {
	s := newAccountStorage()
	tx := NewStorageTransaction(s)

	tx.Save("a1", &account{ID: "a1", Balance: 100})
	assert.True(t, tx.New("a1"))
	assert.True(t, tx.Contains("a1"))

	_, ok := s.Get("a1")
	assert.False(t, ok, "an unflushed Save must not be visible in the shared Storage yet")

	tx.Flush(context.Background())
	tx.Finish()

	v, ok := s.Get("a1")
	require.True(t, ok)
	assert.Equal(t, 100, v.Balance)
}

func TestTakeWritableClonesAndIsolates(t *testing.T) {
	s := newAccountStorage()
	s.Cache("a1", &account{ID: "a1", Balance: 100})

	tx := NewStorageTransaction(s)
	v, ok := tx.TakeWritable("a1")
	require.True(t, ok)
	v.Balance = 50

	shared, _ := s.Get("a1")
	assert.Equal(t, 100, shared.Balance, "mutating the overlay's clone must not affect the shared value before Flush")

	tx.Flush(context.Background())
	tx.Finish()

	shared, _ = s.Get("a1")
	assert.Equal(t, 50, shared.Balance)
}

func TestDeleteFlushUncachesFromSharedStorage(t *testing.T) {
	s := newAccountStorage()
	s.Cache("a1", &account{ID: "a1", Balance: 100})

	tx := NewStorageTransaction(s)
	_, _ = tx.Take("a1")
	tx.Delete("a1")
	assert.False(t, tx.Contains("a1"))

	tx.Flush(context.Background())
	tx.Finish()

	assert.False(t, s.Contains("a1"))
}

func TestRestorationRunsAtMostOnce(t *testing.T) {
	s := newAccountStorage()
	s.Cache("a1", &account{ID: "a1", Balance: 1})

	tx := NewStorageTransaction(s)
	var calls atomic.Int32
	restore := func(ctx context.Context, v *account) error {
		calls.Add(1)
		return nil
	}

	entry := tx.Entry("a1")
	_, err := entry.Get(context.Background(), restore)
	require.NoError(t, err)
	_, err = entry.Get(context.Background(), restore)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	tx.Finish()
}

func TestFinishReleasesOutstandingTakes(t *testing.T) {
	s := newAccountStorage()
	s.Cache("a1", &account{ID: "a1", Balance: 1})

	tx := NewStorageTransaction(s)
	_, ok := tx.Take("a1")
	require.True(t, ok)
	assert.True(t, s.IsTaken("a1"))

	tx.Finish()
	assert.False(t, s.IsTaken("a1"), "Finish must release every take this overlay still holds")
}

func TestReleaseWithoutTakeIsError(t *testing.T) {
	s := newAccountStorage()
	tx := NewStorageTransaction(s)
	err := tx.Release("nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotTaken)
}

func TestSaveFansOutIntoSecondaryMappingOverlay(t *testing.T) {
	s := newAccountStorage()
	s.AddMapping("by_owner", storage.NewDoubleSideCollectionMap[account](s.Primary(), func(a *account) storage.Key {
		return "owner-a"
	}))

	tx := NewStorageTransaction(s)
	tx.Save("a1", &account{ID: "a1", Balance: 100})

	m, _ := s.Mapping("by_owner")
	assert.Empty(t, m.Natural("owner-a"), "an unflushed Save must not be visible in the shared secondary mapping yet")

	tx.Flush(context.Background())
	tx.Finish()

	assert.ElementsMatch(t, []*account{{ID: "a1", Balance: 100}}, m.Natural("owner-a"))
}

func TestSaveThenDeleteInSameTransactionNeverReachesSecondaryMapping(t *testing.T) {
	s := newAccountStorage()
	s.AddMapping("by_owner", storage.NewDoubleSideCollectionMap[account](s.Primary(), func(a *account) storage.Key {
		return "owner-a"
	}))

	tx := NewStorageTransaction(s)
	tx.Save("a1", &account{ID: "a1", Balance: 100})
	tx.Delete("a1")

	tx.Flush(context.Background())
	tx.Finish()

	assert.False(t, s.Contains("a1"))
	m, _ := s.Mapping("by_owner")
	assert.Empty(t, m.Natural("owner-a"), "a value saved and deleted within the same transaction must never reach a secondary mapping either")
}

func TestMappingEntryForceTakesEverySubkeyUnderMain(t *testing.T) {
	s := newAccountStorage()
	s.AddMapping("by_owner", storage.NewDoubleSideCollectionMap[account](s.Primary(), func(a *account) storage.Key {
		return "owner-a"
	}))
	s.Cache("a1", &account{ID: "a1", Balance: 10})
	s.Cache("a2", &account{ID: "a2", Balance: 20})

	tx := NewStorageTransaction(s)
	var restored int32
	entry := tx.MappingEntry("by_owner", "owner-a")
	values, err := entry.Get(context.Background(), func(ctx context.Context, v *account) error {
		restored++
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, values, 2)
	assert.Equal(t, int32(2), restored)

	tx.Finish()
}
