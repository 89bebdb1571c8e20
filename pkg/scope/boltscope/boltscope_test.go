package boltscope

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cuemby/overlaydb/pkg/scope"
	"github.com/cuemby/overlaydb/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

type record struct {
	ID    string
	Value int
}

func openTestDB(t *testing.T) *bolt.DB {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBoltSourceRestoreAndFlushRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	createTxn := NewTransactionFactory(db)
	createSource := NewSourceFactory[record]("records", storage.StringKeyCodec[record]{})

	// First transaction: create and flush a record.
	txn1, err := createTxn(ctx)
	require.NoError(t, err)
	source1, err := createSource(ctx, txn1)
	require.NoError(t, err)
	require.NoError(t, source1.Flush(ctx, "r1", &record{ID: "r1", Value: 42}))
	require.NoError(t, txn1.DoCommit(ctx))

	// Second transaction: restore it back.
	txn2, err := createTxn(ctx)
	require.NoError(t, err)
	source2, err := createSource(ctx, txn2)
	require.NoError(t, err)

	found, err := source2.Identify(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, found)

	var loaded record
	require.NoError(t, source2.Restore(ctx, "r1", &loaded))
	assert.Equal(t, 42, loaded.Value)
	require.NoError(t, txn2.DoRollback(ctx))
}

func TestBoltTransactionRollbackDiscardsWrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	createTxn := NewTransactionFactory(db)
	createSource := NewSourceFactory[record]("records", storage.StringKeyCodec[record]{})

	txn, err := createTxn(ctx)
	require.NoError(t, err)
	source, err := createSource(ctx, txn)
	require.NoError(t, err)
	require.NoError(t, source.Flush(ctx, "r2", &record{ID: "r2", Value: 7}))
	require.NoError(t, txn.DoRollback(ctx))

	verifyTxn, err := createTxn(ctx)
	require.NoError(t, err)
	verifySource, err := createSource(ctx, verifyTxn)
	require.NoError(t, err)
	found, err := verifySource.Identify(ctx, "r2")
	require.NoError(t, err)
	assert.False(t, found, "a rolled-back transaction's writes must not be visible afterward")
	require.NoError(t, verifyTxn.DoRollback(ctx))
}

func TestBoltScopeSessionCommitRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	sc := &scope.Scope[record]{
		Name:              "records",
		Storage:           storage.NewStorage[record]("records", storage.CacheDefault, func(r *record) storage.Key { return r.ID }),
		CreateTransaction: NewTransactionFactory(db),
		CreateSource:      NewSourceFactory[record]("records", storage.StringKeyCodec[record]{}),
	}

	sess, err := scope.Begin(ctx, sc)
	require.NoError(t, err)
	sess.Overlay.Save("r1", &record{ID: "r1", Value: 42})
	require.NoError(t, sess.Commit(ctx))
	sess.Finish()

	verifyTxn, err := NewTransactionFactory(db)(ctx)
	require.NoError(t, err)
	verifySource, err := NewSourceFactory[record]("records", storage.StringKeyCodec[record]{})(ctx, verifyTxn)
	require.NoError(t, err)
	found, err := verifySource.Identify(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, found, "Session.Commit must drive the DataSource's Flush, not only the in-memory overlay")
	require.NoError(t, verifyTxn.DoRollback(ctx))
}

var _ scope.Transaction = (*Transaction)(nil)
