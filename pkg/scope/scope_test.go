package scope

import (
	"context"
	"testing"

	"github.com/cuemby/overlaydb/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   string
	Name string
}

type fakeBackend struct {
	committed bool
	rolledBack bool
	failCommit bool
}

func (f *fakeBackend) DoCommit(ctx context.Context) error {
	f.committed = true
	if f.failCommit {
		return assert.AnError
	}
	return nil
}

func (f *fakeBackend) DoRollback(ctx context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeSource struct {
	identified []storage.Key
	writable   []storage.Key
	flushed    []storage.Key
	released   []storage.Key
}

func (f *fakeSource) Identify(ctx context.Context, key storage.Key) (bool, error) {
	f.identified = append(f.identified, key)
	return true, nil
}

func (f *fakeSource) Restore(ctx context.Context, key storage.Key, value *widget) error {
	return nil
}

func (f *fakeSource) Writable(ctx context.Context, key storage.Key, value *widget) error {
	f.writable = append(f.writable, key)
	return nil
}

func (f *fakeSource) Flush(ctx context.Context, key storage.Key, value *widget) error {
	f.flushed = append(f.flushed, key)
	return nil
}

func (f *fakeSource) Release(ctx context.Context, key storage.Key) error {
	f.released = append(f.released, key)
	return nil
}

func newWidgetScope() *Scope[widget] {
	return &Scope[widget]{
		Name: "widgets",
		Storage: storage.NewStorage[widget]("widgets", storage.CacheDefault, func(v *widget) storage.Key {
			return v.ID
		}),
	}
}

func TestSessionWithoutBackendCommitsOverlayOnly(t *testing.T) {
	sc := newWidgetScope()
	sess, err := Begin(context.Background(), sc)
	require.NoError(t, err)

	sess.Overlay.Save("w1", &widget{ID: "w1", Name: "alpha"})
	require.NoError(t, sess.Commit(context.Background()))
	sess.Finish()

	v, ok := sc.Storage.Get("w1")
	require.True(t, ok)
	assert.Equal(t, "alpha", v.Name)
}

func TestSessionCommitsBackend(t *testing.T) {
	backend := &fakeBackend{}
	sc := newWidgetScope()
	sc.CreateTransaction = func(ctx context.Context) (Transaction, error) {
		return backend, nil
	}

	sess, err := Begin(context.Background(), sc)
	require.NoError(t, err)
	require.NoError(t, sess.Commit(context.Background()))
	sess.Finish()

	assert.True(t, backend.committed)
	assert.False(t, backend.rolledBack)
}

func TestSessionCommitDrivesDataSourcePerDirtyKey(t *testing.T) {
	source := &fakeSource{}
	sc := newWidgetScope()
	sc.CreateSource = func(ctx context.Context, txn Transaction) (DataSource[widget], error) {
		return source, nil
	}

	sess, err := Begin(context.Background(), sc)
	require.NoError(t, err)

	sess.Overlay.Save("w1", &widget{ID: "w1", Name: "alpha"})
	require.NoError(t, sess.Commit(context.Background()))
	sess.Finish()

	assert.Equal(t, []storage.Key{"w1"}, source.identified)
	assert.Equal(t, []storage.Key{"w1"}, source.writable)
	assert.Equal(t, []storage.Key{"w1"}, source.flushed)
	assert.Equal(t, []storage.Key{"w1"}, source.released)

	v, ok := sc.Storage.Get("w1")
	require.True(t, ok)
	assert.Equal(t, "alpha", v.Name)
}

func TestSessionRollbackReleasesDataSourcePerDirtyKeyWithoutFlushing(t *testing.T) {
	source := &fakeSource{}
	sc := newWidgetScope()
	sc.CreateSource = func(ctx context.Context, txn Transaction) (DataSource[widget], error) {
		return source, nil
	}

	sess, err := Begin(context.Background(), sc)
	require.NoError(t, err)

	sess.Overlay.Save("w1", &widget{ID: "w1", Name: "alpha"})
	require.NoError(t, sess.Rollback(context.Background()))
	sess.Finish()

	assert.Equal(t, []storage.Key{"w1"}, source.released)
	assert.Empty(t, source.flushed, "rollback must never flush a dirty key through the DataSource")
}

func TestSessionReloadRetakesResidentKeysIntoFreshOverlay(t *testing.T) {
	sc := newWidgetScope()
	sc.Storage.Cache("w1", &widget{ID: "w1", Name: "v1"})

	sess, err := Begin(context.Background(), sc)
	require.NoError(t, err)

	_, ok := sess.Overlay.Take("w1")
	require.True(t, ok)
	require.True(t, sc.Storage.IsTaken("w1"))

	oldOverlay := sess.Overlay
	require.NoError(t, sess.Reload(context.Background()))

	assert.NotSame(t, oldOverlay, sess.Overlay, "Reload must rotate onto a fresh overlay")
	assert.True(t, sc.Storage.IsTaken("w1"), "the key's take must survive the rotation")
	assert.True(t, sess.Overlay.Contains("w1"))

	sess.Finish()
	assert.False(t, sc.Storage.IsTaken("w1"))
}

func TestSessionRollsBackBackendOnFailure(t *testing.T) {
	backend := &fakeBackend{}
	sc := newWidgetScope()
	sc.CreateTransaction = func(ctx context.Context) (Transaction, error) {
		return backend, nil
	}

	sess, err := Begin(context.Background(), sc)
	require.NoError(t, err)
	require.NoError(t, sess.Rollback(context.Background()))
	sess.Finish()

	assert.True(t, backend.rolledBack)
}
