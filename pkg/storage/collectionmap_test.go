package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ownerHash(w *widget) Key { return w.Name }

func newTestCollectionMap() (*DoubleSideCollectionMap[widget], Mapping[widget]) {
	idMap := NewDoubleSideMap[widget](widgetHash)
	return NewDoubleSideCollectionMap[widget](idMap, ownerHash), idMap
}

func TestCollectionMapGroupsByMainKey(t *testing.T) {
	coll, idMap := newTestCollectionMap()
	a := &widget{ID: "w1", Name: "owner-a"}
	b := &widget{ID: "w2", Name: "owner-a"}
	c := &widget{ID: "w3", Name: "owner-b"}
	idMap.Add(a)
	idMap.Add(b)
	idMap.Add(c)

	coll.Add(a)
	coll.Add(b)
	coll.Add(c)

	group := coll.Natural("owner-a")
	assert.ElementsMatch(t, []*widget{a, b}, group)
	assert.ElementsMatch(t, []*widget{c}, coll.Natural("owner-b"))
}

func TestCollectionMapKeyOfIsComposite(t *testing.T) {
	coll, idMap := newTestCollectionMap()
	w := &widget{ID: "w1", Name: "owner-a"}
	idMap.Add(w)

	key := coll.KeyOf(w)
	ck, ok := key.(CompositeKey)
	require.True(t, ok)
	assert.Equal(t, Key("owner-a"), ck.Main)
	assert.Equal(t, Key("w1"), ck.Sub)
}

func TestCollectionMapDeleteLastEntryPrunesBucket(t *testing.T) {
	coll, idMap := newTestCollectionMap()
	w := &widget{ID: "w1", Name: "owner-a"}
	idMap.Add(w)
	coll.Add(w)

	coll.Remove(w)

	assert.Empty(t, coll.Natural("owner-a"))
	assert.Empty(t, coll.Subkeys("owner-a"))
}

func TestCollectionMapVoidComponentIsNoOp(t *testing.T) {
	coll, _ := newTestCollectionMap()
	coll.Set(CompositeKey{Main: Void, Sub: "w1"}, &widget{ID: "w1"})
	assert.Empty(t, coll.Values())
}

func TestCollectionMapSubkeysListsEveryMember(t *testing.T) {
	coll, idMap := newTestCollectionMap()
	a := &widget{ID: "w1", Name: "owner-a"}
	b := &widget{ID: "w2", Name: "owner-a"}
	idMap.Add(a)
	idMap.Add(b)
	coll.Add(a)
	coll.Add(b)

	subkeys := coll.Subkeys("owner-a")
	assert.Len(t, subkeys, 2)
}
