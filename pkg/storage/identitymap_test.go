package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityMapTakeIncrementsCount(t *testing.T) {
	m := NewIdentityMap[widget](NewDoubleSideMap[widget](widgetHash))
	w := &widget{ID: "w1"}
	m.Add(w)

	_, ok := m.Take("w1")
	require.True(t, ok)
	assert.Equal(t, 1, m.TakenCount("w1"))
	assert.True(t, m.IsTaken("w1"))

	_, ok = m.Take("w1")
	require.True(t, ok)
	assert.Equal(t, 2, m.TakenCount("w1"))
}

func TestIdentityMapReleaseDecrementsCount(t *testing.T) {
	m := NewIdentityMap[widget](NewDoubleSideMap[widget](widgetHash))
	w := &widget{ID: "w1"}
	m.Add(w)
	m.Take("w1")
	m.Take("w1")

	require.NoError(t, m.Release("w1"))
	assert.Equal(t, 1, m.TakenCount("w1"))

	require.NoError(t, m.Release("w1"))
	assert.False(t, m.IsTaken("w1"))
}

func TestIdentityMapReleaseWithoutTakeErrors(t *testing.T) {
	m := NewIdentityMap[widget](NewDoubleSideMap[widget](widgetHash))
	assert.ErrorIs(t, m.Release("missing"), ErrNotTaken)
}

func TestIdentityMapReleaseVoidKeyErrors(t *testing.T) {
	m := NewIdentityMap[widget](NewDoubleSideMap[widget](widgetHash))
	assert.ErrorIs(t, m.Release(Void), ErrNotTaken)
}

func TestIdentityMapTakeVoidKeyNeverCounts(t *testing.T) {
	m := NewIdentityMap[widget](NewDoubleSideMap[widget](widgetHash))
	_, ok := m.Take(Void)
	assert.False(t, ok)
	assert.False(t, m.IsTaken(Void))
}

func TestIdentityMapTakenKeysListsPositiveCounts(t *testing.T) {
	m := NewIdentityMap[widget](NewDoubleSideMap[widget](widgetHash))
	a, b := &widget{ID: "w1"}, &widget{ID: "w2"}
	m.Add(a)
	m.Add(b)
	m.Take("w1")

	assert.Equal(t, []Key{"w1"}, m.TakenKeys())
}

func TestIdentityMapReleaseAllClearsEveryCount(t *testing.T) {
	m := NewIdentityMap[widget](NewDoubleSideMap[widget](widgetHash))
	w := &widget{ID: "w1"}
	m.Add(w)
	m.Take("w1")
	m.Take("w1")

	m.ReleaseAll()

	assert.False(t, m.IsTaken("w1"))
	assert.ErrorIs(t, m.Release("w1"), ErrNotTaken)
}
