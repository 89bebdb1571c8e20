package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   string
	Name string
}

func widgetHash(w *widget) Key { return w.ID }

func TestDoubleSideMapSetGetKeyOf(t *testing.T) {
	m := NewDoubleSideMap[widget](widgetHash)
	w := &widget{ID: "w1", Name: "gear"}

	m.Add(w)

	got, ok := m.Get("w1")
	require.True(t, ok)
	assert.Same(t, w, got)
	assert.Equal(t, Key("w1"), m.KeyOf(w))
	assert.True(t, m.Has(w))
}

func TestDoubleSideMapVoidKeyIsNoOp(t *testing.T) {
	m := NewDoubleSideMap[widget](widgetHash)
	m.Set(Void, &widget{ID: "w1"})
	assert.False(t, m.Contains(Void))
	assert.Equal(t, 0, len(m.Values()))
}

func TestDoubleSideMapDeleteRemovesEntry(t *testing.T) {
	m := NewDoubleSideMap[widget](widgetHash)
	w := &widget{ID: "w1"}
	m.Add(w)
	m.Remove(w)
	assert.False(t, m.Contains("w1"))
}

func TestDoubleSideMapIdentityOnlyFallsBackToVoid(t *testing.T) {
	m := NewDoubleSideMap[widget](nil)
	w := &widget{ID: "w1"}
	assert.Equal(t, Void, m.KeyOf(w))
}

func TestDoubleSideMapNaturalReturnsZeroOrOne(t *testing.T) {
	m := NewDoubleSideMap[widget](widgetHash)
	assert.Empty(t, m.Natural("missing"))

	w := &widget{ID: "w1"}
	m.Add(w)
	assert.Equal(t, []*widget{w}, m.Natural("w1"))
}

func TestDoubleSideMapEmptyCopyPreservesHash(t *testing.T) {
	m := NewDoubleSideMap[widget](widgetHash)
	fresh := m.EmptyCopy()
	w := &widget{ID: "w1"}
	fresh.Add(w)
	assert.Equal(t, Key("w1"), fresh.KeyOf(w))
}
