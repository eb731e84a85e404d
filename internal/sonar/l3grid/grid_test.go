package l3grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGrid(t *testing.T, size int, cell float64) *DepthGrid {
	t.Helper()
	g, err := NewDepthGrid(size, cell)
	require.NoError(t, err)
	return g
}

func TestNewDepthGrid(t *testing.T) {
	g := mustGrid(t, 10, 2)
	assert.Equal(t, 10, g.Size())
	assert.Equal(t, 20.0, g.TileSizeMeters())
	assert.Equal(t, 0, g.ValidCount())

	_, ok := g.At(0, 0)
	assert.False(t, ok, "new grid has no data")

	_, err := NewDepthGrid(0, 1)
	assert.Error(t, err)
	_, err = NewDepthGrid(10, 0)
	assert.Error(t, err)
}

func TestDepthGrid_AtOutOfRange(t *testing.T) {
	g := mustGrid(t, 4, 1)
	for _, rc := range [][2]int{{-1, 0}, {0, -1}, {4, 0}, {0, 4}} {
		_, ok := g.At(rc[0], rc[1])
		assert.False(t, ok, "At(%d, %d)", rc[0], rc[1])
	}
}

func TestDepthGrid_SnapshotIsDetached(t *testing.T) {
	g := mustGrid(t, 4, 1)
	s := NewEmptySnapshot(4, 1)
	s.Set(1, 2, 17)
	require.NoError(t, g.Replace(s))

	snap := g.Snapshot()
	snap.Depths[1*4+2] = 99
	snap.Valid[0] = true

	v, ok := g.At(1, 2)
	require.True(t, ok)
	assert.Equal(t, 17.0, v)
	_, ok = g.At(0, 0)
	assert.False(t, ok)
}

func TestDepthGrid_ReplaceRejectsMismatch(t *testing.T) {
	g := mustGrid(t, 4, 1)
	orig := NewEmptySnapshot(4, 1)
	orig.Set(0, 0, 10)
	require.NoError(t, g.Replace(orig))

	tests := []struct {
		name string
		snap *Snapshot
	}{
		{"wrong size", NewEmptySnapshot(5, 1)},
		{"wrong cell size", NewEmptySnapshot(4, 2)},
		{"short mask", &Snapshot{Size: 4, CellSizeMeters: 1, Depths: make([]float64, 16), Valid: make([]bool, 3)}},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Replace(tt.snap)
			assert.ErrorIs(t, err, ErrCorruptSnapshot)
			v, ok := g.At(0, 0)
			assert.True(t, ok)
			assert.Equal(t, 10.0, v)
			assert.Equal(t, 1, g.ValidCount())
		})
	}
}

func TestDepthGrid_ResetAndChangeCounter(t *testing.T) {
	g := mustGrid(t, 4, 1)
	s := NewEmptySnapshot(4, 1)
	s.Set(0, 0, 10)
	s.Set(3, 3, 12)
	require.NoError(t, g.Replace(s))
	assert.Equal(t, 2, g.ChangesSinceSnapshot())

	g.MarkPersisted(1)
	assert.Equal(t, 1, g.ChangesSinceSnapshot())
	g.MarkPersisted(5)
	assert.Equal(t, 0, g.ChangesSinceSnapshot())

	g.Reset()
	assert.Equal(t, 0, g.ValidCount())
	_, ok := g.At(3, 3)
	assert.False(t, ok)
	assert.False(t, g.LastUpdate().IsZero())
}
