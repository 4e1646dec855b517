package db

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/attrgrid/internal/grid"
	"github.com/banshee-data/attrgrid/internal/monitoring"
)

var valueComparer = cmp.Comparer(func(a, b grid.Value) bool { return a.Equal(b) })

func tankAttrs() grid.Attributes {
	return grid.Attributes{
		grid.P("unit", grid.StringValue("tank")),
		grid.P("health", grid.IntValue(5)),
	}
}

func openGrid(t *testing.T, path string) *grid.Grid {
	t.Helper()
	store, err := NewCellStore(path)
	require.NoError(t, err)
	g, err := grid.Open(5, store)
	require.NoError(t, err)
	return g
}

func TestCellStore_PutLoadDelete(t *testing.T) {
	defer monitoring.Mute()()

	store, err := NewCellStore(MemoryLocation)
	require.NoError(t, err)
	defer store.Close()

	cells, err := store.LoadCells()
	require.NoError(t, err)
	assert.Empty(t, cells)

	require.NoError(t, store.PutCell(grid.Coord{X: 2, Y: 3}, tankAttrs()))
	require.NoError(t, store.PutCell(grid.Coord{X: 0, Y: 0}, grid.Attributes{}))
	// upsert replaces
	replaced := grid.Attributes{grid.P("unit", grid.StringValue("plane")), grid.P("alt", grid.FloatValue(1.5))}
	require.NoError(t, store.PutCell(grid.Coord{X: 0, Y: 0}, replaced))

	n, err := store.CellCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cells, err = store.LoadCells()
	require.NoError(t, err)
	want := map[grid.Coord]grid.Attributes{
		{X: 2, Y: 3}: tankAttrs(),
		{X: 0, Y: 0}: replaced,
	}
	if diff := cmp.Diff(want, cells, valueComparer); diff != "" {
		t.Errorf("LoadCells mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, store.DeleteCell(grid.Coord{X: 2, Y: 3}))
	require.NoError(t, store.DeleteCell(grid.Coord{X: 4, Y: 4}), "deleting a missing row is not an error")
	n, err = store.CellCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCellStore_UpdatedAt(t *testing.T) {
	defer monitoring.Mute()()

	store, err := NewCellStore(MemoryLocation)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutCell(grid.Coord{X: 1, Y: 1}, tankAttrs()))
	var first int64
	require.NoError(t, store.DB().QueryRow(`SELECT updated_at FROM board_cells WHERE x = 1 AND y = 1`).Scan(&first))
	assert.Greater(t, first, int64(0))
}

func TestCellStore_CorruptRow(t *testing.T) {
	defer monitoring.Mute()()

	store, err := NewCellStore(MemoryLocation)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.DB().Exec(`INSERT INTO board_cells (x, y, attributes) VALUES (1, 1, 'not json')`)
	require.NoError(t, err)

	_, err = store.LoadCells()
	assert.ErrorContains(t, err, "(1,1)")

	_, err = grid.Open(5, store)
	assert.ErrorIs(t, err, grid.ErrStorage)
}

func TestCellStore_Closed(t *testing.T) {
	defer monitoring.Mute()()

	store, err := NewCellStore(MemoryLocation)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.LoadCells()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.PutCell(grid.Coord{}, nil), ErrClosed)
	assert.ErrorIs(t, store.DeleteCell(grid.Coord{}), ErrClosed)
}

func TestGrid_PersistsAcrossReopen(t *testing.T) {
	defer monitoring.Mute()()

	path := filepath.Join(t.TempDir(), "board.db")

	g := openGrid(t, path)
	ok, err := g.SetPosition(2, 3, tankAttrs())
	require.NoError(t, err)
	require.True(t, ok)
	_, err = g.SetPosition(4, 4, grid.Attributes{})
	require.NoError(t, err)
	require.NoError(t, g.Close())

	g = openGrid(t, path)
	defer g.Close()

	got, ok := g.GetPosition(2, 3)
	require.True(t, ok)
	if diff := cmp.Diff(tankAttrs(), got, valueComparer); diff != "" {
		t.Errorf("reopened (2,3) mismatch (-want +got):\n%s", diff)
	}
	empty, ok := g.GetPosition(4, 4)
	assert.True(t, ok, "present-but-empty cell should survive reopen")
	assert.Empty(t, empty)
}

func TestGrid_MemoryLocationDoesNotPersist(t *testing.T) {
	defer monitoring.Mute()()

	g := openGrid(t, MemoryLocation)
	ok, err := g.SetPosition(2, 3, tankAttrs())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, g.Close())

	g = openGrid(t, MemoryLocation)
	defer g.Close()
	_, ok = g.GetPosition(2, 3)
	assert.False(t, ok)
	assert.Equal(t, 0, g.Len())
}

func TestGrid_StoreMatchesMemory(t *testing.T) {
	defer monitoring.Mute()()

	path := filepath.Join(t.TempDir(), "board.db")
	store, err := NewCellStore(path)
	require.NoError(t, err)
	g, err := grid.Open(5, store)
	require.NoError(t, err)
	defer g.Close()

	steps := []func() (bool, error){
		func() (bool, error) { return g.SetPosition(2, 3, tankAttrs()) },
		func() (bool, error) { return g.UpdateAttribute(2, 3, "health", grid.IntValue(3)) },
		func() (bool, error) { return g.UpdateAttribute(2, 3, "player", grid.StringValue("blue")) },
		func() (bool, error) { return g.SetPosition(0, 4, grid.Attributes{grid.P("mine", grid.BoolValue(true))}) },
		func() (bool, error) { return g.RemovePosition(2, 3) },
		func() (bool, error) { return g.SetPosition(9, 9, tankAttrs()) },
	}
	for i, step := range steps {
		if _, err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		stored, err := store.LoadCells()
		require.NoError(t, err)
		if diff := cmp.Diff(g.BoardState(), stored, valueComparer); diff != "" {
			t.Fatalf("after step %d store differs from memory (-memory +store):\n%s", i, diff)
		}
	}
}

func TestGrid_StorageFailureSurfaces(t *testing.T) {
	defer monitoring.Mute()()

	store, err := NewCellStore(MemoryLocation)
	require.NoError(t, err)
	g, err := grid.Open(5, store)
	require.NoError(t, err)
	defer g.Close()

	_, err = g.SetPosition(1, 1, tankAttrs())
	require.NoError(t, err)

	// Break the schema underneath the grid.
	_, err = store.DB().Exec(`DROP TABLE board_cells`)
	require.NoError(t, err)

	ok, err := g.UpdateAttribute(1, 1, "health", grid.IntValue(1))
	assert.False(t, ok)
	assert.ErrorIs(t, err, grid.ErrStorage)

	got, _ := g.GetPosition(1, 1)
	assert.True(t, got.Equal(tankAttrs()), "memory must not change on failed write")
}
