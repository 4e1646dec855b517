// Package grid implements a bounded N×N attribute grid. Each cell holds an
// ordered list of key/value attributes. A grid may be purely in-memory or
// backed by a Store, in which case every mutation is written through to the
// store before the call returns and existing rows are loaded on Open.
//
// A Grid is not safe for concurrent use and exclusively owns its Store.
package grid

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/attrgrid/internal/monitoring"
)

var (
	// ErrStorage wraps every failure reported by the backing store. When a
	// mutating call returns it, the in-memory state is unchanged.
	ErrStorage     = errors.New("grid: storage failure")
	ErrClosed      = errors.New("grid: closed")
	ErrInvalidSize = errors.New("grid: size must be positive")
	ErrNilStore    = errors.New("grid: nil store")
)

// Store is the durable mirror of a grid's cells, keyed uniquely by
// coordinate.
type Store interface {
	// LoadCells returns every stored cell.
	LoadCells() (map[Coord]Attributes, error)
	// PutCell inserts or replaces the cell at c.
	PutCell(c Coord, attrs Attributes) error
	// DeleteCell removes the cell at c. Deleting a missing cell is not an error.
	DeleteCell(c Coord) error
	Close() error
}

// Grid is the attribute grid.
type Grid struct {
	id     string
	size   int
	cells  map[Coord]Attributes
	store  Store
	closed bool
}

// New returns an empty grid with no backing store.
func New(size int) (*Grid, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &Grid{
		id:    uuid.NewString(),
		size:  size,
		cells: make(map[Coord]Attributes),
	}, nil
}

// Open returns a grid mirrored to store, populated with the cells already
// in it. The grid takes ownership of store; it is closed if Open fails.
func Open(size int, store Store) (*Grid, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	g, err := New(size)
	if err != nil {
		return nil, closeStore(store, err)
	}

	cells, err := store.LoadCells()
	if err != nil {
		return nil, closeStore(store, fmt.Errorf("%w: load cells: %w", ErrStorage, err))
	}
	for c, attrs := range cells {
		if !g.ValidateCoordinate(c.X, c.Y) {
			return nil, closeStore(store, fmt.Errorf("%w: stored cell %v outside %dx%d board", ErrStorage, c, size, size))
		}
		if attrs == nil {
			attrs = Attributes{}
		}
		g.cells[c] = attrs
	}
	g.store = store

	monitoring.Logf("grid %s: opened %dx%d board with %d stored cells", g.id, size, size, len(g.cells))
	return g, nil
}

// closeStore closes store after a failed Open, joining any close error
// onto err.
func closeStore(store Store, err error) error {
	if closeErr := store.Close(); closeErr != nil {
		return errors.Join(err, fmt.Errorf("close store: %w", closeErr))
	}
	return err
}

// ID identifies this grid instance in log output.
func (g *Grid) ID() string { return g.id }

func (g *Grid) Size() int { return g.size }

// Len returns the number of non-empty coordinates.
func (g *Grid) Len() int { return len(g.cells) }

// ValidateCoordinate reports whether (x, y) lies on the board.
func (g *Grid) ValidateCoordinate(x, y int) bool {
	return 0 <= x && x < g.size && 0 <= y && y < g.size
}

// SetPosition replaces the attribute list at (x, y). It returns false
// without side effects when the coordinate is off the board.
func (g *Grid) SetPosition(x, y int, attrs Attributes) (bool, error) {
	if !g.ValidateCoordinate(x, y) {
		return false, nil
	}
	if g.closed {
		return false, ErrClosed
	}
	c := Coord{X: x, Y: y}
	stored := attrs.Clone()
	if stored == nil {
		stored = Attributes{}
	}
	if err := g.put(c, stored); err != nil {
		return false, err
	}
	g.cells[c] = stored
	return true, nil
}

// GetPosition returns a copy of the attribute list at (x, y). The second
// result is false when the coordinate is off the board or empty.
func (g *Grid) GetPosition(x, y int) (Attributes, bool) {
	if !g.ValidateCoordinate(x, y) {
		return nil, false
	}
	attrs, ok := g.cells[Coord{X: x, Y: y}]
	if !ok {
		return nil, false
	}
	return attrs.Clone(), true
}

// UpdateAttribute sets key to v on an existing cell, replacing the first
// matching pair in place or appending a new pair. It returns false when
// the coordinate is off the board or holds no entry.
func (g *Grid) UpdateAttribute(x, y int, key string, v Value) (bool, error) {
	if !g.ValidateCoordinate(x, y) {
		return false, nil
	}
	c := Coord{X: x, Y: y}
	current, ok := g.cells[c]
	if !ok {
		return false, nil
	}
	if g.closed {
		return false, ErrClosed
	}
	// Work on a copy so a failed write leaves the stored list untouched.
	updated := current.Clone().Set(key, v)
	if err := g.put(c, updated); err != nil {
		return false, err
	}
	g.cells[c] = updated
	return true, nil
}

// RemovePosition deletes the entry at (x, y). It returns false when the
// coordinate is off the board or already empty.
func (g *Grid) RemovePosition(x, y int) (bool, error) {
	if !g.ValidateCoordinate(x, y) {
		return false, nil
	}
	c := Coord{X: x, Y: y}
	if _, ok := g.cells[c]; !ok {
		return false, nil
	}
	if g.closed {
		return false, ErrClosed
	}
	if g.store != nil {
		if err := g.store.DeleteCell(c); err != nil {
			return false, fmt.Errorf("%w: delete cell %v: %w", ErrStorage, c, err)
		}
	}
	delete(g.cells, c)
	return true, nil
}

// BoardState returns a deep copy of every non-empty cell.
func (g *Grid) BoardState() map[Coord]Attributes {
	state := make(map[Coord]Attributes, len(g.cells))
	for c, attrs := range g.cells {
		state[c] = attrs.Clone()
	}
	return state
}

// Close releases the backing store. Closing twice is a no-op. Reads keep
// working from memory afterwards; mutations return ErrClosed.
func (g *Grid) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	if g.store == nil {
		return nil
	}
	monitoring.Logf("grid %s: closing store", g.id)
	if err := g.store.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrStorage, err)
	}
	return nil
}

func (g *Grid) put(c Coord, attrs Attributes) error {
	if g.store == nil {
		return nil
	}
	if err := g.store.PutCell(c, attrs); err != nil {
		return fmt.Errorf("%w: put cell %v: %w", ErrStorage, c, err)
	}
	return nil
}
