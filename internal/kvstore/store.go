// Package kvstore is a Pebble-backed grid.Store. Each cell is one key,
// "cell/" followed by big-endian x and y, holding the attribute encoding.
package kvstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/banshee-data/attrgrid/internal/grid"
	"github.com/banshee-data/attrgrid/internal/monitoring"
)

// MemoryLocation opens a store on an in-memory filesystem that is
// discarded on Close.
const MemoryLocation = ":memory:"

var (
	ErrClosed     = errors.New("kv-store: database is closed")
	ErrInvalidKey = errors.New("kv-store: invalid cell key")
)

var (
	cellPrefix = []byte("cell/")
	cellEnd    = []byte("cell0") // '0' sorts directly after '/'
)

const cellKeyLen = 5 + 16

type Store struct {
	db       *pebble.DB
	location string
	closed   bool
}

var _ grid.Store = (*Store)(nil)

// Open opens the Pebble database in the directory named by location,
// creating it if necessary.
func Open(location string) (*Store, error) {
	cache := pebble.NewCache(8 << 20)
	defer cache.Unref()

	opts := &pebble.Options{
		Cache:        cache,
		MemTableSize: 4 << 20,
		Logger:       pebbleLogger{},
	}
	dirname := location
	if location == MemoryLocation {
		opts.FS = vfs.NewMem()
		dirname = "board"
	}

	db, err := pebble.Open(dirname, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble store %s: %w", location, err)
	}
	monitoring.Logf("opened pebble board store %s", location)
	return &Store{db: db, location: location}, nil
}

// LoadCells scans every cell key.
func (s *Store) LoadCells() (map[grid.Coord]grid.Attributes, error) {
	if s.closed {
		return nil, ErrClosed
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: cellPrefix,
		UpperBound: cellEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("create iterator: %w", err)
	}

	cells, err := scanCells(iter)
	if closeErr := iter.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close iterator: %w", closeErr)
	}
	if err != nil {
		return nil, err
	}
	return cells, nil
}

// scanCells decodes every cell the iterator yields. A read failure ends
// the iteration early, so the iterator error is checked afterwards.
func scanCells(iter *pebble.Iterator) (map[grid.Coord]grid.Attributes, error) {
	cells := make(map[grid.Coord]grid.Attributes)
	for valid := iter.First(); valid; valid = iter.Next() {
		c, err := decodeKey(iter.Key())
		if err != nil {
			return nil, err
		}
		val, err := iter.ValueAndErr()
		if err != nil {
			return nil, fmt.Errorf("read cell %v: %w", c, err)
		}
		attrs, err := grid.DecodeAttributes(string(val))
		if err != nil {
			return nil, fmt.Errorf("cell %v: %w", c, err)
		}
		cells[c] = attrs
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate cells: %w", err)
	}
	return cells, nil
}

// PutCell writes the cell at c with a synced write.
func (s *Store) PutCell(c grid.Coord, attrs grid.Attributes) error {
	if s.closed {
		return ErrClosed
	}
	text, err := grid.EncodeAttributes(attrs)
	if err != nil {
		return err
	}
	if err := s.db.Set(encodeKey(c), []byte(text), pebble.Sync); err != nil {
		return fmt.Errorf("set cell %v: %w", c, err)
	}
	return nil
}

// DeleteCell removes the key for c. Deleting a missing key is not an error.
func (s *Store) DeleteCell(c grid.Coord) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.db.Delete(encodeKey(c), pebble.Sync); err != nil {
		return fmt.Errorf("delete cell %v: %w", c, err)
	}
	return nil
}

// Close releases the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func encodeKey(c grid.Coord) []byte {
	key := make([]byte, cellKeyLen)
	copy(key, cellPrefix)
	binary.BigEndian.PutUint64(key[len(cellPrefix):], uint64(c.X))
	binary.BigEndian.PutUint64(key[len(cellPrefix)+8:], uint64(c.Y))
	return key
}

func decodeKey(key []byte) (grid.Coord, error) {
	if len(key) != cellKeyLen {
		return grid.Coord{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	x := binary.BigEndian.Uint64(key[len(cellPrefix):])
	y := binary.BigEndian.Uint64(key[len(cellPrefix)+8:])
	return grid.Coord{X: int(x), Y: int(y)}, nil
}

// pebbleLogger routes Pebble's own diagnostics through monitoring.Logf.
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	monitoring.Logf("[pebble] "+format, args...)
}

func (pebbleLogger) Errorf(format string, args ...interface{}) {
	monitoring.Logf("[pebble] error: "+format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	panic(fmt.Sprintf("[pebble] "+format, args...))
}
