package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/attrgrid/internal/grid"
)

var ErrClosed = errors.New("db: cell store is closed")

// CellStore mirrors a grid's cells into the board_cells table. It
// implements grid.Store.
type CellStore struct {
	db     *DB
	closed bool
}

var _ grid.Store = (*CellStore)(nil)

// NewCellStore opens (creating and migrating if needed) the database at
// path. Use MemoryLocation for a store that vanishes on Close.
func NewCellStore(path string) (*CellStore, error) {
	db, err := NewDB(path)
	if err != nil {
		return nil, err
	}
	return &CellStore{db: db}, nil
}

// DB exposes the underlying database, e.g. for migration commands.
func (s *CellStore) DB() *DB { return s.db }

// LoadCells returns every stored cell, decoding each attribute blob.
func (s *CellStore) LoadCells() (map[grid.Coord]grid.Attributes, error) {
	if s.closed {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(`SELECT x, y, attributes FROM board_cells ORDER BY x, y`)
	if err != nil {
		return nil, fmt.Errorf("query cells: %w", err)
	}
	defer rows.Close()

	cells := make(map[grid.Coord]grid.Attributes)
	for rows.Next() {
		var (
			c    grid.Coord
			text string
		)
		if err := rows.Scan(&c.X, &c.Y, &text); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		attrs, err := grid.DecodeAttributes(text)
		if err != nil {
			return nil, fmt.Errorf("cell %v: %w", c, err)
		}
		cells[c] = attrs
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cells, nil
}

// PutCell upserts the cell at c.
func (s *CellStore) PutCell(c grid.Coord, attrs grid.Attributes) error {
	if s.closed {
		return ErrClosed
	}
	text, err := grid.EncodeAttributes(attrs)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO board_cells (x, y, attributes, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(x, y) DO UPDATE SET
			attributes = excluded.attributes,
			updated_at = excluded.updated_at`,
		c.X, c.Y, text, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert cell %v: %w", c, err)
	}
	return nil
}

// DeleteCell removes the row for c, if any.
func (s *CellStore) DeleteCell(c grid.Coord) error {
	if s.closed {
		return ErrClosed
	}
	if _, err := s.db.Exec(`DELETE FROM board_cells WHERE x = ? AND y = ?`, c.X, c.Y); err != nil {
		return fmt.Errorf("delete cell %v: %w", c, err)
	}
	return nil
}

// CellCount returns the number of stored rows.
func (s *CellStore) CellCount() (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM board_cells`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cells: %w", err)
	}
	return n, nil
}

// Close releases the database connection. Closing twice is a no-op.
func (s *CellStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
