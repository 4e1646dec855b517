// Package storage picks the backing store for a grid from its
// configuration.
package storage

import (
	"fmt"

	"github.com/banshee-data/attrgrid/internal/config"
	"github.com/banshee-data/attrgrid/internal/db"
	"github.com/banshee-data/attrgrid/internal/grid"
	"github.com/banshee-data/attrgrid/internal/kvstore"
)

// OpenStore opens the named persistent backend at location. The memory
// backend has no store and is rejected here.
func OpenStore(backend, location string) (grid.Store, error) {
	var (
		store grid.Store
		err   error
	)
	switch backend {
	case config.BackendSQLite:
		store, err = db.NewCellStore(location)
	case config.BackendPebble:
		store, err = kvstore.Open(location)
	default:
		return nil, fmt.Errorf("backend %q has no backing store", backend)
	}
	if err != nil {
		// Avoid handing back a typed nil inside the interface.
		return nil, err
	}
	return store, nil
}

// OpenGrid builds the grid described by cfg, loading any stored cells.
func OpenGrid(cfg *config.GridConfig) (*grid.Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.GetBackend() == config.BackendMemory {
		return grid.New(cfg.GetSize())
	}

	store, err := OpenStore(cfg.GetBackend(), cfg.GetLocation())
	if err != nil {
		return nil, err
	}
	return grid.Open(cfg.GetSize(), store)
}
