package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/attrgrid/internal/config"
	"github.com/banshee-data/attrgrid/internal/db"
	"github.com/banshee-data/attrgrid/internal/grid"
	"github.com/banshee-data/attrgrid/internal/kvstore"
	"github.com/banshee-data/attrgrid/internal/monitoring"
)

func cfgFor(backend, location string) *config.GridConfig {
	cfg := config.EmptyGridConfig()
	cfg.Override(5, backend, location)
	return cfg
}

func TestOpenStore(t *testing.T) {
	defer monitoring.Mute()()

	s, err := OpenStore(config.BackendSQLite, db.MemoryLocation)
	require.NoError(t, err)
	assert.IsType(t, &db.CellStore{}, s)
	require.NoError(t, s.Close())

	s, err = OpenStore(config.BackendPebble, kvstore.MemoryLocation)
	require.NoError(t, err)
	assert.IsType(t, &kvstore.Store{}, s)
	require.NoError(t, s.Close())

	_, err = OpenStore(config.BackendMemory, "")
	assert.Error(t, err)
}

func TestOpenGrid_AllBackends(t *testing.T) {
	defer monitoring.Mute()()

	dir := t.TempDir()
	tank := grid.Attributes{grid.P("unit", grid.StringValue("tank")), grid.P("health", grid.IntValue(5))}

	tests := []struct {
		backend  string
		location string
		durable  bool
	}{
		{config.BackendMemory, config.MemoryLocation, false},
		{config.BackendSQLite, config.MemoryLocation, false},
		{config.BackendSQLite, filepath.Join(dir, "board.db"), true},
		{config.BackendPebble, config.MemoryLocation, false},
		{config.BackendPebble, filepath.Join(dir, "board-pebble"), true},
	}
	for _, tt := range tests {
		t.Run(tt.backend+"/"+filepath.Base(tt.location), func(t *testing.T) {
			cfg := cfgFor(tt.backend, tt.location)
			assert.Equal(t, tt.durable, cfg.IsDurable())

			g, err := OpenGrid(cfg)
			require.NoError(t, err)
			ok, err := g.SetPosition(2, 3, tank)
			require.NoError(t, err)
			require.True(t, ok)
			require.NoError(t, g.Close())

			g, err = OpenGrid(cfg)
			require.NoError(t, err)
			defer g.Close()
			got, ok := g.GetPosition(2, 3)
			assert.Equal(t, tt.durable, ok)
			if tt.durable {
				assert.True(t, got.Equal(tank))
			}
		})
	}
}

func TestOpenGrid_Invalid(t *testing.T) {
	cfg := cfgFor("redis", "")
	_, err := OpenGrid(cfg)
	assert.Error(t, err)

	cfg = cfgFor(config.BackendMemory, "")
	cfg.Size = new(int)
	_, err = OpenGrid(cfg)
	assert.Error(t, err)
}
