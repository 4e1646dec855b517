// Package db is the SQLite backing store for attribute grids. The schema is
// managed by embedded golang-migrate migrations and cells live in a single
// board_cells table keyed by (x, y).
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/attrgrid/internal/fsutil"
	"github.com/banshee-data/attrgrid/internal/monitoring"
)

// MemoryLocation opens a private in-memory database that lives as long as
// its connection.
const MemoryLocation = ":memory:"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// MigrationsFS returns the embedded migration files rooted at the
// migrations directory.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		// embed guarantees the directory exists
		panic(err)
	}
	return sub
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

type DB struct {
	*sql.DB
	path string
}

// OpenDB opens the database at path and applies the connection PRAGMAs
// without touching the schema. The pool is pinned to a single connection:
// the grid that owns it is single-threaded and a :memory: database only
// exists on the connection that created it.
func OpenDB(path string) (*DB, error) {
	if err := ensureParentDir(fsutil.OSFileSystem{}, path); err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return &DB{DB: sqlDB, path: path}, nil
}

// NewDB opens the database at path and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	if db.IsMemory() {
		monitoring.Logf("opened in-memory board database; cells are lost on close")
	} else {
		monitoring.Logf("opened board database %s", db.path)
	}
	return db, nil
}

// Path returns the location the database was opened with.
func (db *DB) Path() string { return db.path }

// IsMemory reports whether the database is non-durable.
func (db *DB) IsMemory() bool { return db.path == MemoryLocation }

// ensureParentDir creates the directory holding a file-backed database.
func ensureParentDir(fsys fsutil.FileSystem, path string) error {
	if path == MemoryLocation || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || fsys.Exists(dir) {
		return nil
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}
