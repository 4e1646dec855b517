package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/banshee-data/attrgrid/internal/fsutil"
)

// Backends understood by the storage package.
const (
	BackendMemory = "memory" // no backing store at all
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
)

// MemoryLocation selects the non-durable variant of a persistent backend.
const MemoryLocation = ":memory:"

const (
	DefaultSize     = 8
	DefaultBackend  = BackendSQLite
	DefaultLocation = MemoryLocation
)

// Environment variables consulted by ApplyEnv.
const (
	EnvSize     = "ATTRGRID_SIZE"
	EnvBackend  = "ATTRGRID_BACKEND"
	EnvLocation = "ATTRGRID_LOCATION"
)

// GridConfig describes how to construct a grid. Unset fields fall back to
// the defaults above through the Get* methods, so partial files are safe.
type GridConfig struct {
	Size     *int    `json:"size,omitempty" toml:"size"`
	Backend  *string `json:"backend,omitempty" toml:"backend"`
	Location *string `json:"location,omitempty" toml:"location"`
}

// Helper functions to create pointers
func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// EmptyGridConfig returns a GridConfig with all fields set to nil.
func EmptyGridConfig() *GridConfig {
	return &GridConfig{}
}

// LoadGridConfig loads a GridConfig from a .json or .toml file. Unknown
// keys are rejected.
func LoadGridConfig(fsys fsutil.FileSystem, path string) (*GridConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".toml" {
		return nil, fmt.Errorf("config file must have .json or .toml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyGridConfig()
	switch ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config keys: %v", undecoded)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from ATTRGRID_* variables. lookup is normally
// os.LookupEnv.
func (c *GridConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvSize); ok && v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvSize, v, err)
		}
		c.Size = ptrInt(size)
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Backend = ptrString(v)
	}
	if v, ok := lookup(EnvLocation); ok && v != "" {
		c.Location = ptrString(v)
	}
	return nil
}

// Override sets any non-zero argument, for command-line flags which take
// precedence over files and the environment.
func (c *GridConfig) Override(size int, backend, location string) {
	if size != 0 {
		c.Size = ptrInt(size)
	}
	if backend != "" {
		c.Backend = ptrString(backend)
	}
	if location != "" {
		c.Location = ptrString(location)
	}
}

// Validate checks that the configuration values are valid.
func (c *GridConfig) Validate() error {
	if c.Size != nil && *c.Size <= 0 {
		return fmt.Errorf("size must be positive, got %d", *c.Size)
	}

	if c.Backend != nil {
		switch strings.ToLower(*c.Backend) {
		case BackendMemory, BackendSQLite, BackendPebble:
		default:
			return fmt.Errorf("unknown backend %q (want %s, %s or %s)", *c.Backend, BackendMemory, BackendSQLite, BackendPebble)
		}
	}

	if c.Location != nil && strings.TrimSpace(*c.Location) == "" {
		return fmt.Errorf("location must not be empty")
	}

	return nil
}

// GetSize returns the board dimension or the default.
func (c *GridConfig) GetSize() int {
	if c.Size == nil {
		return DefaultSize
	}
	return *c.Size
}

// GetBackend returns the lower-cased backend name or the default.
func (c *GridConfig) GetBackend() string {
	if c.Backend == nil {
		return DefaultBackend
	}
	return strings.ToLower(*c.Backend)
}

// GetLocation returns the storage location or the default.
func (c *GridConfig) GetLocation() string {
	if c.Location == nil {
		return DefaultLocation
	}
	return *c.Location
}

// IsDurable reports whether the configured grid survives the process.
func (c *GridConfig) IsDurable() bool {
	return c.GetBackend() != BackendMemory && c.GetLocation() != MemoryLocation
}
