// Package config loads the engine's tunables from a YAML document, the
// same configuration shape the rest of this codebase's ecosystem
// favors over hand-rolled flag parsing or environment variables.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every knob the update engine exposes to its host.
type Config struct {
	// IndexBase is the default array index origin (0 or 1) applied when
	// a call site doesn't override it explicitly.
	IndexBase int `yaml:"index_base"`

	// MaxOps caps how many operations a single Update call accepts,
	// guarding against unbounded allocation from a hostile or buggy
	// operations list.
	MaxOps int `yaml:"max_ops"`

	// ArenaSlabBytes sets the slab size internal/arena.Arena uses for
	// scratch allocations during one Update call.
	ArenaSlabBytes int `yaml:"arena_slab_bytes"`

	// ArenaBudgetBytes caps the bytes the arena's byte slabs may hold
	// once an Update call's output buffer is added to them, 0 meaning
	// unbounded. The typed pools (decoded operations, rope nodes) are
	// not counted.
	ArenaBudgetBytes int `yaml:"arena_budget_bytes"`
}

// Default returns the configuration the engine uses when the host
// supplies none.
func Default() Config {
	return Config{
		IndexBase:        1,
		MaxOps:           4000,
		ArenaSlabBytes:   64 * 1024,
		ArenaBudgetBytes: 0,
	}
}

// Load reads and parses a YAML configuration file at path, filling in
// Default() for any field the file omits.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.MaxOps <= 0 {
		return Config{}, fmt.Errorf("config: max_ops must be positive, got %d", cfg.MaxOps)
	}
	if cfg.IndexBase != 0 && cfg.IndexBase != 1 {
		return Config{}, fmt.Errorf("config: index_base must be 0 or 1, got %d", cfg.IndexBase)
	}
	return cfg, nil
}
