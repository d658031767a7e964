package core

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Config — runtime configuration for the spikemat CLI and dispatcher.
//
// The configuration is resolved through a hierarchy where each layer
// overrides the one beneath it:
//
//	Priority (highest → lowest):
//	  1. CLI flags (applied by the caller after loading)
//	  2. YAML configuration file
//	  3. Environment variables (SPIKEMAT_* prefix)
//	  4. Built-in defaults
// ---------------------------------------------------------------------------

// Default auto-selection thresholds over the problem-size score
// (neurons + 100 * ticks).
const (
	DefaultParallelThreshold = 10000
	DefaultFusedThreshold    = 1000
)

// EngineConfig groups backend selection settings.
type EngineConfig struct {
	// Backend is the default backend: auto | cpu | fused | parallel.
	Backend string `yaml:"backend"`

	// ParallelThreshold is the problem-size score above which "auto"
	// prefers the parallel backend when the host is capable.
	ParallelThreshold int `yaml:"parallelThreshold"`

	// FusedThreshold is the problem-size score above which "auto" prefers
	// the fused backend when the host is capable.
	FusedThreshold int `yaml:"fusedThreshold"`

	// Workers caps the worker count of the parallel backend. 0 uses one
	// worker per logical CPU.
	Workers int `yaml:"workers"`
}

// SnapshotConfig groups snapshot store settings.
type SnapshotConfig struct {
	// Dir is the directory where .smat snapshot files are stored.
	Dir string `yaml:"dir"`

	// Compress enables gzip compression of snapshot payloads.
	Compress bool `yaml:"compress"`
}

// Config is the full spikemat configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Backend:           "auto",
			ParallelThreshold: DefaultParallelThreshold,
			FusedThreshold:    DefaultFusedThreshold,
		},
		Snapshot: SnapshotConfig{
			Dir: "./data",
		},
	}
}

// LoadConfig resolves the configuration hierarchy: built-in defaults,
// overridden by SPIKEMAT_* environment variables, overridden by the YAML
// file at configPath when non-empty. CLI flags are applied by the caller
// on top of the returned value.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	applyEnv(cfg)

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SPIKEMAT_BACKEND"); v != "" {
		cfg.Engine.Backend = v
	}
	if v := os.Getenv("SPIKEMAT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.Workers = n
		}
	}
	if v := os.Getenv("SPIKEMAT_PARALLEL_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.ParallelThreshold = n
		}
	}
	if v := os.Getenv("SPIKEMAT_FUSED_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.FusedThreshold = n
		}
	}
	if v := os.Getenv("SPIKEMAT_SNAPSHOT_DIR"); v != "" {
		cfg.Snapshot.Dir = v
	}
	if v := os.Getenv("SPIKEMAT_COMPRESS"); v != "" {
		cfg.Snapshot.Compress = v == "1" || v == "true"
	}
}

// Validate checks the configuration for values the engine would reject.
func (c *Config) Validate() error {
	switch c.Engine.Backend {
	case "auto", "cpu", "fused", "parallel":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Engine.Backend)
	}
	if c.Engine.ParallelThreshold <= 0 || c.Engine.FusedThreshold <= 0 {
		return fmt.Errorf("backend thresholds must be positive")
	}
	if c.Engine.FusedThreshold > c.Engine.ParallelThreshold {
		return fmt.Errorf("fused threshold must not exceed parallel threshold")
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.Snapshot.Dir == "" {
		return fmt.Errorf("snapshot dir must not be empty")
	}
	return nil
}
