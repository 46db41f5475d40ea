// Package config provides engine configuration for quiver query execution.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds the tunable knobs of the execution engine.
type Config struct {
	// ParallelThreshold is the minimum row count before chunk-level
	// parallelism is used. Below it everything runs single-threaded.
	ParallelThreshold int `yaml:"parallel_threshold"`
	// WorkerPoolSize is the number of worker goroutines (0 = NumCPU).
	WorkerPoolSize int `yaml:"worker_pool_size"`
	// ChunkSize is the target row count per parallel chunk (0 = derive
	// from row count and worker count).
	ChunkSize int `yaml:"chunk_size"`
	// SortParallelThreshold is the row count above which sorting switches
	// to the parallel sample sort.
	SortParallelThreshold int `yaml:"sort_parallel_threshold"`

	// Optimizer pass toggles. All enabled by default; disabling them is
	// only useful for debugging plan rewrites.
	PredicatePushdown  bool `yaml:"predicate_pushdown"`
	ProjectionPushdown bool `yaml:"projection_pushdown"`
	SlicePushdown      bool `yaml:"slice_pushdown"`
	ConstantFolding    bool `yaml:"constant_folding"`
	CommonSubexprElim  bool `yaml:"common_subexpr_elim"`
}

const (
	DefaultParallelThreshold     = 1000
	DefaultSortParallelThreshold = 4096
)

var (
	globalConfig Config
	configMu     sync.RWMutex
)

func init() {
	globalConfig = Default()
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		ParallelThreshold:     DefaultParallelThreshold,
		WorkerPoolSize:        0,
		ChunkSize:             0,
		SortParallelThreshold: DefaultSortParallelThreshold,
		PredicatePushdown:     true,
		ProjectionPushdown:    true,
		SlicePushdown:         true,
		ConstantFolding:       true,
		CommonSubexprElim:     true,
	}
}

// Validate reports the first invalid field, if any.
func (c *Config) Validate() error {
	if c.ParallelThreshold <= 0 {
		return fmt.Errorf("parallel_threshold must be positive, got %d", c.ParallelThreshold)
	}
	if c.WorkerPoolSize < 0 {
		return fmt.Errorf("worker_pool_size must be non-negative, got %d", c.WorkerPoolSize)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be non-negative, got %d", c.ChunkSize)
	}
	if c.SortParallelThreshold <= 0 {
		return fmt.Errorf("sort_parallel_threshold must be positive, got %d", c.SortParallelThreshold)
	}
	return nil
}

// Workers resolves the effective worker count.
func (c *Config) Workers() int {
	if c.WorkerPoolSize > 0 {
		return c.WorkerPoolSize
	}
	return runtime.NumCPU()
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(c Config) {
	configMu.Lock()
	defer configMu.Unlock()
	globalConfig = c
}

// Global returns a copy of the process-wide configuration.
func Global() Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// LoadFile loads a YAML configuration file on top of the defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

// LoadEnv loads configuration from QUIVER_* environment variables on top
// of the defaults. Unparseable values are ignored.
func LoadEnv() Config {
	config := Default()

	if v := os.Getenv("QUIVER_PARALLEL_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.ParallelThreshold = n
		}
	}
	if v := os.Getenv("QUIVER_WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("QUIVER_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.ChunkSize = n
		}
	}
	if v := os.Getenv("QUIVER_SORT_PARALLEL_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.SortParallelThreshold = n
		}
	}
	if v := os.Getenv("QUIVER_PREDICATE_PUSHDOWN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.PredicatePushdown = b
		}
	}
	if v := os.Getenv("QUIVER_PROJECTION_PUSHDOWN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.ProjectionPushdown = b
		}
	}
	if v := os.Getenv("QUIVER_SLICE_PUSHDOWN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.SlicePushdown = b
		}
	}
	if v := os.Getenv("QUIVER_CONSTANT_FOLDING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.ConstantFolding = b
		}
	}
	if v := os.Getenv("QUIVER_COMMON_SUBEXPR_ELIM"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.CommonSubexprElim = b
		}
	}

	return config
}
