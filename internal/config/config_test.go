package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, DefaultParallelThreshold, c.ParallelThreshold)
	assert.Equal(t, DefaultSortParallelThreshold, c.SortParallelThreshold)
	assert.True(t, c.PredicatePushdown)
	assert.True(t, c.ProjectionPushdown)
	assert.True(t, c.SlicePushdown)
	assert.True(t, c.ConstantFolding)
	assert.True(t, c.CommonSubexprElim)
	assert.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero parallel threshold", func(c *Config) { c.ParallelThreshold = 0 }, "parallel_threshold"},
		{"negative workers", func(c *Config) { c.WorkerPoolSize = -1 }, "worker_pool_size"},
		{"negative chunk size", func(c *Config) { c.ChunkSize = -5 }, "chunk_size"},
		{"zero sort threshold", func(c *Config) { c.SortParallelThreshold = 0 }, "sort_parallel_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWorkersDefaultsToCPUCount(t *testing.T) {
	c := Default()
	assert.Positive(t, c.Workers())

	c.WorkerPoolSize = 3
	assert.Equal(t, 3, c.Workers())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quiver.yaml")
	content := []byte("parallel_threshold: 500\nworker_pool_size: 2\npredicate_pushdown: false\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 500, c.ParallelThreshold)
	assert.Equal(t, 2, c.WorkerPoolSize)
	assert.False(t, c.PredicatePushdown)
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultSortParallelThreshold, c.SortParallelThreshold)
}

func TestLoadFileInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parallel_threshold: -1\n"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("QUIVER_PARALLEL_THRESHOLD", "250")
	t.Setenv("QUIVER_SLICE_PUSHDOWN", "false")
	t.Setenv("QUIVER_WORKER_POOL_SIZE", "not-a-number")

	c := LoadEnv()
	assert.Equal(t, 250, c.ParallelThreshold)
	assert.False(t, c.SlicePushdown)
	assert.Equal(t, 0, c.WorkerPoolSize)
}

func TestGlobalRoundTrip(t *testing.T) {
	original := Global()
	defer SetGlobal(original)

	c := Default()
	c.ParallelThreshold = 42
	SetGlobal(c)
	assert.Equal(t, 42, Global().ParallelThreshold)
}
