package parallel

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPreservesOrder(t *testing.T) {
	pool := NewPool(4)
	defer pool.Close()

	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	results, err := Run(pool, items, func(_ int, v int) (int, error) {
		return v * v, nil
	})
	require.NoError(t, err)
	require.Len(t, results, 100)
	for i, r := range results {
		assert.Equal(t, i*i, r)
	}
}

func TestRunEmptyInput(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	results, err := Run(pool, nil, func(_ int, v int) (int, error) { return v, nil })
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestRunFailFast(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	boom := errors.New("boom")
	var calls atomic.Int64

	items := make([]int, 1000)
	_, err := Run(pool, items, func(i int, _ int) (int, error) {
		calls.Add(1)
		if i == 3 {
			return 0, boom
		}
		return 0, nil
	})

	require.ErrorIs(t, err, boom)
	// Cancellation is best-effort; the pool must at least not run every
	// remaining item after the failure.
	assert.Less(t, calls.Load(), int64(1000))
}

func TestRangesCoverInput(t *testing.T) {
	pool := NewPool(4)
	defer pool.Close()

	for _, n := range []int{0, 1, 511, 512, 513, 10000, 1_000_000} {
		ranges := pool.Ranges(n)

		covered := 0
		prevEnd := 0
		for _, r := range ranges {
			assert.Equal(t, prevEnd, r.Start)
			assert.Greater(t, r.End, r.Start)
			covered += r.Len()
			prevEnd = r.End
		}
		assert.Equal(t, n, covered, "n=%d", n)
	}
}

func TestRangesWithExplicitChunk(t *testing.T) {
	pool := NewPool(4)
	defer pool.Close()

	ranges := pool.RangesWithChunk(10, 4)
	require.Len(t, ranges, 3)
	assert.Equal(t, Range{Start: 8, End: 10}, ranges[2])
}
