// Package parallel provides the data-parallel worker pool used by the
// execution engine.
//
// Operators split work at chunk or row-range granularity, process the
// pieces on a fan-out/fan-in pool, and merge results deterministically.
// Workers never share mutable state; each piece is owned exclusively by
// the worker that picked it up, and merge steps run after all workers
// finish.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// Pool manages a fixed set of goroutines for parallel processing.
type Pool struct {
	workers int
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPool creates a pool. A non-positive worker count means NumCPU.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{workers: workers, ctx: ctx, cancel: cancel}
}

// Workers returns the configured worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// Close shuts the pool down. In-flight items finish; queued items are
// abandoned.
func (p *Pool) Close() {
	p.cancel()
}

// Run executes the worker function over every item, preserving input
// order in the result slice. The first error cancels the remaining items
// and is returned.
func Run[T, R any](p *Pool, items []T, worker func(int, T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}

	type indexed struct {
		index int
		item  T
	}

	itemCh := make(chan indexed, len(items))
	results := make([]R, len(items))

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	ctx, cancel := context.WithCancel(p.ctx)
	defer cancel()

	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range itemCh {
				select {
				case <-ctx.Done():
					return
				default:
				}
				r, err := worker(it.index, it.item)
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					return
				}
				results[it.index] = r
			}
		}()
	}

	for i, item := range items {
		itemCh <- indexed{index: i, item: item}
	}
	close(itemCh)

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// Range is a half-open row interval [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of rows covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

const (
	minChunkRows    = 512
	maxChunkRows    = 65536
	chunksPerWorker = 3
)

// Ranges splits n rows into contiguous chunks sized for the pool. The
// chunk size aims for a few chunks per worker, clamped so tiny inputs do
// not fragment and huge inputs still pipeline.
func (p *Pool) Ranges(n int) []Range {
	return p.RangesWithChunk(n, 0)
}

// RangesWithChunk splits n rows using an explicit chunk size when
// positive, otherwise the derived size.
func (p *Pool) RangesWithChunk(n, chunk int) []Range {
	if n <= 0 {
		return nil
	}
	if chunk <= 0 {
		chunk = n / (p.workers * chunksPerWorker)
		if chunk < minChunkRows {
			chunk = minChunkRows
		}
		if chunk > maxChunkRows {
			chunk = maxChunkRows
		}
	}

	ranges := make([]Range, 0, (n+chunk-1)/chunk)
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges
}
