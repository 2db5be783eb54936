package reconciler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/pledger/reconciler"
)

func TestBlockTimes(t *testing.T) {
	t.Parallel()

	t.Run("it converts unix seconds to UTC time", func(t *testing.T) {
		t.Parallel()

		// Arrange
		fetcher := &gatedFetcher{}
		bt := reconciler.NewBlockTimes(fetcher, 10)

		// Act
		ts, err := bt.Resolve(t.Context(), 7)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, time.Unix(1_000_007, 0).UTC(), ts)
	})

	t.Run("it serves repeated lookups from the cache", func(t *testing.T) {
		t.Parallel()

		// Arrange
		fetcher := &gatedFetcher{}
		bt := reconciler.NewBlockTimes(fetcher, 10)

		// Act
		first, err := bt.Resolve(t.Context(), 7)
		require.NoError(t, err)
		second, err := bt.Resolve(t.Context(), 7)
		require.NoError(t, err)

		// Assert
		assert.Equal(t, first, second)
		assert.Equal(t, int64(1), fetcher.calls.Load())
	})

	t.Run("it shares one fetch between concurrent lookups", func(t *testing.T) {
		t.Parallel()

		// Arrange
		fetcher := &gatedFetcher{started: make(chan struct{}, 1), release: make(chan struct{})}
		bt := reconciler.NewBlockTimes(fetcher, 10)

		// Act
		results := resolveConcurrently(t, bt, 7, 16, func() {
			<-fetcher.started
			close(fetcher.release)
		})

		// Assert
		assert.Equal(t, int64(1), fetcher.calls.Load(), "Expected a single underlying fetch")
		for _, r := range results {
			require.NoError(t, r.err)
			assert.Equal(t, results[0].ts, r.ts)
		}
	})

	t.Run("it reports a failed fetch to every waiter and caches nothing", func(t *testing.T) {
		t.Parallel()

		// Arrange
		fetcher := &gatedFetcher{
			started: make(chan struct{}, 1),
			release: make(chan struct{}),
			err:     errors.New("gateway down"),
		}
		bt := reconciler.NewBlockTimes(fetcher, 10)

		// Act
		results := resolveConcurrently(t, bt, 7, 4, func() {
			<-fetcher.started
			close(fetcher.release)
		})

		// Assert
		for _, r := range results {
			assert.ErrorIs(t, r.err, reconciler.ErrBlockTimestamp)
		}
		assert.Zero(t, bt.Len(), "Failures must not be cached")
	})

	t.Run("it lets a cancelled waiter leave without failing the fetch", func(t *testing.T) {
		t.Parallel()

		// Arrange
		fetcher := &gatedFetcher{started: make(chan struct{}, 1), release: make(chan struct{})}
		bt := reconciler.NewBlockTimes(fetcher, 10)
		ctx, cancel := context.WithCancel(t.Context())

		errCh := make(chan error, 1)
		go func() {
			_, err := bt.Resolve(ctx, 7)
			errCh <- err
		}()
		<-fetcher.started

		// Act
		cancel()
		err := <-errCh
		close(fetcher.release)

		// Assert
		require.ErrorIs(t, err, context.Canceled)
		_, err = bt.Resolve(t.Context(), 7)
		require.NoError(t, err)
		assert.Equal(t, int64(1), fetcher.calls.Load(), "The abandoned fetch should still fill the cache")
	})

	t.Run("it evicts the least recently used block", func(t *testing.T) {
		t.Parallel()

		// Arrange
		fetcher := &gatedFetcher{}
		bt := reconciler.NewBlockTimes(fetcher, 2)
		resolveAll(t, bt, 1, 2)
		resolveAll(t, bt, 1) // touch 1 so 2 becomes the oldest

		// Act
		resolveAll(t, bt, 3)

		// Assert
		assert.Equal(t, 2, bt.Len())
		resolveAll(t, bt, 1)
		assert.Equal(t, int64(3), fetcher.calls.Load(), "Block 1 should still be cached")
		resolveAll(t, bt, 2)
		assert.Equal(t, int64(4), fetcher.calls.Load(), "Block 2 should have been evicted")
	})

	t.Run("it holds at most fifty blocks by default", func(t *testing.T) {
		t.Parallel()

		// Arrange
		fetcher := &gatedFetcher{}
		bt := reconciler.NewBlockTimes(fetcher, 0)

		// Act
		for n := range uint64(60) {
			resolveAll(t, bt, n)
		}

		// Assert
		assert.Equal(t, reconciler.DefaultBlockCacheSize, bt.Len())
	})
}

// Test setup helpers

type resolveResult struct {
	ts  time.Time
	err error
}

func resolveConcurrently(t *testing.T, bt *reconciler.BlockTimes, number uint64, n int, whileWaiting func()) []resolveResult {
	t.Helper()

	results := make([]resolveResult, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts, err := bt.Resolve(t.Context(), number)
			results[i] = resolveResult{ts: ts, err: err}
		}()
	}

	whileWaiting()
	wg.Wait()

	return results
}

func resolveAll(t *testing.T, bt *reconciler.BlockTimes, numbers ...uint64) {
	t.Helper()
	for _, n := range numbers {
		_, err := bt.Resolve(t.Context(), n)
		require.NoError(t, err)
	}
}

// Mock implementations

// gatedFetcher optionally blocks inside GetBlock until released
type gatedFetcher struct {
	calls   atomic.Int64
	started chan struct{}
	release chan struct{}
	err     error
}

func (f *gatedFetcher) GetBlock(_ context.Context, number uint64) (reconciler.Block, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return reconciler.Block{}, f.err
	}
	return reconciler.Block{Number: number, Timestamp: 1_000_000 + int64(number)}, nil
}
