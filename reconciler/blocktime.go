package reconciler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultBlockCacheSize is the number of block timestamps kept in memory
const DefaultBlockCacheSize = 50

// BlockFetcher reads a block header from the ledger
type BlockFetcher interface {
	GetBlock(ctx context.Context, number uint64) (Block, error)
}

// BlockTimes resolves block numbers to wall-clock timestamps.
//
// Results are kept in a strict LRU of bounded size. Concurrent lookups of
// a block that is not cached share a single GetBlock call; its error, if
// any, is returned to every caller and nothing is cached.
type BlockTimes struct {
	fetcher BlockFetcher
	cache   *lru.Cache[uint64, time.Time]
	flight  singleflight.Group
}

// NewBlockTimes creates a resolver holding up to size timestamps.
// A non-positive size falls back to DefaultBlockCacheSize.
func NewBlockTimes(fetcher BlockFetcher, size int) *BlockTimes {
	if size <= 0 {
		size = DefaultBlockCacheSize
	}

	// lru.New only fails for non-positive sizes
	cache, _ := lru.New[uint64, time.Time](size)

	return &BlockTimes{
		fetcher: fetcher,
		cache:   cache,
	}
}

// Resolve returns the timestamp of the given block
func (b *BlockTimes) Resolve(ctx context.Context, number uint64) (time.Time, error) {
	if ts, ok := b.cache.Get(number); ok {
		return ts, nil
	}

	// The shared fetch outlives any single caller: a waiter giving up must
	// not fail the others attached to the same flight.
	fetchCtx := context.WithoutCancel(ctx)

	ch := b.flight.DoChan(strconv.FormatUint(number, 10), func() (any, error) {
		// a previous flight may have filled the cache after our miss above
		if ts, ok := b.cache.Peek(number); ok {
			return ts, nil
		}

		block, err := b.fetcher.GetBlock(fetchCtx, number)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %w", ErrBlockTimestamp, number, err)
		}

		ts := time.Unix(block.Timestamp, 0).UTC()
		b.cache.Add(number, ts)

		return ts, nil
	})

	select {
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return time.Time{}, res.Err
		}
		return res.Val.(time.Time), nil
	}
}

// Len returns the number of cached timestamps
func (b *BlockTimes) Len() int {
	return b.cache.Len()
}
