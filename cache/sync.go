package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/axton-labs/backtrader/candle"
	"github.com/axton-labs/backtrader/telemetry"
)

// Fetcher is the normalized upstream contract a candle-client adapter
// implements (§4.6): fetch bars in [startMs, endMs], ascending by t,
// deduplicated. Defined here (not imported from package client) so the
// cache has no dependency on any concrete upstream source.
type Fetcher interface {
	FetchCandles(ctx context.Context, coin string, interval candle.Interval, startMs, endMs int64) ([]candle.Candle, error)
}

// SyncResult reports how many bars a Sync call fetched from upstream versus
// how many were already cached.
type SyncResult struct {
	Fetched int
	Cached  int
}

// Sync brings the local cache for (source, coin, interval) up to date with
// [start, end] via backfill (filling before the earliest cached bar) and
// forward-fill (filling after the latest cached bar), per §4.5.
func (s *Store) Sync(ctx context.Context, source, coin string, interval candle.Interval, start, end int64, f Fetcher) (SyncResult, error) {
	syncStart := time.Now()
	result, err := s.sync(ctx, source, coin, interval, start, end, f)
	telemetry.RecordCacheSync(source, coin, string(interval), time.Since(syncStart).Seconds(), result.Fetched)
	return result, err
}

func (s *Store) sync(ctx context.Context, source, coin string, interval candle.Interval, start, end int64, f Fetcher) (SyncResult, error) {
	intervalMs, err := interval.Milliseconds()
	if err != nil {
		return SyncResult{}, fmt.Errorf("cache: sync: %w", err)
	}

	count, err := s.GetCandleCount(ctx, source, coin, interval)
	if err != nil {
		return SyncResult{}, err
	}

	var result SyncResult

	if count == 0 {
		batch, err := f.FetchCandles(ctx, coin, interval, start, end)
		if err != nil {
			return result, fmt.Errorf("cache: sync initial fetch: %w", err)
		}
		if err := s.InsertCandles(ctx, source, coin, interval, batch); err != nil {
			return result, err
		}
		result.Fetched = len(batch)
		return result, nil
	}

	firstCached, _, err := s.GetFirstTimestamp(ctx, source, coin, interval)
	if err != nil {
		return result, err
	}
	lastCached, _, err := s.GetLastTimestamp(ctx, source, coin, interval)
	if err != nil {
		return result, err
	}

	if start < firstCached {
		batch, err := f.FetchCandles(ctx, coin, interval, start, firstCached-1)
		if err != nil {
			return result, fmt.Errorf("cache: sync backfill fetch: %w", err)
		}
		if err := s.InsertCandles(ctx, source, coin, interval, batch); err != nil {
			return result, err
		}
		result.Fetched += len(batch)
	}

	forwardStart := lastCached + intervalMs
	if forwardStart < end {
		batch, err := f.FetchCandles(ctx, coin, interval, forwardStart, end)
		if err != nil {
			return result, fmt.Errorf("cache: sync forward-fill fetch: %w", err)
		}
		if err := s.InsertCandles(ctx, source, coin, interval, batch); err != nil {
			return result, err
		}
		result.Fetched += len(batch)
	}

	result.Cached = count
	return result, nil
}
