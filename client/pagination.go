package client

import "github.com/axton-labs/backtrader/candle"

// pageFn fetches one page starting at (or ending at, for descending)
// cursor. paginateAscending expects the page sorted ascending;
// paginateDescending expects it newest-first and reverses it itself.
type pageFn func(cursor int64) ([]candle.Candle, error)

// paginateAscending implements the ascending-cursor strategy (§4.6):
// advance currentStart past the last bar returned each page, stopping on a
// short/empty page or once the cursor passes endMs.
func paginateAscending(startMs, endMs int64, pageSize int, fetch pageFn) ([]candle.Candle, error) {
	var all []candle.Candle
	cursor := startMs

	for cursor <= endMs {
		page, err := fetch(cursor)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		cursor = page[len(page)-1].T + 1
		if len(page) < pageSize {
			break
		}
	}

	return dedupAscending(all), nil
}

// paginateDescending implements the descending-cursor strategy (§4.6) for
// newest-first upstream APIs: fetch backward from currentEnd, reverse each
// page to oldest-first before appending, stop on a short page.
func paginateDescending(startMs, endMs int64, pageSize int, fetch pageFn) ([]candle.Candle, error) {
	var all []candle.Candle
	cursor := endMs

	for cursor >= startMs {
		page, err := fetch(cursor)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		reversed := make([]candle.Candle, len(page))
		for i, c := range page {
			reversed[len(page)-1-i] = c
		}
		all = append(reversed, all...)
		cursor = reversed[0].T - 1
		if len(page) < pageSize {
			break
		}
	}

	return dedupAscending(all), nil
}

// paginateFixedWindow implements fixed-window batching (§4.6): iterate
// [currentStart, min(currentStart+windowMs, endMs)] regardless of how many
// bars each window actually returns.
func paginateFixedWindow(startMs, endMs, intervalMs int64, maxCandlesPerPage int, fetch func(windowStart, windowEnd int64) ([]candle.Candle, error)) ([]candle.Candle, error) {
	windowMs := intervalMs * int64(maxCandlesPerPage)
	if windowMs <= 0 {
		windowMs = intervalMs
	}

	var all []candle.Candle
	cursor := startMs
	for cursor <= endMs {
		windowEnd := cursor + windowMs
		if windowEnd > endMs {
			windowEnd = endMs
		}
		page, err := fetch(cursor, windowEnd)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		cursor = windowEnd + intervalMs
	}

	return dedupAscending(all), nil
}
