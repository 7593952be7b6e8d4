// Package cache implements the Candle Cache (C4): a local, durable,
// content-addressed store of OHLCV bars keyed by (source, coin, interval,
// timestamp), with incremental backfill/forward-fill sync.
package cache

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/axton-labs/backtrader/candle"
	_ "modernc.org/sqlite"
)

// Store is a sqlite-backed candle cache.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a sqlite database at path and ensures
// its schema exists. Use ":memory:" for an ephemeral in-process store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			source   TEXT NOT NULL,
			coin     TEXT NOT NULL,
			interval TEXT NOT NULL,
			t        INTEGER NOT NULL,
			o        REAL NOT NULL,
			h        REAL NOT NULL,
			l        REAL NOT NULL,
			c        REAL NOT NULL,
			v        REAL NOT NULL,
			n        INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (source, coin, interval, t)
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_candles_lookup ON candles(source, coin, interval, t)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sync_meta (
			source         TEXT NOT NULL,
			coin           TEXT NOT NULL,
			interval       TEXT NOT NULL,
			last_timestamp INTEGER NOT NULL,
			updated_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (source, coin, interval)
		)
	`)
	return err
}

// Row is one persisted candle (CacheRow, §3).
type Row struct {
	Source   string
	Coin     string
	Interval candle.Interval
	candle.Candle
}

// GetCandles returns candles for (coin, interval, source) in [start, end],
// ordered ascending by t.
func (s *Store) GetCandles(ctx context.Context, coin string, interval candle.Interval, start, end int64, source string) ([]candle.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t, o, h, l, c, v, n FROM candles
		WHERE source = ? AND coin = ? AND interval = ? AND t >= ? AND t <= ?
		ORDER BY t ASC
	`, source, coin, string(interval), start, end)
	if err != nil {
		return nil, fmt.Errorf("cache: getCandles: %w", err)
	}
	defer rows.Close()

	var out []candle.Candle
	for rows.Next() {
		var c candle.Candle
		if err := rows.Scan(&c.T, &c.O, &c.H, &c.L, &c.C, &c.V, &c.N); err != nil {
			return nil, fmt.Errorf("cache: getCandles scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertCandles upserts a batch of candles for (source, coin, interval) and
// advances sync_meta.last_timestamp to max(previous, max(batch.t)), never
// decreasing it. The batch is applied atomically: all rows commit together
// or none do, preserving the last_timestamp invariant under interrupts.
func (s *Store) InsertCandles(ctx context.Context, source, coin string, interval candle.Interval, batch []candle.Candle) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: insertCandles begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (source, coin, interval, t, o, h, l, c, v, n)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, coin, interval, t) DO UPDATE SET
			o = excluded.o, h = excluded.h, l = excluded.l, c = excluded.c,
			v = excluded.v, n = excluded.n
	`)
	if err != nil {
		return fmt.Errorf("cache: insertCandles prepare: %w", err)
	}
	defer stmt.Close()

	maxT := batch[0].T
	for _, c := range batch {
		if _, err := stmt.ExecContext(ctx, source, coin, string(interval), c.T, c.O, c.H, c.L, c.C, c.V, c.N); err != nil {
			return fmt.Errorf("cache: insertCandles exec: %w", err)
		}
		if c.T > maxT {
			maxT = c.T
		}
	}

	var prevLast sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT last_timestamp FROM sync_meta WHERE source = ? AND coin = ? AND interval = ?
	`, source, coin, string(interval)).Scan(&prevLast)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("cache: insertCandles read sync_meta: %w", err)
	}

	newLast := maxT
	if prevLast.Valid && prevLast.Int64 > newLast {
		newLast = prevLast.Int64
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_meta (source, coin, interval, last_timestamp, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (source, coin, interval) DO UPDATE SET
			last_timestamp = excluded.last_timestamp, updated_at = CURRENT_TIMESTAMP
	`, source, coin, string(interval), newLast)
	if err != nil {
		return fmt.Errorf("cache: insertCandles write sync_meta: %w", err)
	}

	return tx.Commit()
}

// GetFirstTimestamp returns the earliest cached t for (source, coin,
// interval), or ok=false if no rows exist.
func (s *Store) GetFirstTimestamp(ctx context.Context, source, coin string, interval candle.Interval) (t int64, ok bool, err error) {
	return s.extremeTimestamp(ctx, source, coin, interval, "MIN")
}

// GetLastTimestamp returns the latest cached t for (source, coin, interval),
// or ok=false if no rows exist.
func (s *Store) GetLastTimestamp(ctx context.Context, source, coin string, interval candle.Interval) (t int64, ok bool, err error) {
	return s.extremeTimestamp(ctx, source, coin, interval, "MAX")
}

func (s *Store) extremeTimestamp(ctx context.Context, source, coin string, interval candle.Interval, agg string) (int64, bool, error) {
	query := fmt.Sprintf(`SELECT %s(t) FROM candles WHERE source = ? AND coin = ? AND interval = ?`, agg)
	var t sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, source, coin, string(interval)).Scan(&t)
	if err != nil {
		return 0, false, fmt.Errorf("cache: extremeTimestamp: %w", err)
	}
	if !t.Valid {
		return 0, false, nil
	}
	return t.Int64, true, nil
}

// GetCandleCount returns the number of cached rows for (source, coin, interval).
func (s *Store) GetCandleCount(ctx context.Context, source, coin string, interval candle.Interval) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM candles WHERE source = ? AND coin = ? AND interval = ?
	`, source, coin, string(interval)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("cache: getCandleCount: %w", err)
	}
	return n, nil
}
