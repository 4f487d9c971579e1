package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/carlead/valuation-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as unix milliseconds so range filters compare numerically.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS valuation_cache (
	id             TEXT PRIMARY KEY,
	cache_key      TEXT NOT NULL,
	brand          TEXT NOT NULL,
	model          TEXT NOT NULL,
	variant        TEXT NOT NULL DEFAULT '',
	year           INTEGER NOT NULL,
	mileage        INTEGER NOT NULL,
	fuel_type      TEXT NOT NULL DEFAULT '',
	market_value   INTEGER NOT NULL,
	price_min      INTEGER NOT NULL,
	price_max      INTEGER NOT NULL,
	purchase_price INTEGER NOT NULL,
	listings_count INTEGER NOT NULL,
	sources        TEXT NOT NULL DEFAULT '[]',
	confidence     TEXT NOT NULL,
	reasoning      TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_valuation_cache_key_created ON valuation_cache(cache_key, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_valuation_cache_created ON valuation_cache(created_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertValuation(ctx context.Context, e *model.CacheEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	sourcesJSON, err := marshalSources(e.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO valuation_cache (`+valuationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Key, e.Brand, e.Model, e.Variant, e.Year, e.Mileage, e.FuelType,
		e.MarketValue, e.PriceMin, e.PriceMax, e.PurchasePrice, e.ListingsCount, string(sourcesJSON),
		string(e.Confidence), e.Reasoning, e.CreatedAt.UnixMilli(),
	)
	return eris.Wrap(err, "sqlite: insert valuation")
}

func (s *SQLiteStore) LatestValuation(ctx context.Context, key string, since time.Time) (*model.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+valuationColumns+` FROM valuation_cache
		 WHERE cache_key = ? AND created_at > ?
		 ORDER BY created_at DESC LIMIT 1`,
		key, since.UnixMilli(),
	)

	var (
		e           model.CacheEntry
		sourcesJSON string
		confidence  string
		createdAt   int64
	)
	err := row.Scan(&e.ID, &e.Key, &e.Brand, &e.Model, &e.Variant, &e.Year, &e.Mileage, &e.FuelType,
		&e.MarketValue, &e.PriceMin, &e.PriceMax, &e.PurchasePrice, &e.ListingsCount, &sourcesJSON,
		&confidence, &e.Reasoning, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get latest valuation")
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &e.Sources); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal sources")
	}
	e.Confidence = model.Confidence(confidence)
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &e, nil
}

func (s *SQLiteStore) DeleteValuationsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM valuation_cache WHERE created_at < ?`,
		cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired valuations")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) ValuationStats(ctx context.Context) (*model.CacheStats, error) {
	var (
		st             model.CacheStats
		oldest, newest sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT cache_key), MIN(created_at), MAX(created_at) FROM valuation_cache`,
	).Scan(&st.TotalEntries, &st.UniqueVehicles, &oldest, &newest)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: valuation stats")
	}
	if oldest.Valid {
		t := time.UnixMilli(oldest.Int64).UTC()
		st.OldestEntry = &t
	}
	if newest.Valid {
		t := time.UnixMilli(newest.Int64).UTC()
		st.NewestEntry = &t
	}
	return &st, nil
}

// helpers

func marshalSources(sources []string) ([]byte, error) {
	if sources == nil {
		sources = []string{}
	}
	return json.Marshal(sources)
}
