package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/carlead/valuation-cli/internal/db"
	"github.com/carlead/valuation-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	insertValuationSQL = `INSERT INTO valuation_cache (` + valuationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	latestValuationSQL = `SELECT ` + valuationColumns + ` FROM valuation_cache
		WHERE cache_key = $1 AND created_at > $2
		ORDER BY created_at DESC LIMIT 1`
	deleteValuationsSQL = `DELETE FROM valuation_cache WHERE created_at < $1`
	valuationStatsSQL   = `SELECT COUNT(*), COUNT(DISTINCT cache_key), MIN(created_at), MAX(created_at) FROM valuation_cache`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot valuation path.
var preparedStatements = map[string]string{
	"insert_valuation": insertValuationSQL,
	"latest_valuation": latestValuationSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS valuation_cache (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	sources        JSONB NOT NULL DEFAULT '[]'::jsonb,
	confidence     TEXT NOT NULL,
	reasoning      TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_valuation_cache_key_created ON valuation_cache(cache_key, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_valuation_cache_created ON valuation_cache(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) InsertValuation(ctx context.Context, e *model.CacheEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	sourcesJSON, err := marshalSources(e.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sources")
	}

	_, err = s.pool.Exec(ctx, insertValuationSQL,
		e.ID, e.Key, e.Brand, e.Model, e.Variant, e.Year, e.Mileage, e.FuelType,
		e.MarketValue, e.PriceMin, e.PriceMax, e.PurchasePrice, e.ListingsCount, sourcesJSON,
		string(e.Confidence), e.Reasoning, e.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert valuation")
}

func (s *PostgresStore) LatestValuation(ctx context.Context, key string, since time.Time) (*model.CacheEntry, error) {
	var (
		e           model.CacheEntry
		sourcesJSON []byte
		confidence  string
	)
	err := s.pool.QueryRow(ctx, latestValuationSQL, key, since).Scan(
		&e.ID, &e.Key, &e.Brand, &e.Model, &e.Variant, &e.Year, &e.Mileage, &e.FuelType,
		&e.MarketValue, &e.PriceMin, &e.PriceMax, &e.PurchasePrice, &e.ListingsCount, &sourcesJSON,
		&confidence, &e.Reasoning, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get latest valuation")
	}
	if err := json.Unmarshal(sourcesJSON, &e.Sources); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal sources")
	}
	e.Confidence = model.Confidence(confidence)
	return &e, nil
}

func (s *PostgresStore) DeleteValuationsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, deleteValuationsSQL, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired valuations")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ValuationStats(ctx context.Context) (*model.CacheStats, error) {
	var (
		st             model.CacheStats
		total, unique  int64
		oldest, newest *time.Time
	)
	err := s.pool.QueryRow(ctx, valuationStatsSQL).Scan(&total, &unique, &oldest, &newest)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: valuation stats")
	}
	st.TotalEntries = int(total)
	st.UniqueVehicles = int(unique)
	st.OldestEntry = oldest
	st.NewestEntry = newest
	return &st, nil
}
