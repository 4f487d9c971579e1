// Package store persists valuation cache entries.
package store

import (
	"context"
	"time"

	"github.com/carlead/valuation-cli/internal/model"
)

// Store defines the persistence interface for the valuation cache. Entries
// are append-only.
type Store interface {
	// Valuation cache
	InsertValuation(ctx context.Context, entry *model.CacheEntry) error
	// LatestValuation returns the newest entry for key created after since,
	// or nil, nil when there is none.
	LatestValuation(ctx context.Context, key string, since time.Time) (*model.CacheEntry, error)
	DeleteValuationsBefore(ctx context.Context, cutoff time.Time) (int, error)
	ValuationStats(ctx context.Context) (*model.CacheStats, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// valuationColumns is the column list shared by both backends.
const valuationColumns = `id, cache_key, brand, model, variant, year, mileage, fuel_type,
	market_value, price_min, price_max, purchase_price, listings_count, sources,
	confidence, reasoning, created_at`
