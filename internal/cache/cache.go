// Package cache is the fail-open valuation cache in front of the store.
package cache

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/carlead/valuation-cli/internal/model"
	"github.com/carlead/valuation-cli/internal/store"
)

const (
	// DefaultTTL is how long a valuation stays servable.
	DefaultTTL = 7 * 24 * time.Hour

	// MileageBucket is the granularity at which mileages share a key.
	MileageBucket = 10000

	defaultVariant = "base"
	keySep         = "|"
)

var fold = cases.Lower(language.Und)

// normalize applies NFC, lowercases and trims.
func normalize(s string) string {
	return strings.TrimSpace(fold.String(norm.NFC.String(s)))
}

// BucketMileage rounds mileage to the nearest MileageBucket.
func BucketMileage(km int) int {
	return int(math.Round(float64(km)/MileageBucket)) * MileageBucket
}

// Key builds the cache key from the primary identifying attributes.
func Key(v model.ValuationInput) string {
	variant := normalize(v.Variant)
	if variant == "" {
		variant = defaultVariant
	}
	return strings.Join([]string{
		normalize(v.Brand),
		normalize(v.Model),
		variant,
		strconv.Itoa(v.Year),
		strconv.Itoa(BucketMileage(v.Mileage)),
		normalize(v.FuelType),
	}, keySep)
}

// Cache wraps a Store with TTL semantics. Store failures never reach the
// caller of Get or Set.
type Cache struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache backed by st.
func New(st store.Store, opts ...Option) *Cache {
	c := &Cache{store: st, ttl: DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the cached result for v, or nil on a miss or store error.
func (c *Cache) Get(ctx context.Context, v model.ValuationInput) *model.Result {
	key := Key(v)
	log := zap.L().With(zap.String("cache_key", key))

	entry, err := c.store.LatestValuation(ctx, key, c.now().Add(-c.ttl))
	if err != nil {
		log.Warn("cache: lookup failed, treating as miss", zap.Error(err))
		return nil
	}
	if entry == nil {
		log.Debug("cache: miss")
		return nil
	}

	log.Debug("cache: hit", zap.Time("created_at", entry.CreatedAt))
	return entry.Result()
}

// Set stores res for v when it carries a market value. Failures are logged.
func (c *Cache) Set(ctx context.Context, v model.ValuationInput, res *model.Result) {
	if res == nil || !res.HasValue() {
		return
	}
	key := Key(v)

	entry := &model.CacheEntry{
		Key:           key,
		Brand:         v.Brand,
		Model:         v.Model,
		Variant:       v.Variant,
		Year:          v.Year,
		Mileage:       v.Mileage,
		FuelType:      v.FuelType,
		MarketValue:   *res.MarketValue,
		PriceMin:      deref(res.PriceMin),
		PriceMax:      deref(res.PriceMax),
		PurchasePrice: deref(res.PurchasePrice),
		ListingsCount: res.ListingsCount,
		Sources:       res.Sources,
		Confidence:    res.Confidence,
		Reasoning:     res.Reasoning,
		CreatedAt:     c.now().UTC(),
	}
	if err := c.store.InsertValuation(ctx, entry); err != nil {
		zap.L().Warn("cache: write failed",
			zap.String("cache_key", key),
			zap.Error(err),
		)
	}
}

// CleanExpired deletes entries older than the TTL and returns how many were
// removed.
func (c *Cache) CleanExpired(ctx context.Context) (int, error) {
	n, err := c.store.DeleteValuationsBefore(ctx, c.now().Add(-c.ttl))
	if err != nil {
		return 0, err
	}
	zap.L().Info("cache: expired entries removed", zap.Int("deleted", n))
	return n, nil
}

// Stats summarizes the stored entries.
func (c *Cache) Stats(ctx context.Context) (*model.CacheStats, error) {
	return c.store.ValuationStats(ctx)
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
