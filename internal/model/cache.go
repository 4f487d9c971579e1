package model

import "time"

// CacheEntry is a persisted valuation. Entries are append-only; the newest
// non-expired entry for a key wins.
type CacheEntry struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	Variant  string `json:"variant"`
	Year     int    `json:"year"`
	Mileage  int    `json:"mileage"`
	FuelType string `json:"fuel_type"`

	MarketValue   int        `json:"market_value"`
	PriceMin      int        `json:"price_min"`
	PriceMax      int        `json:"price_max"`
	PurchasePrice int        `json:"purchase_price"`
	ListingsCount int        `json:"listings_count"`
	Sources       []string   `json:"sources"`
	Confidence    Confidence `json:"confidence"`
	Reasoning     string     `json:"reasoning"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Result rebuilds the aggregate figures of a cached valuation. Individual
// listings are not cached, so Listings is always empty.
func (e *CacheEntry) Result() *Result {
	mv, lo, hi, pp := e.MarketValue, e.PriceMin, e.PriceMax, e.PurchasePrice
	sources := e.Sources
	if sources == nil {
		sources = []string{}
	}
	return &Result{
		MarketValue:   &mv,
		PriceMin:      &lo,
		PriceMax:      &hi,
		PurchasePrice: &pp,
		ListingsCount: e.ListingsCount,
		Sources:       sources,
		Listings:      []Listing{},
		Confidence:    e.Confidence,
		Reasoning:     e.Reasoning,
		SearchType:    SearchTypeExact,
		Cached:        true,
	}
}

// CacheStats summarizes the valuation cache.
type CacheStats struct {
	TotalEntries   int        `json:"total_entries"`
	UniqueVehicles int        `json:"unique_vehicles"`
	OldestEntry    *time.Time `json:"oldest_entry"`
	NewestEntry    *time.Time `json:"newest_entry"`
}
