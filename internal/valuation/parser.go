// Package valuation turns provider search output into a market valuation
// and orchestrates cache, strategies and upstream call policy.
package valuation

import (
	"math"
	"net/url"
	"strings"

	"github.com/carlead/valuation-cli/internal/extract"
	"github.com/carlead/valuation-cli/internal/model"
	"github.com/carlead/valuation-cli/internal/prompt"
	"github.com/carlead/valuation-cli/internal/stats"
)

// Parse defaults.
const (
	DefaultPurchaseMargin  = 0.15
	DefaultPreviewListings = 8
)

// ParseOptions tune Evaluate.
type ParseOptions struct {
	// PurchaseMargin is deducted from the market value for the purchase
	// offer (0.15 → purchase = 85% of market value).
	PurchaseMargin  float64
	PreviewListings int
}

func (o ParseOptions) withDefaults() ParseOptions {
	if o.PurchaseMargin <= 0 || o.PurchaseMargin >= 1 {
		o.PurchaseMargin = DefaultPurchaseMargin
	}
	if o.PreviewListings <= 0 {
		o.PreviewListings = DefaultPreviewListings
	}
	return o
}

// Parse decodes raw provider output and evaluates it against q.
func Parse(raw string, q prompt.Query, opts ParseOptions) (*model.Result, error) {
	p, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return Evaluate(p, q, opts), nil
}

// Evaluate filters the payload's listings, removes price outliers and
// computes the valuation. It never fails: missing or implausible data
// yields a no-data result.
func Evaluate(p *Payload, q prompt.Query, opts ParseOptions) *model.Result {
	opts = opts.withDefaults()

	if !p.HasListings() {
		reasoning := strings.TrimSpace(p.Reasoning)
		if reasoning == "" {
			reasoning = noListingsReasoning
		}
		return model.NoDataResult(reasoning)
	}

	window := q.Window(p.SearchType)
	listings, ext := resolveListings(p.Listings)

	candidates := make([]model.Listing, 0, len(listings))
	seen := make(map[string]bool, len(listings))
	for _, l := range listings {
		if !plausible(l, window) || q.Trims.Rejects(l.Title) {
			continue
		}
		if l.URL != "" {
			if seen[l.URL] {
				continue
			}
			seen[l.URL] = true
		}
		candidates = append(candidates, l)
	}
	if len(candidates) == 0 {
		res := model.NoDataResult(filteredReasoning)
		res.Extraction = ext
		return res
	}

	prices := make([]int, len(candidates))
	for i, l := range candidates {
		prices[i] = l.Price
	}
	kept := stats.RemoveOutliers(prices)
	lo, hi := minMax(kept)

	survivors := candidates[:0:0]
	for _, l := range candidates {
		if l.Price >= lo && l.Price <= hi {
			survivors = append(survivors, l)
		}
	}

	marketValue := int(math.Round(stats.Mean(kept)))
	purchase := int(math.Round(float64(marketValue) * (1 - opts.PurchaseMargin)))
	sources := sourceHosts(survivors)

	preview := survivors
	if len(preview) > opts.PreviewListings {
		preview = preview[:opts.PreviewListings]
	}

	res := &model.Result{
		MarketValue:   &marketValue,
		PriceMin:      &lo,
		PriceMax:      &hi,
		PurchasePrice: &purchase,
		ListingsCount: len(kept),
		Sources:       sources,
		Listings:      append([]model.Listing(nil), preview...),
		Confidence:    stats.Confidence(kept, marketValue),
		SearchType:    p.SearchType,
		Extraction:    ext,
	}
	res.Reasoning = composeReasoning(res, len(candidates)-len(kept))
	return res
}

// resolveListings reads the loosely typed fields of each raw listing,
// falling back to the extractors over the listing text.
func resolveListings(raw []RawListing) ([]model.Listing, *model.ExtractionStats) {
	out := make([]model.Listing, 0, len(raw))
	ext := &model.ExtractionStats{}

	for _, r := range raw {
		text := strings.TrimSpace(r.Title + " " + r.Description)
		l := model.Listing{
			URL:    strings.TrimSpace(r.URL),
			Title:  strings.TrimSpace(r.Title),
			Source: strings.TrimSpace(r.Source),
		}

		if v, ok := resolve(r.Price, text, extract.Price, true); ok && v > 0 {
			l.Price = v
			ext.Prices++
		}
		if v, ok := resolve(r.Mileage, text, extract.Mileage, true); ok && v > 0 {
			l.Mileage = &v
			ext.Mileages++
		}
		if v, ok := resolve(r.Year, text, extract.Year, false); ok && v > 0 {
			l.Year = &v
			ext.Years++
		}
		out = append(out, l)
	}

	if n := len(raw); n > 0 {
		got := ext.Prices + ext.Mileages + ext.Years
		ext.QualityScore = int(math.Round(100 * float64(got) / float64(3*n)))
	}
	return out, ext
}

// resolve returns a numeric field from its JSON value, its own text, or the
// listing text, in that order. bare allows unit-less numbers in field text.
func resolve(f LooseInt, text string, fn func(string) (int, bool), bare bool) (int, bool) {
	if f.Valid {
		return f.Value, true
	}
	if f.Text != "" {
		if v, ok := fn(f.Text); ok {
			return v, true
		}
		if bare {
			if v, ok := extract.Number(f.Text); ok {
				return v, true
			}
		}
		return 0, false
	}
	return fn(text)
}

func plausible(l model.Listing, w prompt.Window) bool {
	if l.Price < extract.MinPrice || l.Price > extract.MaxPrice {
		return false
	}
	if l.Year != nil && !w.HasYear(*l.Year) {
		return false
	}
	if l.Mileage != nil && !w.HasMileage(*l.Mileage) {
		return false
	}
	return true
}

func minMax(xs []int) (int, int) {
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	return lo, hi
}

// sourceHosts returns de-duplicated hostnames without "www." in first-seen
// order. Listings without a parseable URL contribute their source label.
func sourceHosts(listings []model.Listing) []string {
	hosts := make([]string, 0, len(listings))
	seen := make(map[string]bool, len(listings))
	for _, l := range listings {
		h := hostname(l.URL)
		if h == "" {
			h = strings.ToLower(strings.TrimPrefix(l.Source, "www."))
		}
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		hosts = append(hosts, h)
	}
	return hosts
}

func hostname(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
