package valuation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carlead/valuation-cli/internal/model"
)

func valued(mv, lo, hi, n int, st model.SearchType, sources ...string) *model.Result {
	return &model.Result{
		MarketValue:   &mv,
		PriceMin:      &lo,
		PriceMax:      &hi,
		ListingsCount: n,
		Sources:       sources,
		SearchType:    st,
	}
}

func TestChf(t *testing.T) {
	assert.Equal(t, "CHF 10'040", chf(10040))
	assert.Equal(t, "CHF 950", chf(950))
	assert.Equal(t, "CHF 1'250'000", chf(1250000))
}

func TestComposeReasoning(t *testing.T) {
	tests := []struct {
		name     string
		res      *model.Result
		outliers int
		contains []string
		excludes []string
	}{
		{
			name:     "exact with range",
			res:      valued(10040, 8900, 11800, 5, model.SearchTypeExact, "autoscout24.ch", "tutti.ch"),
			contains: []string{"5 vergleichbaren Inseraten (autoscout24.ch, tutti.ch)", "CHF 10'040", "zwischen CHF 8'900 und CHF 11'800"},
			excludes: []string{"ähnliche", "Ausreisser"},
		},
		{
			name:     "single listing has no range",
			res:      valued(12000, 12000, 12000, 1, model.SearchTypeExact),
			contains: []string{"1 vergleichbaren Inserat liegt", "CHF 12'000."},
			excludes: []string{"zwischen"},
		},
		{
			name:     "similar tier",
			res:      valued(15000, 14000, 16000, 3, model.SearchTypeSimilar, "carforyou.ch"),
			contains: []string{"ähnliche Fahrzeuge"},
		},
		{
			name:     "several outliers",
			res:      valued(15000, 14000, 16000, 6, model.SearchTypeExact),
			outliers: 2,
			contains: []string{"2 Ausreisser wurden nicht berücksichtigt."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := composeReasoning(tt.res, tt.outliers)
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, got, s)
			}
		})
	}
}
