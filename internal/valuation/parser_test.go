package valuation

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlead/valuation-cli/internal/model"
	"github.com/carlead/valuation-cli/internal/prompt"
)

var testNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func golfInput() model.ValuationInput {
	return model.ValuationInput{Brand: "VW", Model: "Golf", Year: 2018, Mileage: 100000, FuelType: "Benzin"}
}

func golfQuery() prompt.Query {
	return prompt.Build(golfInput(), prompt.Options{Now: testNow})
}

// listingsJSON renders a provider response with one listing per price.
func listingsJSON(searchType string, prices ...int) string {
	items := make([]string, len(prices))
	for i, p := range prices {
		items[i] = fmt.Sprintf(`{"url":"https://www.autoscout24.ch/de/d/%d","title":"VW Golf 1.5 TSI","price":%d,"mileage":95000,"year":2018,"source":"AutoScout24"}`, i, p)
	}
	return fmt.Sprintf(`{"search_type":%q,"listings":[%s],"reasoning":"Gefunden."}`, searchType, strings.Join(items, ","))
}

func TestParse_FiveListingsNoOutliers(t *testing.T) {
	res, err := Parse(listingsJSON("exact", 9500, 10200, 11800, 9800, 8900), golfQuery(), ParseOptions{})
	require.NoError(t, err)

	require.NotNil(t, res.MarketValue)
	assert.Equal(t, 10040, *res.MarketValue)
	assert.Equal(t, 8900, *res.PriceMin)
	assert.Equal(t, 11800, *res.PriceMax)
	assert.Equal(t, 8534, *res.PurchasePrice)
	assert.Equal(t, 5, res.ListingsCount)
	assert.Contains(t, []model.Confidence{model.ConfidenceHigh, model.ConfidenceMedium}, res.Confidence)
	assert.Equal(t, model.ConfidenceHigh, res.Confidence)
	assert.Equal(t, model.SearchTypeExact, res.SearchType)
	assert.Equal(t, []string{"autoscout24.ch"}, res.Sources)
	assert.Contains(t, res.Reasoning, "5 vergleichbaren Inseraten")
	assert.Contains(t, res.Reasoning, "CHF 10'040")
	assert.Contains(t, res.Reasoning, "CHF 8'900")
	assert.Contains(t, res.Reasoning, "CHF 11'800")
	assert.False(t, res.Cached)
}

func TestParse_SearchTypeNone(t *testing.T) {
	res, err := Parse(`{"search_type":"none","listings":[],"reasoning":"Keine Inserate gefunden."}`, golfQuery(), ParseOptions{})
	require.NoError(t, err)

	assert.Nil(t, res.MarketValue)
	assert.Nil(t, res.PurchasePrice)
	assert.Equal(t, model.ConfidenceNone, res.Confidence)
	assert.Equal(t, 0, res.ListingsCount)
	assert.Equal(t, "Keine Inserate gefunden.", res.Reasoning)
	assert.Equal(t, model.SearchTypeNone, res.SearchType)
}

func TestParse_NoneWithoutReasoningUsesDefault(t *testing.T) {
	res, err := Parse(`{"search_type":"none"}`, golfQuery(), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, noListingsReasoning, res.Reasoning)
}

func TestParse_AllImplausiblePrices(t *testing.T) {
	res, err := Parse(listingsJSON("exact", 500, 250000), golfQuery(), ParseOptions{})
	require.NoError(t, err)

	assert.Nil(t, res.MarketValue)
	assert.Equal(t, model.ConfidenceNone, res.Confidence)
	assert.Equal(t, 0, res.ListingsCount)
	assert.NotEmpty(t, res.Reasoning)
	assert.Empty(t, res.Listings)
}

func TestParse_MalformedIsError(t *testing.T) {
	_, err := Parse("no json here", golfQuery(), ParseOptions{})
	var me *MalformedResponseError
	assert.ErrorAs(t, err, &me)
}

func TestParse_RemovesOutlier(t *testing.T) {
	res, err := Parse(listingsJSON("exact", 5000, 9000, 9500, 10000, 10500, 11000, 50000), golfQuery(), ParseOptions{})
	require.NoError(t, err)

	assert.Equal(t, 6, res.ListingsCount)
	assert.Equal(t, 11000, *res.PriceMax)
	assert.Equal(t, 5000, *res.PriceMin)
	for _, l := range res.Listings {
		assert.NotEqual(t, 50000, l.Price)
	}
	assert.Contains(t, res.Reasoning, "Ein Ausreisser")
}

func TestParse_WindowFilters(t *testing.T) {
	raw := `{"search_type":"exact","listings":[
		{"url":"https://a.ch/1","price":10000,"year":2018,"mileage":100000},
		{"url":"https://a.ch/2","price":11000,"year":2021,"mileage":100000},
		{"url":"https://a.ch/3","price":12000,"year":2018,"mileage":140000},
		{"url":"https://a.ch/4","price":13000}
	]}`
	res, err := Parse(raw, golfQuery(), ParseOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.ListingsCount, "year 2021 and 140'000 km fall outside the exact window")
	assert.Equal(t, 11500, *res.MarketValue)
}

func TestParse_SimilarUsesWiderWindow(t *testing.T) {
	raw := `{"search_type":"similar","listings":[
		{"url":"https://a.ch/1","price":10000,"year":2021,"mileage":140000},
		{"url":"https://a.ch/2","price":11000,"year":2022,"mileage":100000}
	]}`
	res, err := Parse(raw, golfQuery(), ParseOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ListingsCount)
	assert.Equal(t, model.SearchTypeSimilar, res.SearchType)
	assert.Contains(t, res.Reasoning, "ähnliche Fahrzeuge")
	assert.Contains(t, res.Reasoning, "1 vergleichbaren Inserat ")
}

func TestParse_LooseFieldsRecovered(t *testing.T) {
	raw := `{"search_type":"exact","listings":[
		{"url":"https://www.tutti.ch/x","title":"VW Golf 2018, 98'000 km","price":"CHF 12'500.-"},
		{"url":"https://carforyou.ch/y","title":"Golf","price":"11’900","mileage":"102'000 km","year":"2019"},
		{"url":"https://carforyou.ch/z","title":"VW Golf für Fr. 12'000","description":"Jahrgang 2017"}
	]}`
	res, err := Parse(raw, golfQuery(), ParseOptions{})
	require.NoError(t, err)

	require.Equal(t, 3, res.ListingsCount)
	assert.Equal(t, 12500, res.Listings[0].Price)
	require.NotNil(t, res.Listings[0].Mileage)
	assert.Equal(t, 98000, *res.Listings[0].Mileage)
	require.NotNil(t, res.Listings[0].Year)
	assert.Equal(t, 2018, *res.Listings[0].Year)
	assert.Equal(t, 11900, res.Listings[1].Price)
	assert.Equal(t, 12000, res.Listings[2].Price)
	assert.Nil(t, res.Listings[2].Mileage)
	assert.Equal(t, []string{"tutti.ch", "carforyou.ch"}, res.Sources)

	require.NotNil(t, res.Extraction)
	assert.Equal(t, 3, res.Extraction.Prices)
	assert.Equal(t, 2, res.Extraction.Mileages)
	assert.Equal(t, 3, res.Extraction.Years)
	assert.Equal(t, 89, res.Extraction.QualityScore) // round(100 * 8 / 9)
}

func TestParse_PreviewTruncated(t *testing.T) {
	prices := []int{10000, 10100, 10200, 10300, 10400, 10500, 10600, 10700, 10800, 10900, 11000}
	res, err := Parse(listingsJSON("exact", prices...), golfQuery(), ParseOptions{})
	require.NoError(t, err)

	assert.Equal(t, 11, res.ListingsCount)
	assert.Len(t, res.Listings, DefaultPreviewListings)

	res, err = Parse(listingsJSON("exact", prices...), golfQuery(), ParseOptions{PreviewListings: 3})
	require.NoError(t, err)
	assert.Len(t, res.Listings, 3)
}

func TestParse_PurchaseMarginConfigurable(t *testing.T) {
	res, err := Parse(listingsJSON("exact", 10000, 10000, 10000), golfQuery(), ParseOptions{PurchaseMargin: 0.2})
	require.NoError(t, err)
	assert.Equal(t, 8000, *res.PurchasePrice)
}

func TestParse_DuplicateURLsCountedOnce(t *testing.T) {
	raw := `{"search_type":"exact","listings":[
		{"url":"https://a.ch/1","price":10000},
		{"url":"https://a.ch/1","price":10000},
		{"url":"https://a.ch/2","price":12000}
	]}`
	res, err := Parse(raw, golfQuery(), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ListingsCount)
}

func TestParse_BaseRequestRejectsPremiumTitles(t *testing.T) {
	raw := `{"search_type":"exact","listings":[
		{"url":"https://a.ch/1","title":"VW Golf 1.5 TSI","price":15000},
		{"url":"https://a.ch/2","title":"VW Golf GTI","price":28000},
		{"url":"https://a.ch/3","title":"VW Golf R 4Motion","price":35000}
	]}`
	res, err := Parse(raw, golfQuery(), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ListingsCount)
	assert.Equal(t, 15000, *res.MarketValue)
}

func TestSourceHosts(t *testing.T) {
	got := sourceHosts([]model.Listing{
		{URL: "https://www.AutoScout24.ch/a"},
		{URL: "autoscout24.ch/b"},
		{URL: "https://tutti.ch/c"},
		{Source: "www.ricardo.ch"},
		{},
	})
	assert.Equal(t, []string{"autoscout24.ch", "tutti.ch", "ricardo.ch"}, got)
}
