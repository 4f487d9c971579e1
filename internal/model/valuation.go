package model

// Confidence is a discrete label summarizing sample size and price dispersion.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// SearchType tells which search tier produced a result.
type SearchType string

const (
	SearchTypeExact   SearchType = "exact"   // tight year/mileage window
	SearchTypeSimilar SearchType = "similar" // widened window
	SearchTypeNone    SearchType = "none"    // no comparable data
)

// Listing is a comparable vehicle offer extracted from provider output.
type Listing struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Price   int    `json:"price"`
	Mileage *int   `json:"mileage,omitempty"`
	Year    *int   `json:"year,omitempty"`
	Source  string `json:"source,omitempty"`
}

// ExtractionStats records how many listing fields could be read.
type ExtractionStats struct {
	Prices       int `json:"prices"`
	Mileages     int `json:"mileages"`
	Years        int `json:"years"`
	QualityScore int `json:"quality_score"` // 0-100
}

// Result is the outcome of a valuation. MarketValue, PriceMin, PriceMax and
// PurchasePrice are nil exactly when Confidence is ConfidenceNone.
type Result struct {
	MarketValue   *int             `json:"market_value"`
	PriceMin      *int             `json:"price_min"`
	PriceMax      *int             `json:"price_max"`
	PurchasePrice *int             `json:"purchase_price"`
	ListingsCount int              `json:"listings_count"`
	Sources       []string         `json:"sources"`
	Listings      []Listing        `json:"listings"`
	Confidence    Confidence       `json:"confidence"`
	Reasoning     string           `json:"reasoning"`
	SearchType    SearchType       `json:"search_type"`
	Extraction    *ExtractionStats `json:"extraction,omitempty"`
	Cached        bool             `json:"cached"`
}

// HasValue reports whether the result carries a market value.
func (r *Result) HasValue() bool {
	return r != nil && r.MarketValue != nil
}

// NoDataResult builds the terminal "no comparable listings" result.
func NoDataResult(reasoning string) *Result {
	return &Result{
		Sources:    []string{},
		Listings:   []Listing{},
		Confidence: ConfidenceNone,
		Reasoning:  reasoning,
		SearchType: SearchTypeNone,
	}
}
