package valuation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/carlead/valuation-cli/internal/model"
)

// MalformedResponseError is returned when provider output holds no
// decodable JSON object.
type MalformedResponseError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("valuation: malformed provider response: %s: %v", e.Reason, e.Err)
	}
	return "valuation: malformed provider response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Payload is the decoded provider JSON contract.
type Payload struct {
	SearchType model.SearchType `json:"search_type"`
	Listings   []RawListing     `json:"listings"`
	Reasoning  string           `json:"reasoning"`
}

// HasListings reports whether the payload carries any candidate data.
func (p *Payload) HasListings() bool {
	return p != nil && p.SearchType != model.SearchTypeNone && len(p.Listings) > 0
}

// RawListing is a listing as the provider reported it. Numeric fields may
// arrive as numbers or as text such as "CHF 9'500".
type RawListing struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Price       LooseInt `json:"price"`
	Mileage     LooseInt `json:"mileage"`
	Year        LooseInt `json:"year"`
	Source      string   `json:"source"`
	Description string   `json:"description"`
}

// LooseInt accepts a JSON number, string or null. Numbers set Valid; strings
// are kept in Text for the extractors.
type LooseInt struct {
	Value int
	Valid bool
	Text  string
}

// UnmarshalJSON implements json.Unmarshaler. Values of any other JSON type
// are treated as absent.
func (l *LooseInt) UnmarshalJSON(b []byte) error {
	*l = LooseInt{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		return json.Unmarshal(b, &l.Text)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		l.Value, l.Valid = int(math.Round(f)), true
	}
	return nil
}

// Decode extracts and decodes the JSON object embedded in raw provider
// output. Code fences and surrounding prose are ignored.
func Decode(raw string) (*Payload, error) {
	obj, ok := extractObject(raw)
	if !ok {
		return nil, &MalformedResponseError{Raw: raw, Reason: "no JSON object found"}
	}
	var p Payload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Reason: "decode", Err: err}
	}
	p.SearchType = model.SearchType(strings.ToLower(strings.TrimSpace(string(p.SearchType))))
	switch p.SearchType {
	case model.SearchTypeExact, model.SearchTypeSimilar, model.SearchTypeNone:
	case "":
		if len(p.Listings) == 0 {
			p.SearchType = model.SearchTypeNone
		} else {
			p.SearchType = model.SearchTypeSimilar
		}
	default:
		p.SearchType = model.SearchTypeSimilar
	}
	return &p, nil
}

// extractObject returns the span from the first '{' to the last '}' after
// stripping markdown code fences.
func extractObject(text string) (string, bool) {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
