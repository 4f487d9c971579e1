// Package extract pulls prices, mileages and model years out of free-text
// listing snippets. All functions return ok=false instead of an implausible
// number.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/carlead/valuation-cli/internal/model"
)

// Plausibility band for a used-car asking price in CHF.
const (
	MinPrice = 1_000
	MaxPrice = 200_000
)

// number matches apostrophe-grouped (9'500, 9’500) or plain digit runs.
const number = `(\d{1,3}(?:['’]\d{3})+|\d+)`

var (
	pricePrefixRe = regexp.MustCompile(`(?i)(?:chf|sfr\.?|fr\.)\s*` + number + `(?:\.(?:-|–|\d{2}))?`)
	priceSuffixRe = regexp.MustCompile(`(?i)` + number + `(?:\.(?:-|–|\d{2}))?\s*(?:chf|franken|fr\.)`)
	mileageRe     = regexp.MustCompile(`(?i)` + number + `\s*km\b`)
	yearRe        = regexp.MustCompile(`\b(\d{4})\b`)
)

// Price returns the first currency-marked amount in text. Amounts outside
// [MinPrice, MaxPrice] are treated as not found.
func Price(text string) (int, bool) {
	m := firstMatch(text, pricePrefixRe, priceSuffixRe)
	if m == "" {
		return 0, false
	}
	v, ok := parseGrouped(m)
	if !ok || v < MinPrice || v > MaxPrice {
		return 0, false
	}
	return v, true
}

// Mileage returns the first number directly followed by "km". Speeds
// ("km/h") are skipped. No upper bound is applied here.
func Mileage(text string) (int, bool) {
	for _, idx := range mileageRe.FindAllStringSubmatchIndex(text, -1) {
		if strings.HasPrefix(text[idx[1]:], "/h") {
			continue
		}
		if v, ok := parseGrouped(text[idx[2]:idx[3]]); ok {
			return v, true
		}
	}
	return 0, false
}

// Year returns the first standalone four-digit token in
// [model.MinVehicleYear, model.MaxListingYear]. Digits embedded in longer
// numbers never match.
func Year(text string) (int, bool) {
	for _, m := range yearRe.FindAllStringSubmatch(text, -1) {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if v >= model.MinVehicleYear && v <= model.MaxListingYear {
			return v, true
		}
	}
	return 0, false
}

// firstMatch returns the captured number of whichever pattern matches
// earliest in text.
func firstMatch(text string, patterns ...*regexp.Regexp) string {
	best, bestPos := "", -1
	for _, re := range patterns {
		idx := re.FindStringSubmatchIndex(text)
		if idx == nil {
			continue
		}
		if bestPos == -1 || idx[0] < bestPos {
			best, bestPos = text[idx[2]:idx[3]], idx[0]
		}
	}
	return best
}

// parseGrouped parses a digit run that may contain apostrophe separators.
func parseGrouped(s string) (int, bool) {
	s = strings.NewReplacer("'", "", "’", "").Replace(s)
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Number reads a bare amount such as "9'500" or "12500" with no unit. It is
// used for loosely typed JSON fields.
func Number(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	return parseGrouped(text)
}

// Grouped formats n with apostrophe thousands separators (10040 → 10'040).
func Grouped(n int) string {
	if n < 0 {
		return "-" + Grouped(-n)
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('\'')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
