package prompt

import (
	"regexp"
	"strings"
)

// Trim is a performance or premium trim recognised in variant names and
// listing titles.
type Trim struct {
	Name  string
	Brand string // lowercase brand restriction, empty for any brand
	re    *regexp.Regexp
}

// Matches reports whether text names this trim.
func (t Trim) Matches(brand, text string) bool {
	if t.Brand != "" && !strings.Contains(strings.ToLower(brand), t.Brand) {
		return false
	}
	return t.re.MatchString(styleLineRe.ReplaceAllString(text, " "))
}

// styleLineRe matches equipment packages named after a performance trim
// (R-Line, AMG Line, R-Design). They do not make the car a premium trim.
var styleLineRe = regexp.MustCompile(`(?i)\b(?:(?:R|ST|N|GT|S|AMG)[\s-]?Line|R[\s-]?(?:Dynamic|Design))\b`)

// tok wraps a pattern so it only matches as a standalone token. Trailing
// punctuation ends a token, so "GTI." still names the trim.
func tok(p string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[\s/(,])(?:` + p + `)(?:$|[\s/),.;:!-])`)
}

// Multi-word trims come first so "Type R" is not reported as "R".
var premiumTrims = []Trim{
	{Name: "Type R", re: tok(`Type[\s-]R`)},
	{Name: "Turbo S", re: tok(`Turbo\s+S`)},
	{Name: "GTI", re: tok(`GTI`)},
	{Name: "GTD", re: tok(`GTD`)},
	{Name: "GTE", re: tok(`GTE`)},
	{Name: "R", re: tok(`R|R\d{2}`)},
	{Name: "RS", re: tok(`RS\s?\d?|RS\d{2}`)},
	{Name: "AMG", re: tok(`AMG`)},
	{Name: "M-Sport", re: tok(`M[\s-]?Sport|M[\s-]?Performance`)},
	{Name: "M", Brand: "bmw", re: tok(`M[2-8]|X[3-6]\s?M|M\d{3}[id]`)},
	{Name: "ST", re: tok(`ST`)},
	{Name: "Cupra", re: tok(`Cupra`)},
	{Name: "Nismo", re: tok(`Nismo`)},
	{Name: "Competition", re: tok(`Competition`)},
	{Name: "SRT", re: tok(`SRT\d{0,2}`)},
	{Name: "Quadrifoglio", re: tok(`Quadrifoglio`)},
	{Name: "N", Brand: "hyundai", re: tok(`N`)},
}

// PremiumTrims returns the fixed premium trim set.
func PremiumTrims() []Trim {
	return premiumTrims
}

// MatchTrim returns the first premium trim named in text.
func MatchTrim(brand, text string) (Trim, bool) {
	for _, t := range premiumTrims {
		if t.Matches(brand, text) {
			return t, true
		}
	}
	return Trim{}, false
}

// TrimPolicy is the variant exclusion rule for one request. A premium
// request is restricted to its own trim and excludes every other premium
// trim; a base request excludes all of them.
type TrimPolicy struct {
	Brand    string
	Required *Trim
	Excluded []Trim
}

// NewTrimPolicy derives the policy from the requested variant.
func NewTrimPolicy(brand, variant string) TrimPolicy {
	p := TrimPolicy{Brand: brand}
	if t, ok := MatchTrim(brand, variant); ok {
		p.Required = &t
	}
	for _, t := range premiumTrims {
		if p.Required != nil && t.Name == p.Required.Name {
			continue
		}
		if t.Brand != "" && !strings.Contains(strings.ToLower(brand), t.Brand) {
			continue
		}
		p.Excluded = append(p.Excluded, t)
	}
	return p
}

// Premium reports whether a premium trim was requested.
func (p TrimPolicy) Premium() bool { return p.Required != nil }

// ExcludedNames lists the excluded trim names.
func (p TrimPolicy) ExcludedNames() []string {
	names := make([]string, 0, len(p.Excluded))
	for _, t := range p.Excluded {
		names = append(names, t.Name)
	}
	return names
}

// Rejects reports whether a listing title violates the policy. Titles that
// name no trim at all are accepted for premium requests, since many
// listings omit the trim.
func (p TrimPolicy) Rejects(title string) bool {
	if p.Required != nil {
		title = p.Required.re.ReplaceAllString(title, " ")
	}
	for _, t := range p.Excluded {
		if t.Matches(p.Brand, title) {
			return true
		}
	}
	return false
}
