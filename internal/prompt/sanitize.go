// Package prompt builds the provider query for a valuation request and
// hardens every user-supplied value that ends up in it.
package prompt

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Filler replaces scrubbed instruction-like phrases.
const Filler = "[entfernt]"

// MaxFieldLength bounds a single free-text field in runes.
const MaxFieldLength = 100

// injectionPatterns recognise instruction-override phrasing in German,
// English and common chat-markup delimiters.
var injectionPatterns = []*regexp.Regexp{
	// German
	regexp.MustCompile(`(?i)ignorier(?:e|en)?\s+(?:alle\s+)?(?:vorherigen|obigen|bisherigen|vorigen)?\s*(?:anweisungen|instruktionen|befehle|regeln)`),
	regexp.MustCompile(`(?i)vergiss\s+(?:alle\s+)?(?:vorherigen|obigen|bisherigen|deine)?\s*(?:anweisungen|instruktionen|regeln)`),
	regexp.MustCompile(`(?i)du\s+bist\s+(?:jetzt|nun|ab\s+sofort)`),
	regexp.MustCompile(`(?i)neue\s+(?:anweisung|anweisungen|instruktionen|rolle)`),
	regexp.MustCompile(`(?i)antworte\s+(?:nur|ausschliesslich|ausschließlich)\s+mit`),
	regexp.MustCompile(`(?i)gib\s+(?:immer\s+)?(?:einen\s+)?preis\s+von`),
	// English
	regexp.MustCompile(`(?i)ignore\s+(?:all\s+)?(?:the\s+)?(?:previous|prior|above|earlier)\s+(?:instructions|prompts|rules|messages)`),
	regexp.MustCompile(`(?i)disregard\s+(?:all\s+)?(?:the\s+)?(?:previous|prior|above|earlier)`),
	regexp.MustCompile(`(?i)forget\s+(?:all\s+)?(?:your|the|previous|prior)\s+(?:instructions|rules|prompts)`),
	regexp.MustCompile(`(?i)you\s+are\s+now`),
	regexp.MustCompile(`(?i)pretend\s+(?:to\s+be|you\s+are)`),
	regexp.MustCompile(`(?i)\bact\s+as\b`),
	regexp.MustCompile(`(?i)new\s+instructions?`),
	regexp.MustCompile(`(?i)system\s*prompt`),
	regexp.MustCompile(`(?i)\b(?:system|assistant|user)\s*:`),
	// chat markup
	regexp.MustCompile(`<\|[^|>]*\|>`),
	regexp.MustCompile(`(?i)\[/?inst\]`),
	regexp.MustCompile(`(?i)<</?sys>>`),
	regexp.MustCompile(`(?i)###\s*(?:system|instruction|instructions|assistant)`),
	regexp.MustCompile("```"),
}

var spaceRe = regexp.MustCompile(`\s+`)

// Sanitize scrubs s and truncates it to MaxFieldLength runes.
func Sanitize(s string) string {
	s = Scrub(s)
	if utf8.RuneCountInString(s) > MaxFieldLength {
		s = strings.TrimSpace(string([]rune(s)[:MaxFieldLength]))
	}
	return s
}

// Scrub replaces instruction-like phrases with Filler, strips control
// characters and collapses whitespace. Unlike Sanitize it keeps the full
// length, for longer third-party text such as search snippets.
func Scrub(s string) string {
	if s == "" {
		return ""
	}
	for _, re := range injectionPatterns {
		s = re.ReplaceAllString(s, Filler)
	}
	s = strings.Map(func(r rune) rune {
		if r == utf8.RuneError || unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// suspiciousChars flags markup and template characters that never occur in
// vehicle names.
var suspiciousChars = regexp.MustCompile(`[{}<>\[\]\\$` + "`" + `]`)

// IsSuspicious reports whether s looks like an injection attempt.
func IsSuspicious(s string) bool {
	if utf8.RuneCountInString(s) > MaxFieldLength || suspiciousChars.MatchString(s) {
		return true
	}
	for _, re := range injectionPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
