package prompt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carlead/valuation-cli/internal/extract"
	"github.com/carlead/valuation-cli/internal/model"
)

// Search tier windows around the requested year and mileage.
const (
	ExactYearDelta      = 2
	ExactMileageDelta   = 30_000
	SimilarYearDelta    = 3
	SimilarMileageDelta = 50_000
)

// DefaultMarketplaces is the marketplace allow-list.
var DefaultMarketplaces = []string{
	"autoscout24.ch",
	"carforyou.ch",
	"tutti.ch",
	"ricardo.ch",
	"anibis.ch",
	"autolina.ch",
	"comparis.ch",
}

// Window is the accepted year and mileage range of a search tier.
type Window struct {
	YearMin    int
	YearMax    int
	MileageMin int
	MileageMax int
}

func newWindow(year, km, dy, dkm int) Window {
	return Window{
		YearMin:    year - dy,
		YearMax:    year + dy,
		MileageMin: max(0, km-dkm),
		MileageMax: km + dkm,
	}
}

// HasYear reports whether y lies inside the window.
func (w Window) HasYear(y int) bool { return y >= w.YearMin && y <= w.YearMax }

// HasMileage reports whether km lies inside the window.
func (w Window) HasMileage(km int) bool { return km >= w.MileageMin && km <= w.MileageMax }

// Query is a built provider request plus the windows the parser filters by.
type Query struct {
	System  string
	User    string
	Search  string
	Exact   Window
	Similar Window
	Domains []string
	Trims   TrimPolicy
}

// Window returns the tier window matching the reported search type.
func (q Query) Window(t model.SearchType) Window {
	if t == model.SearchTypeExact {
		return q.Exact
	}
	return q.Similar
}

// Options tune Build.
type Options struct {
	Marketplaces []string
	Now          time.Time
}

const systemPrompt = `Du bist Experte für den Schweizer Gebrauchtwagenmarkt. Suche aktuelle Inserate vergleichbarer Fahrzeuge auf den genannten Plattformen und antworte ausschliesslich mit einem JSON-Objekt in diesem Format:
{"search_type":"exact|similar|none","listings":[{"url":"","title":"","price":0,"mileage":0,"year":0,"source":""}],"reasoning":""}
Regeln:
- Preise in CHF als ganze Zahl, Kilometerstand in km.
- Nur echte, aktuelle Inserate mit direkter URL, keine erfundenen Angebote.
- search_type "exact", wenn Inserate im engen Fenster gefunden wurden, "similar", wenn nur im erweiterten Fenster, sonst "none" mit leerer listings-Liste.
- reasoning: ein kurzer Satz auf Deutsch.
- Kein Text ausserhalb des JSON-Objekts.`

// Build assembles the provider query for v. All free text is sanitized and
// invalid refinements are dropped.
func Build(v model.ValuationInput, opts Options) Query {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	domains := opts.Marketplaces
	if len(domains) == 0 {
		domains = DefaultMarketplaces
	}

	brand, mdl, variant := Sanitize(v.Brand), Sanitize(v.Model), Sanitize(v.Variant)
	ref := Refine(v, opts.Now)

	q := Query{
		System:  systemPrompt,
		Exact:   newWindow(v.Year, v.Mileage, ExactYearDelta, ExactMileageDelta),
		Similar: newWindow(v.Year, v.Mileage, SimilarYearDelta, SimilarMileageDelta),
		Domains: domains,
		Trims:   NewTrimPolicy(brand, variant),
	}

	name := strings.TrimSpace(strings.Join([]string{brand, mdl, variant}, " "))

	var b strings.Builder
	fmt.Fprintf(&b, "Fahrzeug: %s\n", name)
	fmt.Fprintf(&b, "Jahrgang: %d\n", v.Year)
	fmt.Fprintf(&b, "Kilometerstand: %s km\n", extract.Grouped(v.Mileage))
	if fuel, ok := FuelType(v.FuelType); ok {
		fmt.Fprintf(&b, "Treibstoff: %s\n", fuel)
	}
	writeRefinements(&b, ref)

	b.WriteString("\nSuchfenster:\n")
	fmt.Fprintf(&b, "- exact: Jahrgang %d bis %d, %s bis %s km\n",
		q.Exact.YearMin, q.Exact.YearMax, extract.Grouped(q.Exact.MileageMin), extract.Grouped(q.Exact.MileageMax))
	fmt.Fprintf(&b, "- similar (nur falls exact nichts ergibt): Jahrgang %d bis %d, %s bis %s km\n",
		q.Similar.YearMin, q.Similar.YearMax, extract.Grouped(q.Similar.MileageMin), extract.Grouped(q.Similar.MileageMax))

	fmt.Fprintf(&b, "\nPlattformen: %s\n", strings.Join(domains, ", "))

	if q.Trims.Premium() {
		fmt.Fprintf(&b, "Nur die Ausführung %s berücksichtigen.", q.Trims.Required.Name)
		if ex := q.Trims.ExcludedNames(); len(ex) > 0 {
			fmt.Fprintf(&b, " Andere Performance-Ausführungen ausschliessen: %s.", strings.Join(ex, ", "))
		}
		b.WriteString("\n")
	} else {
		fmt.Fprintf(&b, "Basisausführung: Performance-Ausführungen ausschliessen (%s).\n", strings.Join(q.Trims.ExcludedNames(), ", "))
	}
	q.User = b.String()

	q.Search = strings.Join([]string{name, strconv.Itoa(v.Year), "occasion", "kaufen", "CHF"}, " ")
	return q
}

func writeRefinements(b *strings.Builder, r Refinements) {
	line := func(label, value string) {
		if value != "" && value != Filler {
			fmt.Fprintf(b, "%s: %s\n", label, value)
		}
	}
	line("Zustand", r.Condition)
	if r.PowerHP > 0 {
		line("Leistung", strconv.Itoa(r.PowerHP)+" PS")
	}
	line("Getriebe", r.Transmission)
	line("Karosserie", r.BodyType)
	line("Antrieb", r.DriveType)
	line("Letzte MFK", r.InspectionDate)
	if r.Owners > 0 {
		line("Vorbesitzer", strconv.Itoa(r.Owners))
	}
	if r.AccidentFree != nil {
		line("Unfallfrei", yesNo(*r.AccidentFree))
	}
	if r.ServiceHistory != nil {
		line("Serviceheft", yesNo(*r.ServiceHistory))
	}
	line("Farbe", r.Color)
	if len(r.Equipment) > 0 {
		line("Ausstattung", strings.Join(r.Equipment, ", "))
	}
}

func yesNo(v bool) string {
	if v {
		return "ja"
	}
	return "nein"
}
