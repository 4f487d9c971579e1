package valuation

import (
	"fmt"
	"strings"

	"github.com/carlead/valuation-cli/internal/extract"
	"github.com/carlead/valuation-cli/internal/model"
)

const (
	noListingsReasoning = "Für dieses Fahrzeug wurden aktuell keine vergleichbaren Inserate gefunden. " +
		"Wir melden uns persönlich mit einer Einschätzung."
	filteredReasoning = "Die gefundenen Inserate lagen ausserhalb des plausiblen Preis-, Jahrgangs- oder " +
		"Kilometerbereichs. Wir melden uns persönlich mit einer Einschätzung."
)

// chf formats an amount as "CHF 10'040".
func chf(v int) string {
	return "CHF " + extract.Grouped(v)
}

// composeReasoning writes the customer-facing explanation of a valued
// result. It names the listing count, the sources and the CHF figures.
func composeReasoning(res *model.Result, outliers int) string {
	var b strings.Builder

	noun := "vergleichbaren Inseraten"
	if res.ListingsCount == 1 {
		noun = "vergleichbaren Inserat"
	}
	fmt.Fprintf(&b, "Basierend auf %d %s", res.ListingsCount, noun)
	if len(res.Sources) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(res.Sources, ", "))
	}
	fmt.Fprintf(&b, " liegt der durchschnittliche Marktwert bei %s.", chf(*res.MarketValue))

	if *res.PriceMin != *res.PriceMax {
		fmt.Fprintf(&b, " Die Preise bewegen sich zwischen %s und %s.", chf(*res.PriceMin), chf(*res.PriceMax))
	}
	if res.SearchType == model.SearchTypeSimilar {
		b.WriteString(" Da keine exakt passenden Inserate gefunden wurden, sind ähnliche Fahrzeuge mit erweitertem Jahrgangs- und Kilometerfenster berücksichtigt.")
	}
	switch {
	case outliers == 1:
		b.WriteString(" Ein Ausreisser wurde nicht berücksichtigt.")
	case outliers > 1:
		fmt.Fprintf(&b, " %d Ausreisser wurden nicht berücksichtigt.", outliers)
	}
	return b.String()
}
