package prompt

import (
	"strings"
	"time"

	"github.com/carlead/valuation-cli/internal/model"
)

// Accepted ranges for numeric refinements.
const (
	MinPowerHP = 40
	MaxPowerHP = 1000
	MinOwners  = 1
	MaxOwners  = 10

	maxEquipment = 20
)

var fuelTypes = map[string]string{
	"benzin":         "Benzin",
	"petrol":         "Benzin",
	"gasoline":       "Benzin",
	"diesel":         "Diesel",
	"elektro":        "Elektro",
	"electric":       "Elektro",
	"hybrid":         "Hybrid",
	"plug-in-hybrid": "Plug-in-Hybrid",
	"plug-in hybrid": "Plug-in-Hybrid",
	"erdgas":         "Erdgas",
	"cng":            "Erdgas",
	"wasserstoff":    "Wasserstoff",
	"hydrogen":       "Wasserstoff",
	"mild-hybrid":    "Mild-Hybrid",
	"benzin/elektro": "Hybrid",
	"diesel/elektro": "Hybrid",
}

var transmissions = map[string]string{
	"manuell":        "Schaltgetriebe",
	"schaltgetriebe": "Schaltgetriebe",
	"manual":         "Schaltgetriebe",
	"automatik":      "Automatik",
	"automatic":      "Automatik",
	"halbautomatik":  "Halbautomatik",
	"semi-automatic": "Halbautomatik",
}

var conditions = map[string]string{
	"neuwertig": "neuwertig",
	"excellent": "neuwertig",
	"sehr gut":  "sehr gut",
	"very good": "sehr gut",
	"gut":       "gut",
	"good":      "gut",
	"mittel":    "mittel",
	"fair":      "mittel",
	"schlecht":  "schlecht",
	"poor":      "schlecht",
	"defekt":    "defekt",
	"damaged":   "defekt",
}

func lookup(table map[string]string, s string) (string, bool) {
	v, ok := table[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// FuelType maps s onto the canonical German fuel label.
func FuelType(s string) (string, bool) { return lookup(fuelTypes, s) }

// Transmission maps s onto the canonical German gearbox label.
func Transmission(s string) (string, bool) { return lookup(transmissions, s) }

// Condition maps s onto the canonical German condition label.
func Condition(s string) (string, bool) { return lookup(conditions, s) }

// PowerHP returns hp when it lies in [MinPowerHP, MaxPowerHP].
func PowerHP(hp *int) (int, bool) {
	if hp == nil || *hp < MinPowerHP || *hp > MaxPowerHP {
		return 0, false
	}
	return *hp, true
}

// Owners returns n when it lies in [MinOwners, MaxOwners].
func Owners(n *int) (int, bool) {
	if n == nil || *n < MinOwners || *n > MaxOwners {
		return 0, false
	}
	return *n, true
}

// InspectionDate accepts YYYY-MM or YYYY-MM-DD dates between 1990 and now
// and returns them as MM.YYYY.
func InspectionDate(s string, now time.Time) (string, bool) {
	s = strings.TrimSpace(s)
	var (
		t   time.Time
		err error
	)
	switch len(s) {
	case len("2006-01"):
		t, err = time.Parse("2006-01", s)
	case len("2006-01-02"):
		t, err = time.Parse("2006-01-02", s)
	default:
		return "", false
	}
	if err != nil || t.Year() < model.MinVehicleYear || t.After(now) {
		return "", false
	}
	return t.Format("01.2006"), true
}

// Refinements are the validated optional attributes. Invalid values are
// dropped rather than passed through.
type Refinements struct {
	Condition      string
	PowerHP        int
	Transmission   string
	BodyType       string
	DriveType      string
	InspectionDate string
	Owners         int
	AccidentFree   *bool
	ServiceHistory *bool
	Color          string
	Equipment      []string
}

// Refine validates and sanitizes the optional attributes of v.
func Refine(v model.ValuationInput, now time.Time) Refinements {
	var r Refinements
	r.Condition, _ = Condition(v.Condition)
	r.PowerHP, _ = PowerHP(v.PowerHP)
	r.Transmission, _ = Transmission(v.Transmission)
	r.BodyType = Sanitize(v.BodyType)
	r.DriveType = Sanitize(v.DriveType)
	r.InspectionDate, _ = InspectionDate(v.InspectionDate, now)
	r.Owners, _ = Owners(v.Owners)
	r.AccidentFree = v.AccidentFree
	r.ServiceHistory = v.ServiceHistory
	r.Color = Sanitize(v.Color)
	for _, e := range v.Equipment {
		if len(r.Equipment) == maxEquipment {
			break
		}
		if s := Sanitize(e); s != "" && s != Filler {
			r.Equipment = append(r.Equipment, s)
		}
	}
	return r
}

// DetectSuspicious returns the names of identifying fields whose raw value
// looks like an injection attempt.
func DetectSuspicious(v model.ValuationInput) []string {
	var fields []string
	for _, f := range []struct{ name, value string }{
		{"brand", v.Brand},
		{"model", v.Model},
		{"variant", v.Variant},
	} {
		if IsSuspicious(f.value) {
			fields = append(fields, f.name)
		}
	}
	return fields
}
