package model

import (
	"strings"
	"time"
)

// MinVehicleYear is the oldest model year the service will value.
const MinVehicleYear = 1990

// MaxListingYear is the newest model year read from free listing text.
// Request input is bounded by MaxVehicleYear instead.
const MaxListingYear = 2025

// ValuationInput describes the vehicle a seller submitted. It is built once per
// request and treated as immutable afterwards.
type ValuationInput struct {
	Brand    string `json:"brand" yaml:"brand"`
	Model    string `json:"model" yaml:"model"`
	Variant  string `json:"variant,omitempty" yaml:"variant"`
	Year     int    `json:"year" yaml:"year"`
	Mileage  int    `json:"mileage" yaml:"mileage"`
	FuelType string `json:"fuel_type" yaml:"fuel_type"`

	Condition      string   `json:"condition,omitempty" yaml:"condition"`
	PowerHP        *int     `json:"power_hp,omitempty" yaml:"power_hp"`
	Transmission   string   `json:"transmission,omitempty" yaml:"transmission"`
	BodyType       string   `json:"body_type,omitempty" yaml:"body_type"`
	DriveType      string   `json:"drive_type,omitempty" yaml:"drive_type"`
	InspectionDate string   `json:"inspection_date,omitempty" yaml:"inspection_date"` // last MFK, YYYY-MM
	Owners         *int     `json:"owners,omitempty" yaml:"owners"`
	AccidentFree   *bool    `json:"accident_free,omitempty" yaml:"accident_free"`
	ServiceHistory *bool    `json:"service_history,omitempty" yaml:"service_history"`
	Color          string   `json:"color,omitempty" yaml:"color"`
	Equipment      []string `json:"equipment,omitempty" yaml:"equipment"`
}

// InputError reports a ValuationInput that cannot be valued at all.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return "invalid valuation input: " + e.Field + " " + e.Reason
}

// MaxVehicleYear is the newest model year accepted (next year's models are
// already sold in autumn).
func MaxVehicleYear() int {
	return time.Now().Year() + 1
}

// Validate checks the identifying attributes. Optional refinements are not
// validated here; the prompt builder drops invalid ones instead.
func (v ValuationInput) Validate() error {
	if strings.TrimSpace(v.Brand) == "" {
		return &InputError{Field: "brand", Reason: "is required"}
	}
	if strings.TrimSpace(v.Model) == "" {
		return &InputError{Field: "model", Reason: "is required"}
	}
	if v.Year < MinVehicleYear || v.Year > MaxVehicleYear() {
		return &InputError{Field: "year", Reason: "is out of range"}
	}
	if v.Mileage < 0 {
		return &InputError{Field: "mileage", Reason: "must not be negative"}
	}
	return nil
}
