package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	base := ValuationInput{Brand: "VW", Model: "Golf", Year: 2018, Mileage: 100000}

	tests := []struct {
		name   string
		mutate func(*ValuationInput)
		field  string
	}{
		{"valid", func(*ValuationInput) {}, ""},
		{"zero mileage", func(v *ValuationInput) { v.Mileage = 0 }, ""},
		{"next model year", func(v *ValuationInput) { v.Year = time.Now().Year() + 1 }, ""},
		{"oldest year", func(v *ValuationInput) { v.Year = MinVehicleYear }, ""},
		{"blank brand", func(v *ValuationInput) { v.Brand = " " }, "brand"},
		{"blank model", func(v *ValuationInput) { v.Model = "" }, "model"},
		{"year too old", func(v *ValuationInput) { v.Year = MinVehicleYear - 1 }, "year"},
		{"year too new", func(v *ValuationInput) { v.Year = time.Now().Year() + 2 }, "year"},
		{"negative mileage", func(v *ValuationInput) { v.Mileage = -1 }, "mileage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base
			tt.mutate(&v)
			err := v.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ie *InputError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.field, ie.Field)
			assert.Contains(t, err.Error(), "invalid valuation input: "+tt.field)
		})
	}
}

func TestMaxVehicleYear(t *testing.T) {
	assert.Equal(t, time.Now().Year()+1, MaxVehicleYear())
}
