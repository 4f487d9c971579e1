package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/carlead/valuation-cli/internal/model"
)

var (
	valueFile    string
	valueInput   model.ValuationInput
	valueCompact bool
)

var valueCmd = &cobra.Command{
	Use:   "value",
	Short: "Value a single vehicle",
	Example: `  valuation-cli value --brand VW --model Golf --year 2018 --mileage 100000 --fuel Benzin
  valuation-cli value --file vehicle.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		in := valueInput
		if valueFile != "" {
			loaded, err := loadVehicle(valueFile)
			if err != nil {
				return err
			}
			in = *loaded
		}
		// Reject bad input before opening the store or touching providers.
		if err := in.Validate(); err != nil {
			return err
		}

		env, err := initValuation(ctx, "value")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.Value(ctx, in)
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), res, !valueCompact)
	},
}

func init() {
	f := valueCmd.Flags()
	f.StringVar(&valueFile, "file", "", "YAML file describing the vehicle")
	f.StringVar(&valueInput.Brand, "brand", "", "vehicle brand")
	f.StringVar(&valueInput.Model, "model", "", "vehicle model")
	f.StringVar(&valueInput.Variant, "variant", "", "trim or variant")
	f.IntVar(&valueInput.Year, "year", 0, "model year")
	f.IntVar(&valueInput.Mileage, "mileage", 0, "mileage in km")
	f.StringVar(&valueInput.FuelType, "fuel", "", "fuel type")
	f.StringVar(&valueInput.Transmission, "transmission", "", "transmission (manual, automatic)")
	f.StringVar(&valueInput.Condition, "condition", "", "condition (excellent, good, fair, poor)")
	f.BoolVar(&valueCompact, "compact", false, "print single-line JSON")
	rootCmd.AddCommand(valueCmd)
}

func loadVehicle(path string) (*model.ValuationInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read vehicle file %s", path)
	}
	var in model.ValuationInput
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, eris.Wrapf(err, "parse vehicle file %s", path)
	}
	return &in, nil
}

func writeResult(w io.Writer, res any, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return eris.Wrap(enc.Encode(res), "write result")
}
