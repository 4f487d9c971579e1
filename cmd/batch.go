package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/carlead/valuation-cli/internal/model"
)

var (
	batchFile        string
	batchLimit       int
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Value every vehicle listed in a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		vehicles, err := loadVehicles(batchFile)
		if err != nil {
			return err
		}

		env, err := initValuation(ctx, "value")
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Valuation.MaxConcurrent
		}

		results, err := processBatch(ctx, vehicles, batchLimit, concurrency, env.Service.Value)
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), results, true)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "vehicles.yaml", "YAML list of vehicles")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of vehicles to value")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel valuations (default valuation.max_concurrent)")
	rootCmd.AddCommand(batchCmd)
}

// valueFunc is the callback signature for valuing one vehicle.
type valueFunc func(ctx context.Context, v model.ValuationInput) (*model.Result, error)

// batchResult pairs a vehicle with its valuation or failure.
type batchResult struct {
	Vehicle model.ValuationInput `json:"vehicle"`
	Result  *model.Result        `json:"result,omitempty"`
	Error   string               `json:"error,omitempty"`
}

func loadVehicles(path string) ([]model.ValuationInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read batch file %s", path)
	}
	var vehicles []model.ValuationInput
	if err := yaml.Unmarshal(data, &vehicles); err != nil {
		return nil, eris.Wrapf(err, "parse batch file %s", path)
	}
	return vehicles, nil
}

// processBatch applies limit, then values vehicles concurrently. Individual
// failures are recorded in the result and never abort the batch. Results
// keep input order.
func processBatch(ctx context.Context, vehicles []model.ValuationInput, limit, concurrency int, value valueFunc) ([]batchResult, error) {
	if len(vehicles) == 0 {
		zap.L().Info("no vehicles to value")
		return []batchResult{}, nil
	}

	if limit > 0 && len(vehicles) > limit {
		vehicles = vehicles[:limit]
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("vehicles", len(vehicles)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	results := make([]batchResult, len(vehicles))
	var succeeded, failed atomic.Int64

	for i, v := range vehicles {
		g.Go(func() error {
			results[i].Vehicle = v
			log := zap.L().With(zap.String("brand", v.Brand), zap.String("model", v.Model))

			res, err := value(gctx, v)
			if err != nil {
				failed.Add(1)
				results[i].Error = err.Error()
				log.Error("valuation failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			results[i].Result = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results, nil
}
