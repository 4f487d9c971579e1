package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carlead/valuation-cli/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the valuation cache",
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete cache entries older than the TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := cache.New(st, cache.WithTTL(cacheTTL(cfg.Valuation.CacheTTLHours))).CleanExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired entries\n", n)
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts and age range",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := cache.New(st).Stats(ctx)
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), stats, true)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the cache schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s store migrated\n", cfg.Store.Driver)
		return st.Close()
	},
}

func init() {
	cacheCmd.AddCommand(cacheCleanCmd, cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd, migrateCmd)
}
