package main

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carlead/valuation-cli/internal/cache"
	"github.com/carlead/valuation-cli/internal/config"
	"github.com/carlead/valuation-cli/internal/cost"
	"github.com/carlead/valuation-cli/internal/queue"
	"github.com/carlead/valuation-cli/internal/resilience"
	"github.com/carlead/valuation-cli/internal/store"
	"github.com/carlead/valuation-cli/internal/valuation"
	anthropicpkg "github.com/carlead/valuation-cli/pkg/anthropic"
	"github.com/carlead/valuation-cli/pkg/jina"
	"github.com/carlead/valuation-cli/pkg/perplexity"
)

// valuationEnv holds the store and the wired valuation service used by the
// value, batch and serve commands.
type valuationEnv struct {
	Store   store.Store
	Cache   *cache.Cache
	Service *valuation.Service
}

// Close releases resources held by the environment.
func (ve *valuationEnv) Close() {
	if ve.Store != nil {
		_ = ve.Store.Close()
	}
}

func initStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	switch c.Driver {
	case "sqlite":
		dsn := c.DatabaseURL
		if dsn == "" {
			dsn = "valuation.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.DatabaseURL, &store.PoolConfig{
			MaxConns: c.MaxConns,
			MinConns: c.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func retryConfig(c config.RetryConfig) resilience.RetryConfig {
	return resilience.FromRetryConfig(c.MaxAttempts, c.InitialBackoffMs, c.MaxBackoffMs, c.Multiplier, c.JitterFraction)
}

func cacheTTL(hours int) time.Duration {
	if hours <= 0 {
		return cache.DefaultTTL
	}
	return time.Duration(hours) * time.Hour
}

// buildStrategies returns the strategy chain: Perplexity first, then the
// Jina + Claude snippet pass when both keys are configured.
func buildStrategies(c *config.Config, up *valuation.Upstream, costs *cost.Calculator) []valuation.Strategy {
	pplx := perplexity.NewClient(c.Perplexity.Key,
		perplexity.WithBaseURL(c.Perplexity.BaseURL),
		perplexity.WithModel(c.Perplexity.Model),
	)
	strategies := []valuation.Strategy{
		valuation.NewPerplexityStrategy(pplx, up, costs, c.Perplexity.MaxTokens),
	}

	if c.Jina.Key == "" || c.Anthropic.Key == "" {
		zap.L().Debug("VALUATION_JINA_KEY or VALUATION_ANTHROPIC_KEY not set, snippet fallback disabled")
		return strategies
	}

	var jinaOpts []jina.Option
	if c.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(c.Jina.SearchBaseURL))
	}
	// Retries are owned by the upstream policy, not the SDK.
	llm := anthropicpkg.NewClient(c.Anthropic.Key, option.WithMaxRetries(0))
	strategies = append(strategies, valuation.NewSnippetStrategy(
		jina.NewClient(c.Jina.Key, jinaOpts...), llm, up, costs, c.Anthropic.Model, c.Anthropic.MaxTokens,
	))
	zap.L().Info("snippet fallback enabled", zap.String("model", c.Anthropic.Model))
	return strategies
}

// newService wires the valuation service on top of an open store.
func newService(c *config.Config, st store.Store) (*valuation.Service, *cache.Cache) {
	vc := cache.New(st, cache.WithTTL(cacheTTL(c.Valuation.CacheTTLHours)))
	up := valuation.NewUpstream(queue.New(c.Valuation.MaxConcurrent), retryConfig(c.Valuation.Retry))
	costs := cost.NewCalculator(c.Pricing)

	svc := valuation.NewService(vc, up, buildStrategies(c, up, costs), valuation.Config{
		PurchaseMargin:  c.Valuation.PurchaseMargin,
		PreviewListings: c.Valuation.PreviewListings,
		Marketplaces:    c.Valuation.Marketplaces,
	})
	return svc, vc
}

// initValuation validates config for mode, opens the store and builds the
// service. Callers should defer env.Close().
func initValuation(ctx context.Context, mode string) (*valuationEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	svc, vc := newService(cfg, st)
	zap.L().Info("valuation service ready",
		zap.String("store", cfg.Store.Driver),
		zap.Int("max_concurrent", cfg.Valuation.MaxConcurrent),
		zap.Duration("cache_ttl", vc.TTL()),
	)

	return &valuationEnv{Store: st, Cache: vc, Service: svc}, nil
}
