package valuation

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carlead/valuation-cli/internal/cache"
	"github.com/carlead/valuation-cli/internal/model"
	"github.com/carlead/valuation-cli/internal/prompt"
	"github.com/carlead/valuation-cli/internal/queue"
)

// Config holds the valuation tunables.
type Config struct {
	PurchaseMargin  float64
	PreviewListings int
	Marketplaces    []string
}

// Service values vehicles. It is safe for concurrent use.
type Service struct {
	cache      *cache.Cache
	upstream   *Upstream
	strategies []Strategy
	cfg        Config
	now        func() time.Time
}

// NewService creates a Service. c may be nil to disable caching.
// Strategies are tried in order.
func NewService(c *cache.Cache, up *Upstream, strategies []Strategy, cfg Config) *Service {
	return &Service{
		cache:      c,
		upstream:   up,
		strategies: strategies,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Value returns the valuation for v. It fails only on invalid input, a
// malformed provider response, a non-success provider status or a network
// error that survived the retry policy. Finding no comparable listings is a
// normal result with confidence "none".
func (s *Service) Value(ctx context.Context, v model.ValuationInput) (*model.Result, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("brand", v.Brand),
		zap.String("model", v.Model),
		zap.Int("year", v.Year),
		zap.Int("mileage", v.Mileage),
	)

	if s.cache != nil {
		if res := s.cache.Get(ctx, v); res != nil {
			log.Info("valuation: served from cache", zap.Intp("market_value", res.MarketValue))
			return res, nil
		}
	}

	if fields := prompt.DetectSuspicious(v); len(fields) > 0 {
		log.Warn("valuation: suspicious input, continuing with sanitized text", zap.Strings("fields", fields))
	}

	q := prompt.Build(v, prompt.Options{Marketplaces: s.cfg.Marketplaces, Now: s.now()})

	var payload *Payload
	for _, st := range s.strategies {
		p, err := st.Search(ctx, v, q)
		if err != nil {
			return nil, eris.Wrapf(err, "valuation: %s strategy", st.Name())
		}
		payload = p
		if p.HasListings() {
			log.Debug("valuation: strategy returned listings",
				zap.String("strategy", st.Name()),
				zap.Int("raw_listings", len(p.Listings)),
			)
			break
		}
		log.Info("valuation: strategy returned no listings", zap.String("strategy", st.Name()))
	}
	if payload == nil {
		payload = &Payload{SearchType: model.SearchTypeNone}
	}

	res := Evaluate(payload, q, ParseOptions{
		PurchaseMargin:  s.cfg.PurchaseMargin,
		PreviewListings: s.cfg.PreviewListings,
	})

	if res.HasValue() && s.cache != nil {
		s.cache.Set(ctx, v, res)
	}

	log.Info("valuation: complete",
		zap.Intp("market_value", res.MarketValue),
		zap.Int("listings", res.ListingsCount),
		zap.String("confidence", string(res.Confidence)),
		zap.String("search_type", string(res.SearchType)),
	)
	return res, nil
}

// CleanExpiredCache deletes expired cache entries and returns the count.
func (s *Service) CleanExpiredCache(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.CleanExpired(ctx)
}

// CacheStats summarizes the valuation cache.
func (s *Service) CacheStats(ctx context.Context) (*model.CacheStats, error) {
	if s.cache == nil {
		return &model.CacheStats{}, nil
	}
	return s.cache.Stats(ctx)
}

// QueueStats returns a snapshot of the upstream limiter.
func (s *Service) QueueStats() queue.Stats {
	return s.upstream.Limiter.Stats()
}
