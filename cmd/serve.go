package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carlead/valuation-cli/internal/model"
	"github.com/carlead/valuation-cli/internal/queue"
	"github.com/carlead/valuation-cli/internal/ratelimit"
)

var servePort int

// valuationAPI is the part of the valuation service the HTTP API needs.
type valuationAPI interface {
	Value(ctx context.Context, v model.ValuationInput) (*model.Result, error)
	QueueStats() queue.Stats
	CacheStats(ctx context.Context) (*model.CacheStats, error)
	CleanExpiredCache(ctx context.Context) (int, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the valuation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initValuation(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		limiter := ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
		sweep := time.Duration(cfg.Server.SweepIntervalMin) * time.Minute
		go runSweeper(ctx, sweep, env.Service, limiter)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Service, limiter, cfg.Server.CORSOrigins, cfg.Server.TrustProxy),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the HTTP API. The rate limiter guards the valuation
// routes only; health checks are never throttled. Forwarding headers are
// honoured only with trustProxy, otherwise clients are keyed by peer address.
func newRouter(svc valuationAPI, limiter *ratelimit.KeyLimiter, origins []string, trustProxy bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
		r.Post("/valuations", handleValue(svc))
		r.Get("/queue/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.QueueStats())
		})
		r.Get("/cache/stats", func(w http.ResponseWriter, r *http.Request) {
			stats, err := svc.CacheStats(r.Context())
			if err != nil {
				zap.L().Error("cache stats failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "cache stats unavailable")
				return
			}
			writeJSON(w, http.StatusOK, stats)
		})
		r.Post("/cache/clean", func(w http.ResponseWriter, r *http.Request) {
			n, err := svc.CleanExpiredCache(r.Context())
			if err != nil {
				zap.L().Error("cache clean failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "cache clean failed")
				return
			}
			writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
		})
	})

	return r
}

func handleValue(svc valuationAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.ValuationInput
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
		if err := dec.Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		res, err := svc.Value(r.Context(), in)
		if err != nil {
			var ie *model.InputError
			if errors.As(err, &ie) {
				writeError(w, http.StatusBadRequest, ie.Error())
				return
			}
			zap.L().Error("valuation failed",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Error(err),
			)
			writeError(w, http.StatusBadGateway, "valuation provider failed")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// runSweeper removes expired cache rows and idle rate-limit buckets every
// interval until ctx is done.
func runSweeper(ctx context.Context, interval time.Duration, svc valuationAPI, limiter *ratelimit.KeyLimiter) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.CleanExpiredCache(ctx); err != nil {
				zap.L().Warn("periodic cache clean failed", zap.Error(err))
			}
			if limiter != nil {
				if n := limiter.Sweep(interval); n > 0 {
					zap.L().Debug("rate limit buckets swept", zap.Int("removed", n))
				}
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
