package valuation

import (
	"context"

	"github.com/carlead/valuation-cli/internal/queue"
	"github.com/carlead/valuation-cli/internal/resilience"
)

// Upstream is the call policy shared by every provider call: each attempt
// queues for a limiter slot, and transient failures are retried with
// backoff.
type Upstream struct {
	Limiter *queue.Limiter
	Retry   resilience.RetryConfig
}

// NewUpstream creates an Upstream with the given limiter and retry policy.
func NewUpstream(l *queue.Limiter, retry resilience.RetryConfig) *Upstream {
	if l == nil {
		l = queue.New(queue.DefaultMaxConcurrent)
	}
	return &Upstream{Limiter: l, Retry: retry}
}

// call runs fn under the limiter and retry policy. A retry releases the
// slot and queues again.
func call[T any](ctx context.Context, u *Upstream, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := u.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("valuation", op)
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (T, error) {
		return queue.Do(ctx, u.Limiter, fn)
	})
}
