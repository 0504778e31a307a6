package adminapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

type ReliabilityOptions struct {
	RateLimit  float64
	RateBurst  int
	RetryCount uint

	CBMaxRequests      uint32
	CBInterval         time.Duration
	CBTimeout          time.Duration
	CBFailureThreshold uint32

	// OnStateChange вызывается при смене состояния предохранителя (0 closed, 1 half-open, 2 open).
	OnStateChange func(name string, state float64)
}

// ReliabilityWrapper: лимитер, предохранитель и ретраи вокруг одного запроса к админ-API.
type ReliabilityWrapper struct {
	cb         *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	retryCount uint
}

func NewReliabilityWrapper(name string, opts ReliabilityOptions) *ReliabilityWrapper {
	threshold := opts.CBFailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: opts.CBMaxRequests,
		Interval:    opts.CBInterval,
		Timeout:     opts.CBTimeout, // через сколько CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return !isBreakerFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if opts.OnStateChange != nil {
				opts.OnStateChange(name, breakerStateValue(to))
			}
		},
	})

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &ReliabilityWrapper{
		cb:         cb,
		limiter:    rate.NewLimiter(limit, burst),
		retryCount: opts.RetryCount,
	}
}

// Call выполняет fn. idempotent разрешает ретраи; записи выполняются ровно один раз.
func (w *ReliabilityWrapper) Call(ctx context.Context, idempotent bool, fn func(ctx context.Context) error) error {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	// 2. Circuit Breaker
	_, err := w.cb.Execute(func() (interface{}, error) {
		if !idempotent || w.retryCount <= 1 {
			return nil, fn(ctx)
		}

		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.retryCount),
			retry.LastErrorOnly(true),
			retry.RetryIf(isRetryable),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				return retry.BackOffDelay(n, err, config)
			}),
		)
		return nil, r.Do(func() error { return fn(ctx) })
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

func (w *ReliabilityWrapper) State() gobreaker.State {
	return w.cb.State()
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
