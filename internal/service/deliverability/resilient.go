package deliverability

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	"go.uber.org/zap"

	applog "github.com/janisto/hive-profiles/internal/platform/logging"
)

// ResilientConfig controls the retry and circuit breaker around a Service.
type ResilientConfig struct {
	// MaxAttempts is the total number of lookups per Check. 1 disables retry.
	MaxAttempts int
	// EnableCircuitBreaker stops calling the upstream after repeated failures.
	EnableCircuitBreaker bool
	// BreakerThreshold is the number of consecutive failures that opens the breaker.
	BreakerThreshold uint32
	// BreakerCooldown is how long the breaker stays open before probing again.
	BreakerCooldown time.Duration
	InitialDelay    time.Duration
}

// DefaultResilientConfig issues one lookup per Check behind a breaker.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxAttempts:          1,
		EnableCircuitBreaker: true,
		BreakerThreshold:     5,
		BreakerCooldown:      30 * time.Second,
		InitialDelay:         200 * time.Millisecond,
	}
}

// Resilient wraps a Service with fortify retry and circuit breaker.
type Resilient struct {
	next    Service
	breaker circuitbreaker.CircuitBreaker[Verdict]
	retrier retry.Retry[Verdict]
}

var _ Service = (*Resilient)(nil)

// NewResilient wraps next according to cfg.
func NewResilient(next Service, cfg ResilientConfig) *Resilient {
	r := &Resilient{next: next}

	if cfg.EnableCircuitBreaker {
		threshold := cfg.BreakerThreshold
		if threshold == 0 {
			threshold = 5
		}
		cooldown := cfg.BreakerCooldown
		if cooldown <= 0 {
			cooldown = 30 * time.Second
		}
		r.breaker = circuitbreaker.New[Verdict](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     cooldown,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				applog.LogWarn(context.Background(), "deliverability circuit breaker state change",
					zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
	}

	if cfg.MaxAttempts > 1 {
		delay := cfg.InitialDelay
		if delay <= 0 {
			delay = 200 * time.Millisecond
		}
		r.retrier = retry.New[Verdict](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  delay,
			MaxDelay:      5 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		})
	}
	return r
}

// Check runs the wrapped lookup. Any error is reported as CheckFailed.
func (r *Resilient) Check(ctx context.Context, email string) (Verdict, error) {
	op := func(ctx context.Context) (Verdict, error) {
		return r.next.Check(ctx, email)
	}
	if r.retrier != nil {
		inner := op
		op = func(ctx context.Context) (Verdict, error) {
			return r.retrier.Do(ctx, inner)
		}
	}

	var (
		v   Verdict
		err error
	)
	if r.breaker != nil {
		v, err = r.breaker.Execute(ctx, op)
	} else {
		v, err = op(ctx)
	}
	if err != nil {
		return CheckFailed, err
	}
	return v, nil
}

func isRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Temporary()
	}
	return false
}
