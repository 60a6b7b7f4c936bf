package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"referral-indexer/internal/domain"
	"referral-indexer/internal/observability"
)

// Default retry behavior for transient fetch failures.
const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 2 * time.Second
)

// ErrRetriesExhausted is returned by Retrier.FetchPage when every attempt
// failed. The chain indexer treats it as end-of-data for the round but
// marks the run truncated, since a sustained upstream failure is
// indistinguishable from a genuinely empty tail.
var ErrRetriesExhausted = errors.New("page fetch retries exhausted")

// Retrier wraps a PageSource with bounded fixed-delay retry. Every attempt,
// including the first, passes through the shared rate limiter; this is the
// single acquire point for outbound requests.
type Retrier struct {
	source      PageSource
	limiter     Limiter
	maxAttempts int
	delay       time.Duration
	logger      *log.Logger
	metrics     *observability.Metrics
}

// RetrierOptions configures a Retrier.
type RetrierOptions struct {
	Source      PageSource
	Limiter     Limiter
	MaxAttempts int
	Delay       time.Duration
	Logger      *log.Logger
	Metrics     *observability.Metrics
}

// NewRetrier creates a retrying decorator around opts.Source.
func NewRetrier(opts RetrierOptions) *Retrier {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Retrier{
		source:      opts.Source,
		limiter:     opts.Limiter,
		maxAttempts: maxAttempts,
		delay:       delay,
		logger:      logger,
		metrics:     opts.Metrics,
	}
}

// Compile-time interface check.
var _ PageSource = (*Retrier)(nil)

// FetchPage fetches one page, retrying transient failures after a fixed
// delay. On exhaustion it returns ErrRetriesExhausted wrapping the last
// failure. Context cancellation is returned as-is and is not retried.
func (r *Retrier) FetchPage(ctx context.Context, referrer string, blockFloor uint64, skip, pageSize int) ([]domain.FeeRecord, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.delay):
			}
			if r.metrics != nil {
				r.metrics.FetchRetries.Inc()
			}
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		page, err := r.source.FetchPage(ctx, referrer, blockFloor, skip, pageSize)
		if r.metrics != nil {
			r.metrics.FetchLatency.Observe(time.Since(start).Seconds())
		}
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		r.logger.Printf("Fetch page failed (attempt %d/%d, referrer=%s block>=%d skip=%d): %v",
			attempt, r.maxAttempts, referrer, blockFloor, skip, err)
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, r.maxAttempts, lastErr)
}
