package indexer

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-indexer/internal/domain"
)

// flakySource fails a fixed number of times before succeeding.
type flakySource struct {
	failures int
	calls    int
	page     []domain.FeeRecord
}

func (s *flakySource) FetchPage(ctx context.Context, referrer string, blockFloor uint64, skip, pageSize int) ([]domain.FeeRecord, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("connection reset")
	}
	return s.page, nil
}

// countingLimiter records how many times the rate gate was acquired.
type countingLimiter struct {
	waits int
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits++
	return ctx.Err()
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestRetrier_SucceedsFirstAttempt(t *testing.T) {
	source := &flakySource{page: page("a")}
	limiter := &countingLimiter{}

	r := NewRetrier(RetrierOptions{
		Source:  source,
		Limiter: limiter,
		Delay:   time.Millisecond,
		Logger:  quietLogger(),
	})

	got, err := r.FetchPage(context.Background(), "r", 0, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got))
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 1, limiter.waits, "every attempt goes through the limiter")
}

func TestRetrier_RecoversAfterTransientFailures(t *testing.T) {
	source := &flakySource{failures: 3, page: page("a", "b")}
	limiter := &countingLimiter{}

	r := NewRetrier(RetrierOptions{
		Source:      source,
		Limiter:     limiter,
		MaxAttempts: 5,
		Delay:       time.Millisecond,
		Logger:      quietLogger(),
	})

	got, err := r.FetchPage(context.Background(), "r", 0, 0, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 4, source.calls)
	assert.Equal(t, 4, limiter.waits)
}

func TestRetrier_ExhaustionReturnsTypedError(t *testing.T) {
	source := &flakySource{failures: 100}

	r := NewRetrier(RetrierOptions{
		Source:      source,
		Limiter:     &countingLimiter{},
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		Logger:      quietLogger(),
	})

	_, err := r.FetchPage(context.Background(), "r", 0, 0, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 3, source.calls)
}

func TestRetrier_ContextCancellationNotRetried(t *testing.T) {
	source := &flakySource{failures: 100}

	r := NewRetrier(RetrierOptions{
		Source:      source,
		Limiter:     &countingLimiter{},
		MaxAttempts: 10,
		Delay:       50 * time.Millisecond,
		Logger:      quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.FetchPage(ctx, "r", 0, 0, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
}

func TestRetrier_DefaultsApplied(t *testing.T) {
	r := NewRetrier(RetrierOptions{Source: &flakySource{}})
	assert.Equal(t, DefaultMaxAttempts, r.maxAttempts)
	assert.Equal(t, DefaultRetryDelay, r.delay)
	assert.NotNil(t, r.logger)
}
