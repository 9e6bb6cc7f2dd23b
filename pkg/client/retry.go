package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	searchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jsm_search_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	searchRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jsm_search_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	searchRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jsm_search_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// Fetcher fetches one page of search results.
type Fetcher interface {
	FetchPage(ctx context.Context, q Query) (*PageResult, error)
}

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigForErrorClass returns the appropriate retry configuration for an error class.
func RetryConfigForErrorClass(errorClass ErrorClass) RetryConfig {
	switch errorClass {
	case ErrorClassServer:
		// 5xx server errors - shorter backoff
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
		}
	case ErrorClassRateLimit:
		// 429 - longer backoff
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    5 * time.Second,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 2.0,
		}
	case ErrorClassNetwork:
		// Network errors - medium backoff
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
		}
	default:
		return DefaultRetryConfig()
	}
}

// Retrier wraps a Fetcher and retries failed fetches whose error class is
// retriable.
type Retrier struct {
	next     Fetcher
	override *RetryConfig
	logger   zerolog.Logger
}

// NewRetrier wraps next. A non-nil config replaces the per-class
// configurations for every class.
func NewRetrier(next Fetcher, config *RetryConfig) *Retrier {
	return &Retrier{
		next:     next,
		override: config,
		logger:   logging.NewLogger("retrier"),
	}
}

// FetchPage implements Fetcher.
func (r *Retrier) FetchPage(ctx context.Context, q Query) (*PageResult, error) {
	var result *PageResult
	err := r.retryWithBackoff(ctx, func() (ErrorClass, error) {
		res, err := r.next.FetchPage(ctx, q)
		if err != nil {
			return ClassOf(err), err
		}
		result = res
		return "", nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Retrier) configFor(class ErrorClass) RetryConfig {
	if r.override != nil {
		return *r.override
	}
	return RetryConfigForErrorClass(class)
}

// retryWithBackoff executes fn with exponential backoff retry logic.
// The error class is re-evaluated after every attempt. It respects context
// cancellation and adds jitter to prevent thundering herd.
func (r *Retrier) retryWithBackoff(ctx context.Context, fn func() (ErrorClass, error)) error {
	var backoff time.Duration

	for attempt := 1; ; attempt++ {
		errorClass, err := fn()
		if err == nil {
			if attempt > 1 {
				r.logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		// Don't retry client or decode errors
		if !shouldRetry(errorClass) {
			return err
		}

		config := r.configFor(errorClass)
		if attempt >= config.MaxAttempts {
			searchRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
			r.logger.Warn().
				Str("error_class", string(errorClass)).
				Int("max_attempts", config.MaxAttempts).
				Msg("Retry attempts exhausted")
			return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, err)
		}

		if backoff == 0 {
			backoff = config.InitialBackoff
		}

		searchRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		// Add jitter (±20% randomness)
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		searchRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(jitter.Seconds())

		r.logger.Debug().
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}

		// Calculate next backoff (exponential)
		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}
}
