package report

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/cache"
	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/estimator"
	"github.com/Sternrassler/job-site-monitor/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	reportRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jsm_report_runs_total",
		Help: "Report runs by outcome",
	}, []string{"outcome"})

	reportLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jsm_report_last_success_timestamp_seconds",
		Help: "Unix time of the last successful report run",
	})
)

// Estimator produces a boundary estimate for one period.
type Estimator interface {
	Estimate(ctx context.Context, period client.Period) (*estimator.Result, error)
}

// scoped is implemented by estimators whose results depend on more than the
// period. The pairs are folded into the cache key.
type scoped interface {
	CacheScope() []string
}

// RunnerConfig holds runner configuration.
type RunnerConfig struct {
	// Pause is the wait between the ALL and TODAY runs when sequential
	Pause time.Duration

	// Concurrent runs both periods at once instead of sequentially
	Concurrent bool

	// CacheTTL is how long estimates are memoized
	CacheTTL time.Duration

	// Source tags the produced reports
	Source string
}

// DefaultRunnerConfig returns the default runner configuration.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Pause:    5 * time.Second,
		CacheTTL: cache.DefaultTTL,
		Source:   DefaultSource,
	}
}

// Runner estimates both periods and assembles a Report.
type Runner struct {
	est    Estimator
	cache  *cache.Manager
	config RunnerConfig
	logger zerolog.Logger
}

// NewRunner creates a runner. cacheManager may be nil to disable memoization.
func NewRunner(est Estimator, cacheManager *cache.Manager, cfg RunnerConfig) *Runner {
	if est == nil {
		panic("estimator cannot be nil")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	return &Runner{
		est:    est,
		cache:  cacheManager,
		config: cfg,
		logger: logging.NewLogger("report"),
	}
}

// Estimate returns the memoized estimate for period. The bool reports a
// cache hit.
func (r *Runner) Estimate(ctx context.Context, period client.Period) (*estimator.Result, bool, error) {
	key := r.estimateKey(period)
	return cache.Remember(ctx, r.cache, key, r.config.CacheTTL, func(ctx context.Context) (*estimator.Result, error) {
		return r.est.Estimate(ctx, period)
	})
}

func (r *Runner) estimateKey(period client.Period) cache.Key {
	kv := []string{"period", string(period)}
	if s, ok := r.est.(scoped); ok {
		kv = append(kv, s.CacheScope()...)
	}
	return cache.NewKey("estimate", kv...)
}

// Run estimates ALL then TODAY and returns the report. Either estimate
// failing fails the run.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	var all, today *estimator.Result
	var err error
	if r.config.Concurrent {
		all, today, err = r.runConcurrent(ctx)
	} else {
		all, today, err = r.runSequential(ctx)
	}
	if err != nil {
		reportRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	rep := New(all, today, r.config.Source)
	reportRunsTotal.WithLabelValues("ok").Inc()
	reportLastSuccess.SetToCurrentTime()

	r.logger.Info().
		Str("report_id", rep.ID.String()).
		Int("all_total", all.TotalCount).
		Int("today_total", today.TotalCount).
		Dur("duration", time.Since(start)).
		Msg("Report complete")

	return rep, nil
}

func (r *Runner) runSequential(ctx context.Context) (*estimator.Result, *estimator.Result, error) {
	all, err := r.estimate(ctx, client.PeriodAll)
	if err != nil {
		return nil, nil, err
	}

	if r.config.Pause > 0 {
		r.logger.Debug().Dur("pause", r.config.Pause).Msg("Pausing between periods")
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(r.config.Pause):
		}
	}

	today, err := r.estimate(ctx, client.PeriodToday)
	if err != nil {
		return nil, nil, err
	}
	return all, today, nil
}

func (r *Runner) runConcurrent(ctx context.Context) (*estimator.Result, *estimator.Result, error) {
	var all, today *estimator.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = r.estimate(gctx, client.PeriodAll)
		return err
	})
	g.Go(func() error {
		var err error
		today, err = r.estimate(gctx, client.PeriodToday)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return all, today, nil
}

func (r *Runner) estimate(ctx context.Context, period client.Period) (*estimator.Result, error) {
	res, hit, err := r.Estimate(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("estimate %s: %w", period, err)
	}
	r.logger.Info().
		Str("period", string(period)).
		Bool("cache_hit", hit).
		Int("total", res.TotalCount).
		Msg("Period estimated")
	return res, nil
}
