package estimator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/listing"
	"github.com/Sternrassler/job-site-monitor/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for estimation runs.
var (
	estimateRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jsm_estimate_runs_total",
		Help: "Total estimation runs by period and outcome",
	}, []string{"period", "outcome"})

	estimateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jsm_estimate_duration_seconds",
		Help:    "Estimation run duration in seconds by period",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"period"})

	estimateProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jsm_estimate_probes_total",
		Help: "Page probes issued by phase",
	}, []string{"phase"})

	estimateProbeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jsm_estimate_probe_failures_total",
		Help: "Failed page probes by phase",
	}, []string{"phase"})

	estimateNativeClampedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jsm_estimate_native_clamped_total",
		Help: "Runs where partner counts exceeded the total count",
	})

	estimateCounts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jsm_estimate_listings",
		Help: "Listing count of the last estimation run by period and source",
	}, []string{"period", "source"})
)

// ErrNoResult is returned when the total count cannot be learned from page 1.
var ErrNoResult = errors.New("no result")

// PageFetcher fetches one page of search results.
type PageFetcher interface {
	FetchPage(ctx context.Context, q client.Query) (*client.PageResult, error)
}

// Config holds estimator configuration.
type Config struct {
	// PageSize is the number of listings per page (default 200).
	PageSize int

	// ProbeDelay is slept between probes.
	ProbeDelay time.Duration

	// Query is the template for every probe. Page, PageSize and Period are
	// overwritten per request.
	Query client.Query
}

// DefaultConfig returns the default estimator configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:   client.DefaultPageSize,
		ProbeDelay: 2 * time.Millisecond,
	}
}

// Estimator runs boundary searches. It holds no per-run state and is safe
// for concurrent use.
type Estimator struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// New creates an estimator over fetcher.
func New(fetcher PageFetcher, cfg Config) (*Estimator, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = client.DefaultPageSize
	}
	if cfg.PageSize < 0 {
		return nil, fmt.Errorf("page size must be > 0 (got %d)", cfg.PageSize)
	}
	if cfg.ProbeDelay < 0 {
		return nil, fmt.Errorf("probe delay must be >= 0 (got %s)", cfg.ProbeDelay)
	}

	return &Estimator{
		fetcher: fetcher,
		config:  cfg,
		logger:  logging.NewLogger("estimator"),
	}, nil
}

// CacheScope returns the key/value pairs besides the period that shape a
// result: the page size and, when set, the region of the query template.
func (e *Estimator) CacheScope() []string {
	scope := []string{"size", strconv.Itoa(e.config.PageSize)}
	if e.config.Query.Region != "" {
		scope = append(scope, "region", e.config.Query.Region)
	}
	return scope
}

// run carries the bookkeeping of one Estimate call.
type run struct {
	period   client.Period
	requests int
	failed   int
	logger   zerolog.Logger
}

// Estimate counts listings per source for period.
func (e *Estimator) Estimate(ctx context.Context, period client.Period) (*Result, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("%w: unknown period %q", client.ErrInvalidQuery, period)
	}

	start := time.Now()
	r := &run{
		period: period,
		logger: e.logger.With().Str("period", string(period)).Logger(),
	}
	defer func() {
		estimateDuration.WithLabelValues(string(period)).Observe(time.Since(start).Seconds())
	}()

	// INIT
	first, err := e.probe(ctx, r, PhaseInit, 1)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		estimateRunsTotal.WithLabelValues(string(period), "no_result").Inc()
		return nil, fmt.Errorf("%w: first page: %w", ErrNoResult, err)
	}
	if !first.HasTotal {
		estimateRunsTotal.WithLabelValues(string(period), "no_result").Inc()
		return nil, fmt.Errorf("%w: first page carries no total count", ErrNoResult)
	}

	result := &Result{
		Period:        period,
		TotalCount:    max(first.TotalCount, 0),
		PageSize:      e.config.PageSize,
		PerPageCounts: make(map[listing.Source]map[int]int),
	}

	if result.TotalCount > 0 {
		maxPage := (result.TotalCount + e.config.PageSize - 1) / e.config.PageSize
		result.MaxPage = maxPage

		r.logger.Info().
			Int("total", result.TotalCount).
			Int("max_page", maxPage).
			Msg("Starting boundary search")

		result.PartnerBRange = e.locate(ctx, r, listing.SourcePartnerB, maxPage, PhaseLocateBEnd, PhaseLocateBStart)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		searchStart := maxPage
		if result.PartnerBRange != nil {
			searchStart = result.PartnerBRange.StartPage - 1
		}
		if searchStart > 0 {
			result.PartnerARange = e.locate(ctx, r, listing.SourcePartnerA, searchStart, PhaseLocateAEnd, PhaseLocateAStart)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		e.aggregate(r, result)
	}

	result.RequestCount = r.requests
	result.FailedProbes = r.failed
	result.ElapsedSeconds = time.Since(start).Seconds()
	result.GeneratedAt = time.Now().UTC()

	estimateRunsTotal.WithLabelValues(string(period), "ok").Inc()
	for _, src := range listing.Sources {
		estimateCounts.WithLabelValues(string(period), string(src)).Set(float64(result.Count(src)))
	}

	r.logger.Info().
		Str("phase", string(PhaseDone)).
		Int("total", result.TotalCount).
		Int("native", result.NativeCount).
		Int("partner_a", result.PartnerACount).
		Int("partner_b", result.PartnerBCount).
		Int("requests", result.RequestCount).
		Int("failed_probes", result.FailedProbes).
		Float64("elapsed_s", result.ElapsedSeconds).
		Msg("Boundary search complete")

	return result, nil
}

// locate finds the page run of src ending at endPage. It returns nil when
// endPage holds no listing of src or cannot be fetched.
func (e *Estimator) locate(ctx context.Context, r *run, src listing.Source, endPage int, endPhase, startPhase Phase) *Range {
	res, err := e.probe(ctx, r, endPhase, endPage)
	if err != nil {
		return nil
	}
	n := listing.CountSource(res.Listings, src)
	if n == 0 {
		r.logger.Debug().Str("source", string(src)).Int("page", endPage).Msg("No listings on end page, range empty")
		return nil
	}

	rng := &Range{Source: src, StartPage: endPage, EndPage: endPage, EndCount: n}

	for page := endPage - 1; page >= 1; page-- {
		res, err := e.probe(ctx, r, startPhase, page)
		if err != nil {
			if ctx.Err() != nil {
				return rng
			}
			continue
		}
		if len(res.Listings) == 0 {
			continue
		}

		n := listing.CountSource(res.Listings, src)
		if n == 0 {
			// contiguity: nothing of src below this page
			break
		}
		rng.StartPage = page
		rng.StartCount = n
	}

	r.logger.Debug().
		Str("source", string(src)).
		Int("start", rng.StartPage).
		Int("end", rng.EndPage).
		Msg("Range located")

	return rng
}

func (e *Estimator) aggregate(r *run, result *Result) {
	if rng := result.PartnerBRange; rng != nil {
		result.PartnerBCount = rng.Count(e.config.PageSize)
		result.PerPageCounts[listing.SourcePartnerB] = rng.PerPage(e.config.PageSize)
	}
	if rng := result.PartnerARange; rng != nil {
		result.PartnerACount = rng.Count(e.config.PageSize)
		result.PerPageCounts[listing.SourcePartnerA] = rng.PerPage(e.config.PageSize)
	}

	native := result.TotalCount - result.PartnerACount - result.PartnerBCount
	if native < 0 {
		estimateNativeClampedTotal.Inc()
		r.logger.Warn().
			Str("phase", string(PhaseAggregate)).
			Int("total", result.TotalCount).
			Int("partner_a", result.PartnerACount).
			Int("partner_b", result.PartnerBCount).
			Msg("Partner counts exceed total, clamping native count")
		native = 0
		result.NativeClamped = true
	}
	result.NativeCount = native
}

// probe fetches one page, sleeping ProbeDelay before every probe but the first.
func (e *Estimator) probe(ctx context.Context, r *run, phase Phase, page int) (*client.PageResult, error) {
	if r.requests > 0 && e.config.ProbeDelay > 0 {
		timer := time.NewTimer(e.config.ProbeDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	q := e.config.Query
	q.Page = page
	q.PageSize = e.config.PageSize
	q.Period = r.period

	r.requests++
	estimateProbesTotal.WithLabelValues(string(phase)).Inc()

	res, err := e.fetcher.FetchPage(ctx, q)
	if err != nil {
		r.failed++
		estimateProbeFailuresTotal.WithLabelValues(string(phase)).Inc()
		r.logger.Warn().
			Err(err).
			Str("phase", string(phase)).
			Int("page", page).
			Msg("Probe failed")
		return nil, err
	}
	return res, nil
}
