package sampling

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/cache"
	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/listing"
	"github.com/Sternrassler/job-site-monitor/pkg/logging"
	"github.com/Sternrassler/job-site-monitor/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	samplingRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jsm_sampling_runs_total",
		Help: "Sampling runs by kind and outcome",
	}, []string{"kind", "outcome"})

	samplingFailedPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jsm_sampling_failed_pages_total",
		Help: "Pages skipped during sampling because the fetch failed",
	}, []string{"kind"})
)

var (
	// ErrUnknownRegion is returned for a region code not in Regions.
	ErrUnknownRegion = errors.New("unknown region")

	// ErrNoTotal is returned when the first page carries no total count.
	ErrNoTotal = errors.New("total count missing from first page")

	// ErrInvalidRange is returned for a page range or sample size outside the
	// configured caps.
	ErrInvalidRange = errors.New("invalid page range")
)

// Config holds sampling configuration.
type Config struct {
	// PageSize is the number of listings requested per page
	PageSize int

	// MaxPages is the default sample size in pages
	MaxPages int

	// MaxSamplePages caps the sample size a caller may ask Analyze for
	MaxSamplePages int

	// SampleSize is how many listings Analyze keeps for display
	SampleSize int

	// PageSamples is how many listings PageBreakdown keeps per page
	PageSamples int

	// MaxBreakdownPages caps the width of a PageBreakdown range
	MaxBreakdownPages int

	// CacheTTL is how long regional results are memoized
	CacheTTL time.Duration

	// Batch configures the parallel page fetcher
	Batch pagination.Config
}

// DefaultConfig returns the default sampling configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:          client.DefaultPageSize,
		MaxPages:          3,
		MaxSamplePages:    20,
		SampleSize:        10,
		PageSamples:       3,
		MaxBreakdownPages: 50,
		CacheTTL:          cache.DefaultTTL,
		Batch:             pagination.DefaultConfig(),
	}
}

// RegionalResult is the source breakdown of one region.
//
// Counts holds the extrapolated numbers; SampleCounts the raw sample tally.
type RegionalResult struct {
	RegionCode     string        `json:"region_code"`
	RegionName     string        `json:"region_name"`
	Period         client.Period `json:"period"`
	TotalCount     int           `json:"total_count"`
	AnalyzedCount  int           `json:"analyzed_count"`
	PagesAnalyzed  int           `json:"pages_analyzed"`
	FailedPages    []int         `json:"failed_pages,omitempty"`
	Extrapolated   bool          `json:"extrapolated"`
	Counts         listing.Tally `json:"counts"`
	SampleCounts   listing.Tally `json:"sample_counts"`
	Samples        []Sample      `json:"samples"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	GeneratedAt    time.Time     `json:"generated_at"`
	Cached         bool          `json:"cached"`
}

// RegionalAnalyzer samples AREA queries and extrapolates source shares.
type RegionalAnalyzer struct {
	batch  *pagination.BatchFetcher
	cache  *cache.Manager
	config Config
	logger zerolog.Logger
}

// NewRegionalAnalyzer creates an analyzer. cacheManager may be nil to disable
// memoization.
func NewRegionalAnalyzer(fetcher pagination.PageFetcher, cacheManager *cache.Manager, cfg Config) (*RegionalAnalyzer, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	def := DefaultConfig()
	if cfg.PageSize < 0 || cfg.MaxPages < 0 || cfg.SampleSize < 0 || cfg.PageSamples < 0 {
		return nil, fmt.Errorf("sampling sizes must be >= 0")
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.SampleSize == 0 {
		cfg.SampleSize = def.SampleSize
	}
	if cfg.PageSamples == 0 {
		cfg.PageSamples = def.PageSamples
	}
	if cfg.MaxSamplePages <= 0 {
		cfg.MaxSamplePages = max(def.MaxSamplePages, cfg.MaxPages)
	}
	if cfg.MaxPages > cfg.MaxSamplePages {
		return nil, fmt.Errorf("default sample of %d pages exceeds the cap of %d", cfg.MaxPages, cfg.MaxSamplePages)
	}
	if cfg.MaxBreakdownPages <= 0 {
		cfg.MaxBreakdownPages = def.MaxBreakdownPages
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}

	return &RegionalAnalyzer{
		batch:  pagination.NewBatchFetcher(fetcher, cfg.Batch),
		cache:  cacheManager,
		config: cfg,
		logger: logging.NewLogger("sampling"),
	}, nil
}

// Analyze samples up to maxPages pages of region for period and extrapolates
// the source counts to the reported total. maxPages <= 0 uses the configured
// default; more than MaxSamplePages is rejected with ErrInvalidRange. Results
// are memoized for the configured TTL.
func (a *RegionalAnalyzer) Analyze(ctx context.Context, regionCode string, period client.Period, maxPages int) (*RegionalResult, error) {
	region, err := LookupRegion(regionCode)
	if err != nil {
		return nil, err
	}
	if !period.Valid() {
		return nil, fmt.Errorf("%w: period %q", client.ErrInvalidQuery, period)
	}
	if maxPages <= 0 {
		maxPages = a.config.MaxPages
	}
	if maxPages > a.config.MaxSamplePages {
		return nil, fmt.Errorf("%w: sample of %d pages exceeds the cap of %d", ErrInvalidRange, maxPages, a.config.MaxSamplePages)
	}

	key := cache.NewKey("regional",
		"region", region.Code,
		"period", string(period),
		"pages", strconv.Itoa(maxPages),
		"size", strconv.Itoa(a.config.PageSize),
	)

	res, hit, err := cache.Remember(ctx, a.cache, key, a.config.CacheTTL, func(ctx context.Context) (*RegionalResult, error) {
		return a.analyze(ctx, region, period, maxPages)
	})
	if err != nil {
		samplingRunsTotal.WithLabelValues("regional", "error").Inc()
		return nil, err
	}
	if hit {
		samplingRunsTotal.WithLabelValues("regional", "cached").Inc()
		a.logger.Debug().Str("region", region.Code).Str("period", string(period)).Msg("Regional result served from cache")
	} else {
		samplingRunsTotal.WithLabelValues("regional", "ok").Inc()
	}
	res.Cached = hit
	return res, nil
}

func (a *RegionalAnalyzer) analyze(ctx context.Context, region Region, period client.Period, maxPages int) (*RegionalResult, error) {
	start := time.Now()
	q := client.Query{
		Period:   period,
		PageSize: a.config.PageSize,
		Region:   region.Code,
	}

	batch, err := a.batch.FetchSample(ctx, q, maxPages)
	if err != nil {
		return nil, fmt.Errorf("sample region %s: %w", region.Code, err)
	}
	if !batch.HasTotal {
		return nil, fmt.Errorf("%w: region %s", ErrNoTotal, region.Code)
	}

	res := &RegionalResult{
		RegionCode:    region.Code,
		RegionName:    region.Name,
		Period:        period,
		TotalCount:    batch.TotalCount,
		PagesAnalyzed: len(batch.Pages),
		FailedPages:   batch.Failed,
		Samples:       []Sample{},
		GeneratedAt:   time.Now().UTC(),
	}
	if len(batch.Failed) > 0 {
		samplingFailedPagesTotal.WithLabelValues("regional").Add(float64(len(batch.Failed)))
	}

	if batch.TotalCount > 0 {
		listings := batch.Listings()
		res.AnalyzedCount = len(listings)
		res.SampleCounts = listing.Count(listings)
		res.Counts, res.Extrapolated = Extrapolate(res.SampleCounts, batch.TotalCount)
		res.Samples = Samples(listings, a.config.SampleSize)
	}
	res.ElapsedSeconds = time.Since(start).Seconds()

	a.logger.Info().
		Str("region", region.Code).
		Str("period", string(period)).
		Int("total", res.TotalCount).
		Int("analyzed", res.AnalyzedCount).
		Int("partner_a", res.Counts.PartnerA).
		Int("partner_b", res.Counts.PartnerB).
		Bool("extrapolated", res.Extrapolated).
		Dur("duration", time.Since(start)).
		Msg("Regional analysis complete")

	return res, nil
}

// Extrapolate scales a sample tally to total when the sample is smaller than
// the total. Each count becomes floor(count * total / sampled); native is then
// reset to the sum of its paid and free parts. The bool reports whether the
// tally was scaled.
func Extrapolate(sample listing.Tally, total int) (listing.Tally, bool) {
	sampled := sample.Total()
	out := sample
	scaled := false
	if sampled > 0 && sampled < total {
		scale := func(n int) int { return n * total / sampled }
		out = listing.Tally{
			Native:     scale(sample.Native),
			NativePaid: scale(sample.NativePaid),
			NativeFree: scale(sample.NativeFree),
			PartnerA:   scale(sample.PartnerA),
			PartnerB:   scale(sample.PartnerB),
		}
		scaled = true
	}
	if out.NativePaid+out.NativeFree != out.Native {
		out.Native = out.NativePaid + out.NativeFree
	}
	return out, scaled
}
