package sampling

import (
	"context"
	"fmt"

	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/listing"
)

// PageStats is the source breakdown of a single result page.
type PageStats struct {
	Page    int           `json:"page"`
	Total   int           `json:"total"`
	Counts  listing.Tally `json:"counts"`
	Samples []Sample      `json:"samples"`
}

// PageBreakdown fetches pages from..to of the nationwide search for period
// and tallies each page. Pages that fail are skipped; the rest are returned
// in ascending order.
func (a *RegionalAnalyzer) PageBreakdown(ctx context.Context, from, to int, period client.Period) ([]PageStats, error) {
	if from < 1 || to < from {
		return nil, fmt.Errorf("%w: %d..%d", ErrInvalidRange, from, to)
	}
	if n := to - from + 1; n > a.config.MaxBreakdownPages {
		return nil, fmt.Errorf("%w: %d pages exceeds limit of %d", ErrInvalidRange, n, a.config.MaxBreakdownPages)
	}
	if !period.Valid() {
		return nil, fmt.Errorf("%w: period %q", client.ErrInvalidQuery, period)
	}

	pages := make([]int, 0, to-from+1)
	for p := from; p <= to; p++ {
		pages = append(pages, p)
	}

	q := client.Query{Period: period, PageSize: a.config.PageSize}
	batch, err := a.batch.FetchPages(ctx, q, pages)
	if err != nil {
		samplingRunsTotal.WithLabelValues("pages", "error").Inc()
		return nil, err
	}
	if len(batch.Failed) > 0 {
		samplingFailedPagesTotal.WithLabelValues("pages").Add(float64(len(batch.Failed)))
		a.logger.Warn().Ints("pages", batch.Failed).Str("period", string(period)).Msg("Skipped failed pages in breakdown")
	}

	stats := make([]PageStats, 0, len(batch.Pages))
	for _, p := range batch.PageNumbers() {
		listings := batch.Pages[p].Listings
		stats = append(stats, PageStats{
			Page:    p,
			Total:   len(listings),
			Counts:  listing.Count(listings),
			Samples: Samples(listings, a.config.PageSamples),
		})
	}
	samplingRunsTotal.WithLabelValues("pages", "ok").Inc()
	return stats, nil
}
