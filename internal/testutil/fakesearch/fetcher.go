// Package fakesearch provides an in-memory client.Fetcher for tests.
package fakesearch

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/job-site-monitor/internal/testutil"
	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/listing"
)

// Fetcher serves pages from datasets or scripted page mixes and records every
// call. It is safe for concurrent use.
type Fetcher struct {
	mu sync.Mutex

	datasets map[client.Period]testutil.Dataset
	regions  map[string]testutil.Dataset

	// scripted mode
	scripted bool
	total    int
	pages    map[int]testutil.PageMix
	lastPage int

	// totals overrides the reported total per period.
	totals   map[client.Period]int
	noTotal  bool
	failures map[int]int
	delay    time.Duration
	calls    []client.Query
}

// New serves each period from its dataset. Periods without a dataset
// serve an empty result.
func New(datasets map[client.Period]testutil.Dataset) *Fetcher {
	return &Fetcher{
		datasets: datasets,
		regions:  make(map[string]testutil.Dataset),
		totals:   make(map[client.Period]int),
		failures: make(map[int]int),
	}
}

// NewScripted serves explicit page mixes for every period. Pages 1..lastPage
// missing from pages are full native pages of the requested size; pages
// past lastPage are empty.
func NewScripted(total, lastPage int, pages map[int]testutil.PageMix) *Fetcher {
	f := New(nil)
	f.scripted = true
	f.total = total
	f.lastPage = lastPage
	f.pages = pages
	return f
}

// SetRegion serves area queries for region from d.
func (f *Fetcher) SetRegion(region string, d testutil.Dataset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regions[region] = d
}

// ReportTotal overrides the total count reported for a period.
func (f *Fetcher) ReportTotal(period client.Period, total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totals[period] = total
}

// OmitTotal makes every page come back without a total count.
func (f *Fetcher) OmitTotal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noTotal = true
}

// FailPage makes the next n fetches of page fail with a server error.
// A negative n fails the page forever.
func (f *Fetcher) FailPage(page, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[page] = n
}

// SetDelay delays every fetch.
func (f *Fetcher) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// FetchPage implements client.Fetcher.
func (f *Fetcher) FetchPage(ctx context.Context, q client.Query) (*client.PageResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	delay := f.delay
	fail := false
	if n, ok := f.failures[q.Page]; ok && n != 0 {
		fail = true
		if n > 0 {
			f.failures[q.Page] = n - 1
		}
	}
	records, total := f.page(q)
	if t, ok := f.totals[q.Period]; ok {
		total = t
	}
	noTotal := f.noTotal
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if fail {
		return nil, &client.SearchError{
			Page:       q.Page,
			StatusCode: 500,
			ErrorClass: client.ErrorClassServer,
			Message:    "injected failure",
		}
	}

	listings, malformed := listing.DecodePage(records)
	return &client.PageResult{
		Page:       q.Page,
		Listings:   listings,
		TotalCount: total,
		HasTotal:   !noTotal,
		Malformed:  malformed,
	}, nil
}

func (f *Fetcher) page(q client.Query) ([]json.RawMessage, int) {
	size := q.PageSize
	if size == 0 {
		size = client.DefaultPageSize
	}

	if f.scripted {
		if q.Page < 1 || q.Page > f.lastPage {
			return []json.RawMessage{}, f.total
		}
		mix, ok := f.pages[q.Page]
		if !ok {
			mix = testutil.PageMix{Native: size}
		}
		return mix.Records(), f.total
	}

	var d testutil.Dataset
	if q.Region != "" {
		d = f.regions[q.Region]
	} else {
		d = f.datasets[q.Period]
	}
	return d.Page(q.Page, size), d.Total()
}

// Calls returns a copy of all queries received, in order.
func (f *Fetcher) Calls() []client.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]client.Query, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of fetches.
func (f *Fetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Pages returns the requested page numbers in call order.
func (f *Fetcher) Pages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages := make([]int, 0, len(f.calls))
	for _, q := range f.calls {
		pages = append(pages, q.Page)
	}
	return pages
}

// DistinctPages returns the requested page numbers, sorted and deduplicated.
func (f *Fetcher) DistinctPages() []int {
	seen := make(map[int]bool)
	var out []int
	for _, p := range f.Pages() {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

// Reset clears recorded calls.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
