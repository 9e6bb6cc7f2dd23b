package pagination

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/listing"
	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
}

// DefaultConfig returns the default batch fetcher configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
	}
}

// PageFetcher fetches a single page of search results
type PageFetcher interface {
	FetchPage(ctx context.Context, q client.Query) (*client.PageResult, error)
}

// PageResult represents the result of fetching a single page
type PageResult struct {
	PageNumber int
	Result     *client.PageResult
	Error      error
}

// Batch is the outcome of a fan-out. Failed pages are listed, not fatal.
type Batch struct {
	TotalCount int
	HasTotal   bool
	Pages      map[int]*client.PageResult
	Failed     []int
}

// PageNumbers returns the fetched page numbers in ascending order.
func (b *Batch) PageNumbers() []int {
	pages := make([]int, 0, len(b.Pages))
	for p := range b.Pages {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// Listings returns all fetched listings in page order.
func (b *Batch) Listings() []listing.Listing {
	var out []listing.Listing
	for _, p := range b.PageNumbers() {
		out = append(out, b.Pages[p].Listings...)
	}
	return out
}

// BatchFetcher handles parallel fetching of multiple pages
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchSample fetches page 1 to learn the total, then pages
// 2..min(maxPages, total pages) in parallel.
// A failed first page is an error; later failures are recorded in Failed.
func (bf *BatchFetcher) FetchSample(ctx context.Context, q client.Query, maxPages int) (*Batch, error) {
	if q.PageSize == 0 {
		q.PageSize = client.DefaultPageSize
	}

	first, err := bf.fetcher.FetchPage(ctx, q.WithPage(1))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	totalPages := 1
	if first.TotalCount > 0 {
		totalPages = (first.TotalCount + q.PageSize - 1) / q.PageSize
	}
	last := min(maxPages, totalPages)

	pages := make([]int, 0, last)
	for p := 2; p <= last; p++ {
		pages = append(pages, p)
	}

	batch, err := bf.FetchPages(ctx, q, pages)
	if err != nil {
		return nil, err
	}
	batch.Pages[1] = first
	batch.TotalCount = first.TotalCount
	batch.HasTotal = first.HasTotal
	return batch, nil
}

// FetchPages fetches the given pages in parallel using a worker pool.
// Pages that fail are skipped and listed in Batch.Failed. Only context
// cancellation fails the whole batch.
func (bf *BatchFetcher) FetchPages(ctx context.Context, q client.Query, pages []int) (*Batch, error) {
	start := time.Now()
	batch := &Batch{Pages: make(map[int]*client.PageResult, len(pages))}
	if len(pages) == 0 {
		return batch, nil
	}

	// Create channels
	pageQueue := make(chan int, len(pages))
	pageResults := make(chan PageResult, len(pages))

	for _, p := range pages {
		pageQueue <- p
	}
	close(pageQueue)

	// Start worker pool
	workers := min(bf.config.MaxConcurrency, len(pages))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, q, pageQueue, pageResults, &wg, i)
	}

	// Close results channel when all workers done
	go func() {
		wg.Wait()
		close(pageResults)
	}()

	// Collect results
	for result := range pageResults {
		if result.Error != nil {
			log.Warn().
				Err(result.Error).
				Int("page", result.PageNumber).
				Msg("Page fetch failed, skipping")
			batch.Failed = append(batch.Failed, result.PageNumber)
			continue
		}
		batch.Pages[result.PageNumber] = result.Result
		if result.Result.HasTotal && !batch.HasTotal {
			batch.TotalCount = result.Result.TotalCount
			batch.HasTotal = true
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Ints(batch.Failed)

	log.Debug().
		Int("pages", len(batch.Pages)).
		Int("failed", len(batch.Failed)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return batch, nil
}

// worker processes pages from the queue
func (bf *BatchFetcher) worker(ctx context.Context, q client.Query, pageQueue <-chan int, results chan<- PageResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		// Check context cancellation
		if ctx.Err() != nil {
			log.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		}

		// Fetch page with timeout
		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		res, err := bf.fetcher.FetchPage(pageCtx, q.WithPage(pageNum))
		cancel()

		// results is buffered for every page, so this never blocks
		results <- PageResult{PageNumber: pageNum, Result: res, Error: err}
		pagesProcessed++
	}
}
