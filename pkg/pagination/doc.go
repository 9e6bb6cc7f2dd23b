// Package pagination provides parallel fetching of fixed page samples.
//
// Unlike the boundary search, a sample does not depend on the order in which
// pages arrive, so pages are fetched by a bounded worker pool.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(searchClient, pagination.DefaultConfig())
//	batch, err := fetcher.FetchSample(ctx, client.Query{Period: client.PeriodAll, Region: "A000"}, 3)
//
// The batch fetcher:
//   - Fetches the first page to learn the total count
//   - Spawns a worker pool (default 10 workers)
//   - Skips pages that fail and lists them in Batch.Failed
//   - Returns an error only for a failed first page or a cancelled context
package pagination
