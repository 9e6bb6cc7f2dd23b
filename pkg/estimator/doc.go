// Package estimator counts listings per source without fetching every page.
//
// Search results are sorted native first, then partner A, then partner B,
// and each source occupies one contiguous run of pages. The estimator reads
// the total from page 1, then walks backward from the last page to find the
// partner B run, and backward again from just below it to find the partner A
// run. Only the boundary pages of each run are observed; interior pages are
// assumed full. Native listings are the remainder.
//
// Example usage:
//
//	est, err := estimator.New(fetcher, estimator.DefaultConfig())
//	result, err := est.Estimate(ctx, client.PeriodAll)
//
// The cost of a run is O(pages covered by partner A and B) rather than
// O(total pages). A page that fails to load during a backward walk is
// skipped; a failure on page 1 aborts the run with ErrNoResult.
package estimator
