// Package sampling estimates source shares from a fixed sample of pages.
//
// Where the estimator walks the tail of the result list to find partner
// ranges, sampling fetches the first few pages of a query in parallel and
// extrapolates the observed shares to the reported total. It is used for
// regional breakdowns, where results are ordered by the DEFAULT sort and
// partner listings are interleaved rather than grouped at the end.
//
//	analyzer, err := sampling.NewRegionalAnalyzer(searchClient, cacheManager, sampling.DefaultConfig())
//	res, err := analyzer.Analyze(ctx, "A000", client.PeriodAll, 3)
package sampling
