package sampling

import (
	"context"
	"strings"
	"testing"

	"github.com/Sternrassler/job-site-monitor/internal/testutil"
	"github.com/Sternrassler/job-site-monitor/internal/testutil/fakesearch"
	"github.com/Sternrassler/job-site-monitor/pkg/cache"
	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PageSize = 100
	return cfg
}

func newAnalyzer(t *testing.T, f *fakesearch.Fetcher, m *cache.Manager) *RegionalAnalyzer {
	t.Helper()
	a, err := NewRegionalAnalyzer(f, m, testConfig())
	require.NoError(t, err)
	return a
}

func TestNewRegionalAnalyzer(t *testing.T) {
	_, err := NewRegionalAnalyzer(nil, nil, DefaultConfig())
	assert.Error(t, err)

	_, err = NewRegionalAnalyzer(fakesearch.New(nil), nil, Config{PageSize: -1})
	assert.Error(t, err)

	_, err = NewRegionalAnalyzer(fakesearch.New(nil), nil, Config{MaxPages: 8, MaxSamplePages: 5})
	assert.Error(t, err)

	a, err := NewRegionalAnalyzer(fakesearch.New(nil), nil, Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().PageSize, a.config.PageSize)
	assert.Equal(t, 3, a.config.MaxPages)
	assert.Equal(t, 20, a.config.MaxSamplePages)
	assert.Equal(t, 10, a.config.SampleSize)
	assert.Equal(t, cache.DefaultTTL, a.config.CacheTTL)
}

func TestAnalyze_FullSample(t *testing.T) {
	f := fakesearch.New(nil)
	f.SetRegion("A000", testutil.Dataset{Native: 150, NativePaid: 30, PartnerA: 30, PartnerB: 20})
	a := newAnalyzer(t, f, nil)

	res, err := a.Analyze(context.Background(), "a000", client.PeriodAll, 3)
	require.NoError(t, err)

	assert.Equal(t, "A000", res.RegionCode)
	assert.Equal(t, "서울", res.RegionName)
	assert.Equal(t, 200, res.TotalCount)
	assert.Equal(t, 200, res.AnalyzedCount)
	assert.Equal(t, 2, res.PagesAnalyzed)
	assert.False(t, res.Extrapolated)
	assert.False(t, res.Cached)
	assert.Equal(t, listing.Tally{Native: 150, NativePaid: 30, NativeFree: 120, PartnerA: 30, PartnerB: 20}, res.Counts)
	assert.Equal(t, res.Counts, res.SampleCounts)
	assert.Len(t, res.Samples, 10)
	assert.Equal(t, []int{1, 2}, f.DistinctPages())

	for _, q := range f.Calls() {
		assert.Equal(t, "A000", q.Region)
		assert.Equal(t, 100, q.PageSize)
	}
}

func TestAnalyze_Extrapolates(t *testing.T) {
	f := fakesearch.New(nil)
	f.SetRegion("B000", testutil.Dataset{Native: 600, NativePaid: 150, PartnerA: 300, PartnerB: 100})
	a := newAnalyzer(t, f, nil)

	res, err := a.Analyze(context.Background(), "B000", client.PeriodToday, 2)
	require.NoError(t, err)

	assert.Equal(t, 1000, res.TotalCount)
	assert.Equal(t, 200, res.AnalyzedCount)
	assert.True(t, res.Extrapolated)
	assert.Equal(t, listing.Tally{Native: 200, NativePaid: 150, NativeFree: 50}, res.SampleCounts)
	assert.Equal(t, listing.Tally{Native: 1000, NativePaid: 750, NativeFree: 250}, res.Counts)
	assert.Equal(t, 2, f.CallCount())
}

func TestAnalyze_DefaultPages(t *testing.T) {
	f := fakesearch.New(nil)
	f.SetRegion("Q000", testutil.Dataset{Native: 1000})
	a := newAnalyzer(t, f, nil)

	res, err := a.Analyze(context.Background(), "Q000", client.PeriodAll, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.PagesAnalyzed)
	assert.Equal(t, []int{1, 2, 3}, f.DistinctPages())
}

func TestAnalyze_SampleCap(t *testing.T) {
	f := fakesearch.New(nil)
	f.SetRegion("A000", testutil.Dataset{Native: 100000})
	cfg := testConfig()
	cfg.MaxSamplePages = 4
	a, err := NewRegionalAnalyzer(f, nil, cfg)
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), "A000", client.PeriodAll, 100000)
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Zero(t, f.CallCount(), "an oversized sample must not reach the upstream")

	res, err := a.Analyze(context.Background(), "A000", client.PeriodAll, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, res.PagesAnalyzed)
	assert.Equal(t, 4, f.CallCount())
}

func TestAnalyze_ZeroTotal(t *testing.T) {
	f := fakesearch.New(nil)
	a := newAnalyzer(t, f, nil)

	res, err := a.Analyze(context.Background(), "G000", client.PeriodAll, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalCount)
	assert.Equal(t, listing.Tally{}, res.Counts)
	assert.Empty(t, res.Samples)
	assert.NotNil(t, res.Samples)
}

func TestAnalyze_SkipsFailedPages(t *testing.T) {
	f := fakesearch.New(nil)
	f.SetRegion("A000", testutil.Dataset{Native: 300})
	f.FailPage(2, -1)
	a := newAnalyzer(t, f, nil)

	res, err := a.Analyze(context.Background(), "A000", client.PeriodAll, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.FailedPages)
	assert.Equal(t, 200, res.AnalyzedCount)
	assert.True(t, res.Extrapolated)
	assert.Equal(t, 300, res.Counts.Native)
}

func TestAnalyze_Errors(t *testing.T) {
	f := fakesearch.New(nil)
	f.SetRegion("A000", testutil.Dataset{Native: 10})
	a := newAnalyzer(t, f, nil)
	ctx := context.Background()

	_, err := a.Analyze(ctx, "Z999", client.PeriodAll, 1)
	assert.ErrorIs(t, err, ErrUnknownRegion)

	_, err = a.Analyze(ctx, "A000", client.Period("WEEK"), 1)
	assert.ErrorIs(t, err, client.ErrInvalidQuery)

	f.FailPage(1, 1)
	_, err = a.Analyze(ctx, "A000", client.PeriodAll, 1)
	assert.Error(t, err)

	f.OmitTotal()
	_, err = a.Analyze(ctx, "A000", client.PeriodAll, 1)
	assert.ErrorIs(t, err, ErrNoTotal)
}

func TestAnalyze_Cached(t *testing.T) {
	rdb := testutil.LocalRedis(t)
	ctx := context.Background()

	f := fakesearch.New(nil)
	f.SetRegion("D000", testutil.Dataset{Native: 80, PartnerB: 20})
	a := newAnalyzer(t, f, cache.NewManager(rdb))

	first, err := a.Analyze(ctx, "D000", client.PeriodAll, 3)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	calls := f.CallCount()

	second, err := a.Analyze(ctx, "D000", client.PeriodAll, 3)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, calls, f.CallCount(), "cached result must not hit upstream")
	assert.Equal(t, first.Counts, second.Counts)

	// different sample size is a different key
	_, err = a.Analyze(ctx, "D000", client.PeriodAll, 1)
	require.NoError(t, err)
	assert.Greater(t, f.CallCount(), calls)
}

func TestExtrapolate(t *testing.T) {
	tests := []struct {
		name   string
		sample listing.Tally
		total  int
		want   listing.Tally
		scaled bool
	}{
		{
			name:   "sample covers total",
			sample: listing.Tally{Native: 5, NativePaid: 2, NativeFree: 3, PartnerA: 1},
			total:  6,
			want:   listing.Tally{Native: 5, NativePaid: 2, NativeFree: 3, PartnerA: 1},
		},
		{
			name:   "counts truncate",
			sample: listing.Tally{Native: 7, NativePaid: 3, NativeFree: 4, PartnerA: 2, PartnerB: 1},
			total:  25,
			want:   listing.Tally{Native: 17, NativePaid: 7, NativeFree: 10, PartnerA: 5, PartnerB: 2},
			scaled: true,
		},
		{
			name:   "native reset to paid plus free",
			sample: listing.Tally{Native: 2, NativePaid: 1, NativeFree: 1},
			total:  5,
			want:   listing.Tally{Native: 4, NativePaid: 2, NativeFree: 2},
			scaled: true,
		},
		{
			name:   "empty sample",
			sample: listing.Tally{},
			total:  100,
			want:   listing.Tally{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, scaled := Extrapolate(tt.sample, tt.total)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.scaled, scaled)
			assert.Equal(t, got.NativePaid+got.NativeFree, got.Native)
		})
	}
}

func TestLookupRegion(t *testing.T) {
	assert.Len(t, Regions, 17)

	r, err := LookupRegion(" p000 ")
	require.NoError(t, err)
	assert.Equal(t, Region{Code: "P000", Name: "경남"}, r)

	_, err = LookupRegion("")
	assert.ErrorIs(t, err, ErrUnknownRegion)

	seen := make(map[string]bool)
	for _, r := range Regions {
		assert.False(t, seen[r.Code], "duplicate region %s", r.Code)
		seen[r.Code] = true
	}
}

func TestNewSample(t *testing.T) {
	long := strings.Repeat("가", 45)
	native := listing.Listing{RecruitNo: "7", Title: long, PaidService: &listing.PaidService{TotalProductCount: 2}}

	s := NewSample(native)
	assert.Equal(t, listing.SourceNative, s.Source)
	assert.True(t, s.Paid)
	assert.Equal(t, 2, s.ProductCount)
	assert.Equal(t, strings.Repeat("가", 40)+"...", s.Title)

	partner := listing.Listing{RecruitNo: "8", Title: "short", JobkoreaRecruitNo: 99, PaidService: &listing.PaidService{TotalProductCount: 5}}
	s = NewSample(partner)
	assert.Equal(t, listing.SourcePartnerA, s.Source)
	assert.False(t, s.Paid)
	assert.Equal(t, 0, s.ProductCount)
	assert.Equal(t, "short", s.Title)
	assert.Equal(t, int64(99), s.PartnerARecruitNo)

	assert.Len(t, Samples([]listing.Listing{native, partner}, 10), 2)
	assert.Len(t, Samples([]listing.Listing{native, partner}, 1), 1)
}
