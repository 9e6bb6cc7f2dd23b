package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/job-site-monitor/internal/testutil"
	"github.com/Sternrassler/job-site-monitor/internal/testutil/fakesearch"
	"github.com/Sternrassler/job-site-monitor/pkg/cache"
	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/estimator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEstimator returns fixed results and records the call order.
type stubEstimator struct {
	mu      sync.Mutex
	results map[client.Period]*estimator.Result
	errs    map[client.Period]error
	delay   time.Duration
	calls   []client.Period
}

func (s *stubEstimator) Estimate(ctx context.Context, period client.Period) (*estimator.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, period)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if err := s.errs[period]; err != nil {
		return nil, err
	}
	return s.results[period], nil
}

func (s *stubEstimator) Calls() []client.Period {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]client.Period(nil), s.calls...)
}

func fixedResults() map[client.Period]*estimator.Result {
	return map[client.Period]*estimator.Result{
		client.PeriodAll:   {Period: client.PeriodAll, TotalCount: 2600, NativeCount: 2010, PartnerACount: 360, PartnerBCount: 230},
		client.PeriodToday: {Period: client.PeriodToday, TotalCount: 120, NativeCount: 120},
	}
}

func TestRunner_Sequential(t *testing.T) {
	est := &stubEstimator{results: fixedResults()}
	r := NewRunner(est, nil, RunnerConfig{Pause: 20 * time.Millisecond})

	start := time.Now()
	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond, "pause between periods")
	assert.Equal(t, []client.Period{client.PeriodAll, client.PeriodToday}, est.Calls())
	assert.Equal(t, 2600, rep.All.TotalCount)
	assert.Equal(t, 120, rep.Today.TotalCount)
	assert.Equal(t, DefaultSource, rep.Source)
	assert.Equal(t, time.Now().Format(DateLayout), rep.ReportDate)
	assert.NotEqual(t, [16]byte{}, [16]byte(rep.ID))
	assert.Same(t, rep.All, rep.Result(client.PeriodAll))
	assert.Same(t, rep.Today, rep.Result(client.PeriodToday))
	assert.Nil(t, rep.Result(client.Period("x")))
}

func TestRunner_Concurrent(t *testing.T) {
	est := &stubEstimator{results: fixedResults(), delay: 50 * time.Millisecond}
	r := NewRunner(est, nil, RunnerConfig{Concurrent: true, Pause: time.Hour, Source: "cron"})

	start := time.Now()
	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 100*time.Millisecond, "periods should overlap and skip the pause")
	assert.ElementsMatch(t, []client.Period{client.PeriodAll, client.PeriodToday}, est.Calls())
	assert.Equal(t, "cron", rep.Source)
}

func TestRunner_FailureFailsReport(t *testing.T) {
	boom := errors.New("upstream down")

	t.Run("sequential stops after ALL fails", func(t *testing.T) {
		est := &stubEstimator{results: fixedResults(), errs: map[client.Period]error{client.PeriodAll: boom}}
		_, err := NewRunner(est, nil, RunnerConfig{}).Run(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []client.Period{client.PeriodAll}, est.Calls())
	})

	t.Run("concurrent TODAY failure", func(t *testing.T) {
		est := &stubEstimator{results: fixedResults(), errs: map[client.Period]error{client.PeriodToday: boom}}
		_, err := NewRunner(est, nil, RunnerConfig{Concurrent: true}).Run(context.Background())
		assert.ErrorIs(t, err, boom)
	})
}

func TestRunner_PauseHonoursContext(t *testing.T) {
	est := &stubEstimator{results: fixedResults()}
	r := NewRunner(est, nil, RunnerConfig{Pause: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []client.Period{client.PeriodAll}, est.Calls())
}

func TestRunner_WithEstimator(t *testing.T) {
	f := fakesearch.New(map[client.Period]testutil.Dataset{
		client.PeriodAll:   {Native: 40, PartnerA: 20, PartnerB: 10},
		client.PeriodToday: {Native: 5},
	})
	est, err := estimator.New(f, estimator.Config{PageSize: 10})
	require.NoError(t, err)

	rep, err := NewRunner(est, nil, RunnerConfig{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 70, rep.All.TotalCount)
	assert.Equal(t, 40, rep.All.NativeCount)
	assert.Equal(t, 20, rep.All.PartnerACount)
	assert.Equal(t, 10, rep.All.PartnerBCount)
	assert.Equal(t, 5, rep.Today.NativeCount)
}

func TestRunner_EstimateMemoized(t *testing.T) {
	rdb := testutil.LocalRedis(t)
	ctx := context.Background()

	est := &stubEstimator{results: fixedResults()}
	r := NewRunner(est, cache.NewManager(rdb), RunnerConfig{})

	first, hit, err := r.Estimate(ctx, client.PeriodAll)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := r.Estimate(ctx, client.PeriodAll)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.PartnerACount, second.PartnerACount)
	assert.Len(t, est.Calls(), 1)
}

func TestRunner_EstimateKeyScope(t *testing.T) {
	f := fakesearch.New(nil)
	newEst := func(cfg estimator.Config) Estimator {
		est, err := estimator.New(f, cfg)
		require.NoError(t, err)
		return est
	}

	tests := []struct {
		name string
		est  Estimator
		want string
	}{
		{name: "plain estimator", est: &stubEstimator{}, want: "jsm:estimate:period=ALL"},
		{name: "page size", est: newEst(estimator.Config{PageSize: 200}), want: "jsm:estimate:period=ALL:size=200"},
		{
			name: "page size and region",
			est:  newEst(estimator.Config{PageSize: 50, Query: client.Query{Region: "B000"}}),
			want: "jsm:estimate:period=ALL:region=B000:size=50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(tt.est, nil, RunnerConfig{})
			assert.Equal(t, tt.want, r.estimateKey(client.PeriodAll).String())
		})
	}
}

func TestRunner_EstimateNotSharedAcrossPageSizes(t *testing.T) {
	rdb := testutil.LocalRedis(t)
	ctx := context.Background()
	m := cache.NewManager(rdb)

	f := fakesearch.New(map[client.Period]testutil.Dataset{
		client.PeriodAll: {Native: 40, PartnerA: 20, PartnerB: 10},
	})
	small, err := estimator.New(f, estimator.Config{PageSize: 10})
	require.NoError(t, err)
	large, err := estimator.New(f, estimator.Config{PageSize: 20})
	require.NoError(t, err)

	_, hit, err := NewRunner(small, m, RunnerConfig{}).Estimate(ctx, client.PeriodAll)
	require.NoError(t, err)
	assert.False(t, hit)

	res, hit, err := NewRunner(large, m, RunnerConfig{}).Estimate(ctx, client.PeriodAll)
	require.NoError(t, err)
	assert.False(t, hit, "a different page size must not reuse the memoized estimate")
	assert.Equal(t, 20, res.PageSize)

	_, hit, err = NewRunner(small, m, RunnerConfig{}).Estimate(ctx, client.PeriodAll)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestNewRunner_NilEstimatorPanics(t *testing.T) {
	assert.Panics(t, func() { NewRunner(nil, nil, DefaultRunnerConfig()) })
}
