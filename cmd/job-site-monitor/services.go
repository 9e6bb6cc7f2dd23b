package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/cache"
	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/config"
	"github.com/Sternrassler/job-site-monitor/pkg/estimator"
	"github.com/Sternrassler/job-site-monitor/pkg/report"
	"github.com/Sternrassler/job-site-monitor/pkg/sampling"
	"github.com/redis/go-redis/v9"
)

// services is the wired object graph shared by the commands and the server.
type services struct {
	rdb      *redis.Client
	search   *client.Client
	cache    *cache.Manager
	runner   *report.Runner
	regional *sampling.RegionalAnalyzer
}

// newServices wires client → retrier → estimator/analyzer. Redis is optional;
// when enabled it backs both the shared throttle state and the result cache.
func newServices(ctx context.Context, cfg config.Config) (*services, error) {
	s := &services{}

	if opts := cfg.RedisOptions(); opts != nil {
		s.rdb = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := s.rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		s.cache = cache.NewManager(s.rdb)
	}

	search, err := client.New(cfg.ClientConfig(s.rdb))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create search client: %w", err)
	}
	s.search = search

	retryCfg := cfg.RetryConfig()
	fetcher := client.NewRetrier(search, &retryCfg)

	est, err := estimator.New(fetcher, cfg.EstimatorConfig())
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create estimator: %w", err)
	}
	s.runner = report.NewRunner(est, s.cache, cfg.RunnerConfig())

	s.regional, err = sampling.NewRegionalAnalyzer(fetcher, s.cache, cfg.SamplingConfig())
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create regional analyzer: %w", err)
	}
	return s, nil
}

// Close releases the search client and the Redis connection.
func (s *services) Close() {
	if s.search != nil {
		s.search.Close()
	}
	if s.rdb != nil {
		s.rdb.Close()
	}
}
