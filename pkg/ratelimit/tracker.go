package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttle tracking.
var (
	throttleActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jsm_throttle_active",
		Help: "1 while the search API cooldown window is open",
	})

	throttleWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jsm_throttle_waits_total",
		Help: "Total number of requests delayed by an open cooldown window",
	})

	throttleBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jsm_throttle_blocks_total",
		Help: "Total number of requests rejected because the cooldown exceeded the allowed wait",
	})
)

// ErrCooldownTooLong is returned by Wait when the remaining cooldown exceeds the allowed wait.
var ErrCooldownTooLong = errors.New("throttle cooldown exceeds allowed wait")

// Tracker records upstream throttle responses and gates requests during cooldown.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new throttle tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState retrieves the current throttle state from Redis.
// Returns an open (unthrottled) state if no data exists in Redis.
func (t *Tracker) GetState(ctx context.Context) (*ThrottleState, error) {
	blockedUnix, err := t.redis.Get(ctx, RedisKeyBlockedUntil).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get blocked until: %w", err)
	}

	consecutive, err := t.redis.Get(ctx, RedisKeyConsecutive).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get consecutive throttles: %w", err)
	}

	lastStatus, err := t.redis.Get(ctx, RedisKeyLastStatus).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last status: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	if err == redis.Nil {
		t.logger.Debug().Msg("No throttle state in Redis, returning open state")
		return &ThrottleState{LastUpdate: time.Now()}, nil
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &ThrottleState{
		Consecutive: consecutive,
		LastStatus:  lastStatus,
		LastUpdate:  lastUpdate,
	}
	if blockedUnix > 0 {
		state.BlockedUntil = time.UnixMilli(blockedUnix)
	}
	return state, nil
}

// RecordResponse updates the throttle state from a search API response.
// 429 and 503 open (or extend) the cooldown window; any 2xx closes it.
// Other statuses leave the state untouched.
func (t *Tracker) RecordResponse(ctx context.Context, status int, headers http.Header) error {
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		return t.recordThrottle(ctx, status, headers)
	case status >= 200 && status < 300:
		return t.recordSuccess(ctx, status)
	default:
		return nil
	}
}

func (t *Tracker) recordThrottle(ctx context.Context, status int, headers http.Header) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}

	cooldown, ok := ParseRetryAfter(headers.Get("Retry-After"), time.Now())
	if !ok {
		cooldown = state.NextCooldown()
	}
	if cooldown > MaxCooldown {
		cooldown = MaxCooldown
	}

	now := time.Now()
	state.Consecutive++
	state.LastStatus = status
	state.LastUpdate = now
	if until := now.Add(cooldown); until.After(state.BlockedUntil) {
		state.BlockedUntil = until
	}

	if err := t.store(ctx, state); err != nil {
		return err
	}

	throttleActive.Set(1)
	t.logger.Warn().
		Int("status", status).
		Int("consecutive", state.Consecutive).
		Dur("cooldown", cooldown).
		Time("blocked_until", state.BlockedUntil).
		Msg("Search API throttled requests - cooldown opened")
	return nil
}

func (t *Tracker) recordSuccess(ctx context.Context, status int) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}
	if state.Consecutive == 0 && state.BlockedUntil.IsZero() {
		return nil
	}

	state.Consecutive = 0
	state.LastStatus = status
	state.LastUpdate = time.Now()
	state.BlockedUntil = time.Time{}

	if err := t.store(ctx, state); err != nil {
		return err
	}

	throttleActive.Set(0)
	t.logger.Info().Msg("Search API throttle cleared")
	return nil
}

// store writes the state to Redis atomically.
func (t *Tracker) store(ctx context.Context, state *ThrottleState) error {
	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	var blocked int64
	if !state.BlockedUntil.IsZero() {
		blocked = state.BlockedUntil.UnixMilli()
	}

	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyBlockedUntil, blocked, 0)
	pipe.Set(ctx, RedisKeyConsecutive, state.Consecutive, 0)
	pipe.Set(ctx, RedisKeyLastStatus, state.LastStatus, 0)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store throttle state in redis: %w", err)
	}
	return nil
}

// Wait blocks until the cooldown window closes.
// Returns ErrCooldownTooLong without waiting if the remaining cooldown exceeds maxWait
// (maxWait <= 0 means no limit), or the context error if ctx ends first.
func (t *Tracker) Wait(ctx context.Context, maxWait time.Duration) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return fmt.Errorf("get throttle state: %w", err)
	}
	if !state.IsBlocked() {
		return nil
	}

	remaining := state.TimeUntilUnblocked()
	if maxWait > 0 && remaining > maxWait {
		t.logger.Error().
			Dur("remaining", remaining).
			Dur("max_wait", maxWait).
			Msg("Search API cooldown too long - rejecting request")
		throttleBlocksTotal.Inc()
		return fmt.Errorf("%w: %s remaining", ErrCooldownTooLong, remaining.Round(time.Second))
	}

	t.logger.Warn().Dur("remaining", remaining).Msg("Search API cooldown active - waiting")
	throttleWaitsTotal.Inc()

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ParseRetryAfter parses a Retry-After header given as delay-seconds or an HTTP date.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
