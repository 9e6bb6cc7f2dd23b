//go:build integration

package ratelimit

import (
	"context"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestTracker_Integration_GetState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	tracker := NewTracker(redisClient, logger)
	ctx := context.Background()

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.IsBlocked() {
		t.Error("Default state should not be blocked")
	}

	headers := http.Header{}
	headers.Set("Retry-After", "120")
	if err := tracker.RecordResponse(ctx, http.StatusTooManyRequests, headers); err != nil {
		t.Fatalf("RecordResponse() error = %v", err)
	}

	state, err = tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() after throttle error = %v", err)
	}

	expected := 120 * time.Second
	actual := state.TimeUntilUnblocked()
	tolerance := 5 * time.Second
	if actual < expected-tolerance || actual > expected+tolerance {
		t.Errorf("TimeUntilUnblocked = %v, want approximately %v", actual, expected)
	}
}

func TestTracker_Integration_ConsecutiveThrottles(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	tracker := NewTracker(redisClient, logger)
	ctx := context.Background()

	// Without Retry-After the cooldown doubles per consecutive throttle.
	for i := 0; i < 3; i++ {
		if err := tracker.RecordResponse(ctx, http.StatusServiceUnavailable, http.Header{}); err != nil {
			t.Fatalf("RecordResponse() #%d error = %v", i+1, err)
		}
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Consecutive != 3 {
		t.Errorf("Consecutive = %d, want 3", state.Consecutive)
	}
	if d := state.TimeUntilUnblocked(); d < 110*time.Second {
		t.Errorf("TimeUntilUnblocked = %v, want ~120s after third throttle", d)
	}
}

func TestTracker_Integration_SharedAcrossTrackers(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	first := NewTracker(redisClient, logger)
	second := NewTracker(redisClient, logger)
	ctx := context.Background()

	headers := http.Header{}
	headers.Set("Retry-After", "1")
	if err := first.RecordResponse(ctx, http.StatusTooManyRequests, headers); err != nil {
		t.Fatalf("RecordResponse() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	start := time.Now()
	for _, tr := range []*Tracker{first, second} {
		wg.Add(1)
		go func(tr *Tracker) {
			defer wg.Done()
			errs <- tr.Wait(ctx, 5*time.Second)
		}(tr)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Errorf("Both trackers should have waited for the shared cooldown, took %v", elapsed)
	}
}

func TestTracker_Integration_StateReset(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	tracker := NewTracker(redisClient, logger)
	ctx := context.Background()

	if err := tracker.RecordResponse(ctx, http.StatusTooManyRequests, http.Header{}); err != nil {
		t.Fatalf("RecordResponse(429) error = %v", err)
	}
	if err := tracker.RecordResponse(ctx, http.StatusOK, http.Header{}); err != nil {
		t.Fatalf("RecordResponse(200) error = %v", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.IsBlocked() {
		t.Error("State should be open after a successful response")
	}
	if state.LastStatus != http.StatusOK {
		t.Errorf("LastStatus = %d, want 200", state.LastStatus)
	}
}
