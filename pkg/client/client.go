// Package client provides the job search HTTP client with pacing,
// shared throttle tracking, and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/listing"
	"github.com/Sternrassler/job-site-monitor/pkg/logging"
	"github.com/Sternrassler/job-site-monitor/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for search client operations.
var (
	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jsm_search_requests_total",
		Help: "Total search requests by period and status",
	}, []string{"period", "status"})

	searchRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jsm_search_request_duration_seconds",
		Help:    "Search request duration in seconds by period",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"period"})

	searchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jsm_search_errors_total",
		Help: "Total search errors by class",
	}, []string{"class"})

	searchMalformedRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jsm_search_malformed_records_total",
		Help: "Listing records that could not be decoded",
	})
)

// maxErrorExcerpt bounds how much of an error body ends up in a SearchError.
const maxErrorExcerpt = 256

// PageResult is one fetched page of search results.
type PageResult struct {
	Page     int
	Listings []listing.Listing

	// TotalCount is the upstream's total for the query. Only meaningful
	// when HasTotal is set.
	TotalCount int
	HasTotal   bool

	// Malformed counts records that failed to decode; they are still
	// present in Listings as unclassifiable entries.
	Malformed int
}

// Client is the job search client.
type Client struct {
	httpClient *http.Client
	pacer      *ratelimit.Pacer
	throttle   *ratelimit.Tracker
	endpoint   string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the search backend, e.g. "https://bff-general.albamon.com".
	BaseURL string

	// SearchPath is appended to BaseURL (default "/recruit/search").
	SearchPath string

	// User-Agent header (REQUIRED)
	UserAgent string

	// Origin header sent with every request (optional).
	Origin string

	// Cookie header, only sent when set. Never hardcode this; load it
	// through config.ResolveSecret.
	Cookie string

	Timeout time.Duration

	// Pacing (RequestsPerSecond <= 0 disables it)
	RequestsPerSecond float64
	Burst             int

	// Condition is the filter criteria sent with every query. Nil means
	// DefaultCondition().
	Condition map[string]any

	// Redis enables the shared throttle tracker when set.
	Redis *redis.Client

	// MaxThrottleWait bounds how long a fetch waits for a shared cooldown
	// before failing with ErrThrottled. 0 waits as long as ctx allows.
	MaxThrottleWait time.Duration

	// MaxResponseBytes caps the decoded response body.
	MaxResponseBytes int64
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:           "https://bff-general.albamon.com",
		SearchPath:        "/recruit/search",
		UserAgent:         userAgent,
		Origin:            "https://www.albamon.com",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 5,
		Burst:             1,
		MaxThrottleWait:   2 * time.Minute,
		MaxResponseBytes:  32 << 20,
	}
}

// New creates a new search client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.SearchPath == "" {
		cfg.SearchPath = "/recruit/search"
	}
	if cfg.Condition == nil {
		cfg.Condition = DefaultCondition()
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = 32 << 20
	}

	logger := logging.NewLogger("search-client")

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		pacer:    ratelimit.NewPacer(cfg.RequestsPerSecond, cfg.Burst),
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.SearchPath, "/"),
		config:   cfg,
		logger:   logger,
	}
	if cfg.Redis != nil {
		c.throttle = ratelimit.NewTracker(cfg.Redis, logger)
	}
	return c, nil
}

// FetchPage fetches one page of search results. It waits for the pacer and
// any shared cooldown, sends a single request, and never retries; wrap the
// client in a Retrier for that.
func (c *Client) FetchPage(ctx context.Context, q Query) (*PageResult, error) {
	q = q.normalized()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	period := string(q.Period)
	startTime := time.Now()
	defer func() {
		searchRequestDuration.WithLabelValues(period).Observe(time.Since(startTime).Seconds())
	}()

	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	if c.throttle != nil {
		if err := c.throttle.Wait(ctx, c.config.MaxThrottleWait); err != nil {
			if errors.Is(err, ratelimit.ErrCooldownTooLong) {
				searchRequestsTotal.WithLabelValues(period, "throttled").Inc()
				return nil, &SearchError{
					Page:       q.Page,
					ErrorClass: ErrorClassRateLimit,
					Message:    "shared cooldown active",
					Err:        fmt.Errorf("%w: %w", ErrThrottled, err),
				}
			}
			return nil, err
		}
	}

	body, err := buildRequestBody(q, c.config.Condition)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	c.logger.Debug().
		Int("page", q.Page).
		Int("size", q.PageSize).
		Str("period", period).
		Str("list_type", string(q.ListType)).
		Msg("Executing search request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn().Err(err).Int("page", q.Page).Msg("Search request failed")
		searchErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		searchRequestsTotal.WithLabelValues(period, "network_error").Inc()
		return nil, &SearchError{
			Page:       q.Page,
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	searchRequestsTotal.WithLabelValues(period, strconv.Itoa(resp.StatusCode)).Inc()

	if c.throttle != nil {
		if err := c.throttle.RecordResponse(ctx, resp.StatusCode, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record throttle state")
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classifyStatus(resp.StatusCode)
		searchErrorsTotal.WithLabelValues(string(class)).Inc()
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorExcerpt))

		c.logger.Warn().
			Int("page", q.Page).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Search request error")

		return nil, &SearchError{
			Page:       q.Page,
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    strings.TrimSpace(resp.Status + " " + string(excerpt)),
		}
	}

	var payload searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.config.MaxResponseBytes)).Decode(&payload); err != nil {
		searchErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &SearchError{
			Page:       q.Page,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode response",
			Err:        err,
		}
	}

	listings, malformed := listing.DecodePage(payload.Base.Normal.Collection)
	if malformed > 0 {
		searchMalformedRecordsTotal.Add(float64(malformed))
		c.logger.Warn().Int("page", q.Page).Int("malformed", malformed).Msg("Skipped malformed listing records")
	}

	result := &PageResult{
		Page:      q.Page,
		Listings:  listings,
		Malformed: malformed,
	}
	if tc := payload.Base.Pagination.TotalCount; tc != nil {
		result.TotalCount = *tc
		result.HasTotal = true
	}
	return result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if c.config.Origin != "" {
		req.Header.Set("Origin", c.config.Origin)
	}
	if c.config.Cookie != "" {
		req.Header.Set("Cookie", c.config.Cookie)
	}
}

type searchResponse struct {
	Base struct {
		Pagination struct {
			TotalCount *int `json:"totalCount"`
		} `json:"pagination"`
		Normal struct {
			Collection []json.RawMessage `json:"collection"`
		} `json:"normal"`
	} `json:"base"`
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
