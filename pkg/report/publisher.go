package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var reportPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "jsm_report_publish_total",
	Help: "Report publish attempts by outcome",
}, []string{"outcome"})

// ErrPublisherNotConfigured is returned when the endpoint URL or token is missing.
var ErrPublisherNotConfigured = errors.New("report publisher not configured")

const maxErrorBody = 512

// PublishError is returned for a non-2xx response from the report endpoint.
type PublishError struct {
	StatusCode int
	Body       string
}

func (e *PublishError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("publish report: status %d", e.StatusCode)
	}
	return fmt.Sprintf("publish report: status %d: %s", e.StatusCode, e.Body)
}

// Publisher posts reports to an HTTP endpoint with bearer authentication.
type Publisher struct {
	url        string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewPublisher creates a publisher. An empty url or token is allowed here;
// Publish reports ErrPublisherNotConfigured.
func NewPublisher(url, token string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Publisher{
		url:        strings.TrimSpace(url),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewLogger("report"),
	}
}

// Configured reports whether both URL and token are set.
func (p *Publisher) Configured() bool {
	return p.url != "" && p.token != ""
}

// Publish sends the report as JSON.
func (p *Publisher) Publish(ctx context.Context, rep *Report) error {
	if !p.Configured() {
		reportPublishTotal.WithLabelValues("not_configured").Inc()
		return ErrPublisherNotConfigured
	}
	if rep == nil {
		return fmt.Errorf("report cannot be nil")
	}

	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		reportPublishTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("publish report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		reportPublishTotal.WithLabelValues("error").Inc()
		return &PublishError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	reportPublishTotal.WithLabelValues("ok").Inc()
	p.logger.Info().
		Str("report_id", rep.ID.String()).
		Int("status", resp.StatusCode).
		Msg("Report published")
	return nil
}
