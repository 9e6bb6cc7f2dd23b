package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/estimator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() *Report {
	res := fixedResults()
	return New(res["ALL"], res["TODAY"], "")
}

func TestPublisher_Publish(t *testing.T) {
	var gotAuth, gotType string
	var body map[string]json.RawMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	rep := testReport()
	p := NewPublisher(server.URL, "s3cret", time.Second)
	require.True(t, p.Configured())
	require.NoError(t, p.Publish(context.Background(), rep))

	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.Equal(t, "application/json", gotType)
	for _, field := range []string{"id", "report_date", "all_result", "today_result", "generated_at", "source"} {
		assert.Contains(t, body, field)
	}

	var all estimator.Result
	require.NoError(t, json.Unmarshal(body["all_result"], &all))
	assert.Equal(t, 2600, all.TotalCount)
}

func TestPublisher_NotConfigured(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		token string
	}{
		{name: "missing url", token: "t"},
		{name: "missing token", url: "http://example.invalid"},
		{name: "blank token", url: "http://example.invalid", token: "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPublisher(tt.url, tt.token, 0)
			assert.False(t, p.Configured())
			assert.ErrorIs(t, p.Publish(context.Background(), testReport()), ErrPublisherNotConfigured)
		})
	}
}

func TestPublisher_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer server.Close()

	err := NewPublisher(server.URL, "wrong", time.Second).Publish(context.Background(), testReport())
	require.Error(t, err)

	var pubErr *PublishError
	require.True(t, errors.As(err, &pubErr))
	assert.Equal(t, http.StatusUnauthorized, pubErr.StatusCode)
	assert.Equal(t, "bad token", pubErr.Body)
	assert.Contains(t, err.Error(), "401")
}

func TestPublisher_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewPublisher(server.URL, "t", time.Second).Publish(ctx, testReport())
	assert.ErrorIs(t, err, context.Canceled)
}
