package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// SearchPath is the path the mock serves search requests on.
const SearchPath = "/recruit/search"

// MockResponse defines a canned response served instead of the dataset.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is the decoded body of a search request the mock received.
type RecordedRequest struct {
	Page     int
	Size     int
	Period   string
	ListType string
	SortType string
	Region   string
	Header   http.Header
}

type searchRequestBody struct {
	Pagination struct {
		Page int `json:"page"`
		Size int `json:"size"`
	} `json:"pagination"`
	RecruitListType  string `json:"recruitListType"`
	SortTabCondition struct {
		SearchPeriodType string `json:"searchPeriodType"`
		SortType         string `json:"sortType"`
	} `json:"sortTabCondition"`
	Condition struct {
		Areas []struct {
			Si string `json:"si"`
		} `json:"areas"`
	} `json:"condition"`
}

// MockSearchAPI is a configurable mock job search server. It serves pages
// cut from a Dataset per period type (and optionally per region).
type MockSearchAPI struct {
	server *httptest.Server

	mu       sync.RWMutex
	datasets map[string]Dataset
	regions  map[string]Dataset
	failures map[int]int
	queue    []MockResponse
	requests []RecordedRequest
}

// NewMockSearchAPI creates and starts a mock search server.
func NewMockSearchAPI() *MockSearchAPI {
	mock := &MockSearchAPI{
		datasets: make(map[string]Dataset),
		regions:  make(map[string]Dataset),
		failures: make(map[int]int),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockSearchAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSearchAPI) Close() {
	m.server.Close()
}

// SetDataset sets the dataset served for a period type ("ALL", "TODAY").
func (m *MockSearchAPI) SetDataset(period string, d Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[period] = d
}

// SetRegionDataset sets the dataset served for area queries on a region code.
func (m *MockSearchAPI) SetRegionDataset(region string, d Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions[region] = d
}

// FailPage makes the next n requests for page fail with a 500.
// A negative n fails the page forever.
func (m *MockSearchAPI) FailPage(page, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[page] = n
}

// QueueResponse queues a canned response. Queued responses are served in
// order before any dataset page.
func (m *MockSearchAPI) QueueResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resp)
}

// Requests returns a copy of all recorded requests.
func (m *MockSearchAPI) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of search requests received.
func (m *MockSearchAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// RequestedPages returns the page numbers requested, in order.
func (m *MockSearchAPI) RequestedPages() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pages := make([]int, 0, len(m.requests))
	for _, r := range m.requests {
		pages = append(pages, r.Page)
	}
	return pages
}

// Reset clears recorded requests, failures and queued responses.
func (m *MockSearchAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.queue = nil
	m.failures = make(map[int]int)
}

func (m *MockSearchAPI) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != SearchPath {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	rec := RecordedRequest{
		Page:     body.Pagination.Page,
		Size:     body.Pagination.Size,
		Period:   body.SortTabCondition.SearchPeriodType,
		ListType: body.RecruitListType,
		SortType: body.SortTabCondition.SortType,
		Header:   r.Header.Clone(),
	}
	if len(body.Condition.Areas) > 0 {
		rec.Region = body.Condition.Areas[0].Si
	}

	m.mu.Lock()
	m.requests = append(m.requests, rec)
	var canned *MockResponse
	if len(m.queue) > 0 {
		canned = &m.queue[0]
		m.queue = m.queue[1:]
	}
	fail := false
	if n, ok := m.failures[rec.Page]; ok && n != 0 {
		fail = true
		if n > 0 {
			m.failures[rec.Page] = n - 1
		}
	}
	var d Dataset
	if rec.ListType == "AREA" {
		d = m.regions[rec.Region]
	} else {
		d = m.datasets[rec.Period]
	}
	m.mu.Unlock()

	if canned != nil {
		writeCanned(w, *canned)
		return
	}
	if fail {
		writeCanned(w, NewServerErrorResponse())
		return
	}

	writeJSON(w, http.StatusOK, SearchPayload(d.Total(), d.Page(rec.Page, rec.Size)))
}

// SearchPayload builds a search response body in the upstream shape.
func SearchPayload(total int, collection []json.RawMessage) map[string]any {
	return map[string]any{
		"base": map[string]any{
			"pagination": map[string]any{"totalCount": total},
			"normal":     map[string]any{"collection": collection},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeCanned(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Too many requests"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
	if retryAfter != "" {
		resp.Headers["Retry-After"] = retryAfter
	}
	return resp
}

// NewBadRequestResponse creates a 400 Bad Request response.
func NewBadRequestResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error": "Bad request"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>maintenance</html>`,
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}
