// Package report assembles, summarizes and publishes the daily source report.
package report

import (
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/estimator"
	"github.com/google/uuid"
)

// DefaultSource tags reports produced by this tool.
const DefaultSource = "job-site-monitor"

// DateLayout is the format of Report.ReportDate.
const DateLayout = "2006-01-02"

// Report pairs the ALL and TODAY estimates of one run.
type Report struct {
	ID          uuid.UUID         `json:"id"`
	ReportDate  string            `json:"report_date"`
	All         *estimator.Result `json:"all_result"`
	Today       *estimator.Result `json:"today_result"`
	GeneratedAt time.Time         `json:"generated_at"`
	Source      string            `json:"source"`
}

// New creates a report dated now in the local time zone.
func New(all, today *estimator.Result, source string) *Report {
	if source == "" {
		source = DefaultSource
	}
	now := time.Now()
	return &Report{
		ID:          uuid.New(),
		ReportDate:  now.Format(DateLayout),
		All:         all,
		Today:       today,
		GeneratedAt: now.UTC(),
		Source:      source,
	}
}

// Result returns the estimate for period, or nil.
func (r *Report) Result(period client.Period) *estimator.Result {
	switch period {
	case client.PeriodAll:
		return r.All
	case client.PeriodToday:
		return r.Today
	default:
		return nil
	}
}
