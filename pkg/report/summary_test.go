package report

import (
	"strings"
	"testing"

	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/estimator"
	"github.com/Sternrassler/job-site-monitor/pkg/listing"
	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := map[int]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		2010:     "2,010",
		123456:   "123,456",
		1234567:  "1,234,567",
		-1234567: "-1,234,567",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatNumber(in), "FormatNumber(%d)", in)
	}
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, "0.0", Percentage(5, 0))
	assert.Equal(t, "77.3", Percentage(2010, 2600))
	assert.Equal(t, "100.0", Percentage(3, 3))
	assert.Equal(t, "33.3", Percentage(1, 3))
}

func TestSummary(t *testing.T) {
	all := &estimator.Result{
		Period:        client.PeriodAll,
		TotalCount:    2600,
		NativeCount:   2010,
		PartnerACount: 360,
		PartnerBCount: 230,
		PartnerARange: &estimator.Range{Source: listing.SourcePartnerA, StartPage: 9, EndPage: 11},
		PartnerBRange: &estimator.Range{Source: listing.SourcePartnerB, StartPage: 12, EndPage: 13},
		RequestCount:  8,
	}
	today := &estimator.Result{Period: client.PeriodToday}
	rep := New(all, today, "")

	out := Summary(rep)
	assert.Contains(t, out, rep.ReportDate)
	assert.Contains(t, out, "All listings: 2,600")
	assert.Contains(t, out, "2,010 (77.3%)")
	assert.Contains(t, out, "partner A pages: 9-11")
	assert.Contains(t, out, "partner B pages: 12-13")
	assert.Contains(t, out, "requests: 8")
	assert.Contains(t, out, "Today: 0\n  no listings")
	assert.NotContains(t, out, "warning")

	all.NativeClamped = true
	assert.True(t, strings.Contains(ResultSummary("All", all), "native clamped"))
	assert.Contains(t, ResultSummary("Today", nil), "unavailable")
}
