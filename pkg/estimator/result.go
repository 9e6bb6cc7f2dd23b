package estimator

import (
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/listing"
)

// Phase is a step of an estimation run.
type Phase string

const (
	PhaseInit         Phase = "INIT"
	PhaseLocateBEnd   Phase = "LOCATE_B_END"
	PhaseLocateBStart Phase = "LOCATE_B_START"
	PhaseLocateAEnd   Phase = "LOCATE_A_END"
	PhaseLocateAStart Phase = "LOCATE_A_START"
	PhaseAggregate    Phase = "AGGREGATE"
	PhaseDone         Phase = "DONE"
)

// Range is the contiguous inclusive page run of one source, with the
// observed source counts on its two boundary pages.
type Range struct {
	Source     listing.Source `json:"source"`
	StartPage  int            `json:"start_page"`
	EndPage    int            `json:"end_page"`
	StartCount int            `json:"start_count"`
	EndCount   int            `json:"end_count"`
}

// Pages returns the number of pages in the range.
func (r Range) Pages() int {
	return r.EndPage - r.StartPage + 1
}

// Count converts the range into a listing count. Interior pages count as
// full pages of pageSize.
func (r Range) Count(pageSize int) int {
	if r.StartPage == r.EndPage {
		// a walk that never moved recorded only the end boundary
		if r.StartCount > 0 {
			return r.StartCount
		}
		return r.EndCount
	}
	return r.StartCount + r.EndCount + pageSize*(r.EndPage-r.StartPage-1)
}

// PerPage returns the count attributed to each page of the range.
func (r Range) PerPage(pageSize int) map[int]int {
	out := make(map[int]int, r.Pages())
	if r.StartPage == r.EndPage {
		out[r.StartPage] = r.Count(pageSize)
		return out
	}
	for page := r.StartPage; page <= r.EndPage; page++ {
		switch page {
		case r.StartPage:
			out[page] = r.StartCount
		case r.EndPage:
			out[page] = r.EndCount
		default:
			out[page] = pageSize
		}
	}
	return out
}

// Result is the outcome of one estimation run.
type Result struct {
	Period        client.Period `json:"period"`
	TotalCount    int           `json:"total_count"`
	NativeCount   int           `json:"native_count"`
	PartnerACount int           `json:"partner_a_count"`
	PartnerBCount int           `json:"partner_b_count"`

	PartnerARange *Range `json:"partner_a_range,omitempty"`
	PartnerBRange *Range `json:"partner_b_range,omitempty"`

	// PerPageCounts holds the per-page counts behind the partner totals.
	PerPageCounts map[listing.Source]map[int]int `json:"per_page_counts"`

	PageSize     int `json:"page_size"`
	MaxPage      int `json:"max_page"`
	RequestCount int `json:"request_count"`
	FailedProbes int `json:"failed_probes"`

	// NativeClamped is set when partner counts exceeded the total and the
	// native count was floored at zero.
	NativeClamped bool `json:"native_clamped,omitempty"`

	ElapsedSeconds float64   `json:"elapsed_seconds"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Count returns the count for one source.
func (r *Result) Count(src listing.Source) int {
	switch src {
	case listing.SourcePartnerA:
		return r.PartnerACount
	case listing.SourcePartnerB:
		return r.PartnerBCount
	default:
		return r.NativeCount
	}
}

// Range returns the discovered range for a partner source, or nil.
func (r *Result) Range(src listing.Source) *Range {
	switch src {
	case listing.SourcePartnerA:
		return r.PartnerARange
	case listing.SourcePartnerB:
		return r.PartnerBRange
	default:
		return nil
	}
}
