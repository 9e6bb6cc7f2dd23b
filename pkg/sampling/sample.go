package sampling

import (
	"github.com/Sternrassler/job-site-monitor/pkg/listing"
)

const titleLimit = 40

// Sample is a condensed view of one listing for display.
type Sample struct {
	RecruitNo         listing.ID     `json:"recruit_no"`
	Title             string         `json:"title"`
	Source            listing.Source `json:"source"`
	Paid              bool           `json:"paid"`
	ProductCount      int            `json:"product_count"`
	PartnerARecruitNo int64          `json:"partner_a_recruit_no,omitempty"`
	ExternalSite      string         `json:"external_site,omitempty"`
}

// NewSample condenses l. Product counts are reported for native listings only.
func NewSample(l listing.Listing) Sample {
	s := Sample{
		RecruitNo:         l.RecruitNo,
		Title:             truncate(l.Title, titleLimit),
		Source:            l.Source(),
		Paid:              l.IsPaid(),
		PartnerARecruitNo: l.JobkoreaRecruitNo,
		ExternalSite:      l.ExternalRecruitSite,
	}
	if s.Source == listing.SourceNative {
		s.ProductCount = l.ProductCount()
	}
	return s
}

// Samples condenses the first n listings.
func Samples(listings []listing.Listing, n int) []Sample {
	n = min(n, len(listings))
	out := make([]Sample, 0, n)
	for _, l := range listings[:n] {
		out = append(out, NewSample(l))
	}
	return out
}

// truncate cuts s to limit runes and marks the cut with "...".
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
