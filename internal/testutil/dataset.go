// Package testutil provides testing utilities for the job-site-monitor packages.
package testutil

import (
	"encoding/json"
	"fmt"
)

// Dataset describes a synthetic listing collection laid out in page order:
// native listings first (paid ones leading), then partner A, then partner B.
type Dataset struct {
	Native     int
	NativePaid int
	PartnerA   int
	PartnerB   int
}

// Total returns the number of listings in the dataset.
func (d Dataset) Total() int {
	return d.Native + d.PartnerA + d.PartnerB
}

// MaxPage returns the number of pages at the given page size.
func (d Dataset) MaxPage(size int) int {
	if d.Total() == 0 || size <= 0 {
		return 0
	}
	return (d.Total() + size - 1) / size
}

// Record returns the JSON record for the listing at 0-based position i.
func (d Dataset) Record(i int) json.RawMessage {
	var rec map[string]any
	switch {
	case i < d.Native:
		products := 0
		if i < d.NativePaid {
			products = 1 + i%3
		}
		rec = map[string]any{
			"recruitNo":         i + 1,
			"recruitTitle":      fmt.Sprintf("Native listing %d", i+1),
			"jobkoreaRecruitNo": 0,
			"paidService":       map[string]any{"totalProductCount": products},
		}
	case i < d.Native+d.PartnerA:
		rec = map[string]any{
			"recruitNo":         i + 1,
			"recruitTitle":      fmt.Sprintf("Partner A listing %d", i+1),
			"jobkoreaRecruitNo": 500000 + i,
		}
	default:
		rec = map[string]any{
			"recruitNo":           i + 1,
			"recruitTitle":        fmt.Sprintf("Partner B listing %d", i+1),
			"jobkoreaRecruitNo":   0,
			"externalRecruitSite": "WN",
		}
	}
	b, _ := json.Marshal(rec)
	return b
}

// Page returns the raw records of a 1-based page.
func (d Dataset) Page(page, size int) []json.RawMessage {
	if page < 1 || size <= 0 {
		return []json.RawMessage{}
	}
	start := (page - 1) * size
	end := start + size
	if end > d.Total() {
		end = d.Total()
	}
	if start >= end {
		return []json.RawMessage{}
	}
	out := make([]json.RawMessage, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, d.Record(i))
	}
	return out
}

// PageMix returns how many listings of each source sit on a 1-based page.
func (d Dataset) PageMix(page, size int) PageMix {
	var mix PageMix
	start := (page - 1) * size
	for i := start; i < start+size && i < d.Total(); i++ {
		switch {
		case i < d.Native:
			mix.Native++
		case i < d.Native+d.PartnerA:
			mix.PartnerA++
		default:
			mix.PartnerB++
		}
	}
	return mix
}

// PageRange returns the first and last page holding listings at position
// [from, from+count). ok is false when count is 0.
func PageRange(from, count, size int) (start, end int, ok bool) {
	if count <= 0 {
		return 0, 0, false
	}
	return from/size + 1, (from+count-1)/size + 1, true
}

// PartnerARange returns the true partner A page range.
func (d Dataset) PartnerARange(size int) (start, end int, ok bool) {
	return PageRange(d.Native, d.PartnerA, size)
}

// PartnerBRange returns the true partner B page range.
func (d Dataset) PartnerBRange(size int) (start, end int, ok bool) {
	return PageRange(d.Native+d.PartnerA, d.PartnerB, size)
}

// PageMix is an explicit per-page source composition, used to script pages
// whose counts do not follow from a Dataset.
type PageMix struct {
	Native   int
	PartnerA int
	PartnerB int
}

// Total returns the number of listings on the page.
func (m PageMix) Total() int {
	return m.Native + m.PartnerA + m.PartnerB
}

// Records renders the page in source order.
func (m PageMix) Records() []json.RawMessage {
	d := Dataset{Native: m.Native, PartnerA: m.PartnerA, PartnerB: m.PartnerB}
	out := make([]json.RawMessage, 0, m.Total())
	for i := 0; i < m.Total(); i++ {
		out = append(out, d.Record(i))
	}
	return out
}
