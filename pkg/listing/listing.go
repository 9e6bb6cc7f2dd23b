// Package listing models job listings returned by the search API and classifies
// them by originating source.
package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Source identifies where a listing originated.
type Source string

const (
	// SourceNative is a listing posted directly on the platform.
	SourceNative Source = "NATIVE"

	// SourcePartnerA is a listing syndicated from partner A (carries a partner A recruit number).
	SourcePartnerA Source = "PARTNER_A"

	// SourcePartnerB is a listing syndicated from partner B (external site code "WN").
	SourcePartnerB Source = "PARTNER_B"
)

// PartnerBSiteCode is the externalRecruitSite value that marks partner B listings.
const PartnerBSiteCode = "WN"

// Sources lists all sources in page order: native pages first, partner B last.
var Sources = []Source{SourceNative, SourcePartnerA, SourcePartnerB}

// ID is an opaque listing identifier. The API sends it as a number or a string.
type ID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	*id = ID(data)
	return nil
}

// PaidService holds the paid product sub-record of a listing.
type PaidService struct {
	TotalProductCount int `json:"totalProductCount"`
}

// Listing is an immutable snapshot of one search result.
type Listing struct {
	RecruitNo           ID           `json:"recruitNo"`
	Title               string       `json:"recruitTitle"`
	ExternalRecruitSite string       `json:"externalRecruitSite,omitempty"`
	JobkoreaRecruitNo   int64        `json:"jobkoreaRecruitNo"`
	PaidService         *PaidService `json:"paidService,omitempty"`

	// Raw is the original record, kept for passthrough of fields this package ignores.
	Raw json.RawMessage `json:"-"`
}

// wireListing mirrors Listing with every field left undecoded so a single bad
// field cannot reject the whole record.
type wireListing struct {
	RecruitNo           json.RawMessage `json:"recruitNo"`
	RecruitTitle        json.RawMessage `json:"recruitTitle"`
	ExternalRecruitSite json.RawMessage `json:"externalRecruitSite"`
	JobkoreaRecruitNo   json.RawMessage `json:"jobkoreaRecruitNo"`
	PaidService         json.RawMessage `json:"paidService"`
}

// UnmarshalJSON decodes a listing leniently. Only a payload that is not a JSON
// object is an error; unusable fields fall back to their zero values.
func (l *Listing) UnmarshalJSON(data []byte) error {
	var w wireListing
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode listing: %w", err)
	}

	var out Listing
	out.Raw = append(json.RawMessage(nil), data...)

	if len(w.RecruitNo) > 0 {
		_ = out.RecruitNo.UnmarshalJSON(w.RecruitNo)
	}
	out.Title = lenientString(w.RecruitTitle)
	out.ExternalRecruitSite = strings.TrimSpace(lenientString(w.ExternalRecruitSite))
	out.JobkoreaRecruitNo = lenientInt(w.JobkoreaRecruitNo)

	if len(w.PaidService) > 0 && !bytes.Equal(bytes.TrimSpace(w.PaidService), []byte("null")) {
		var ps struct {
			TotalProductCount json.RawMessage `json:"totalProductCount"`
		}
		if err := json.Unmarshal(w.PaidService, &ps); err == nil {
			n := lenientInt(ps.TotalProductCount)
			if n < 0 {
				n = 0
			}
			out.PaidService = &PaidService{TotalProductCount: int(n)}
		}
	}

	*l = out
	return nil
}

// Source classifies the listing. Partner A wins over partner B when both
// markers are present.
func (l Listing) Source() Source {
	switch {
	case l.JobkoreaRecruitNo != 0:
		return SourcePartnerA
	case l.ExternalRecruitSite == PartnerBSiteCode:
		return SourcePartnerB
	default:
		return SourceNative
	}
}

// ProductCount returns the number of paid products attached to the listing.
func (l Listing) ProductCount() int {
	if l.PaidService == nil {
		return 0
	}
	return l.PaidService.TotalProductCount
}

// IsPaid reports whether a native listing carries paid products.
// Partner listings are never paid.
func (l Listing) IsPaid() bool {
	return l.Source() == SourceNative && l.ProductCount() > 0
}

// DecodePage decodes a page of raw records. A record that cannot be decoded at
// all becomes an empty native listing; the number of such records is returned.
func DecodePage(raw []json.RawMessage) ([]Listing, int) {
	listings := make([]Listing, 0, len(raw))
	malformed := 0
	for _, r := range raw {
		var l Listing
		if err := json.Unmarshal(r, &l); err != nil {
			malformed++
			l = Listing{Raw: append(json.RawMessage(nil), r...)}
		}
		listings = append(listings, l)
	}
	return listings, malformed
}

func lenientString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// lenientInt reads an integer sent as a number or a numeric string; anything
// else is 0.
func lenientInt(raw json.RawMessage) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		raw = []byte(strings.TrimSpace(s))
	}
	if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return int64(f)
	}
	return 0
}
