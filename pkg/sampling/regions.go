package sampling

import (
	"fmt"
	"strings"
)

// Region is a top-level administrative area accepted by AREA queries.
type Region struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Regions lists the supported region codes.
var Regions = []Region{
	{Code: "A000", Name: "서울"},
	{Code: "H000", Name: "부산"},
	{Code: "I000", Name: "대구"},
	{Code: "C000", Name: "인천"},
	{Code: "D000", Name: "광주"},
	{Code: "E000", Name: "대전"},
	{Code: "F000", Name: "울산"},
	{Code: "G000", Name: "세종"},
	{Code: "B000", Name: "경기"},
	{Code: "J000", Name: "강원"},
	{Code: "K000", Name: "충북"},
	{Code: "L000", Name: "충남"},
	{Code: "M000", Name: "전북"},
	{Code: "N000", Name: "전남"},
	{Code: "O000", Name: "경북"},
	{Code: "P000", Name: "경남"},
	{Code: "Q000", Name: "제주"},
}

// LookupRegion resolves a region code, case-insensitively.
func LookupRegion(code string) (Region, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, r := range Regions {
		if r.Code == code {
			return r, nil
		}
	}
	return Region{}, fmt.Errorf("%w: %q", ErrUnknownRegion, code)
}
