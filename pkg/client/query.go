package client

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Period is the search period filter sent as searchPeriodType.
type Period string

const (
	// PeriodAll searches every open listing.
	PeriodAll Period = "ALL"

	// PeriodToday searches listings posted today.
	PeriodToday Period = "TODAY"
)

// Periods lists the supported period filters.
var Periods = []Period{PeriodAll, PeriodToday}

// ParsePeriod parses a period name case-insensitively.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown period %q", ErrInvalidQuery, s)
	}
	return p, nil
}

// Valid reports whether p is a supported period.
func (p Period) Valid() bool {
	return p == PeriodAll || p == PeriodToday
}

// ListType selects the listing mode (recruitListType).
type ListType string

const (
	ListTypeSearch ListType = "SEARCH"
	ListTypeArea   ListType = "AREA"
)

// Sort orders accepted by the upstream.
const (
	SortRelation = "RELATION"
	SortDefault  = "DEFAULT"
)

// DefaultPageSize is the page size used for boundary searches.
const DefaultPageSize = 200

// Query identifies one page of search results.
type Query struct {
	Page     int
	PageSize int
	Period   Period
	ListType ListType
	SortType string

	// Region is the area code for AREA queries (e.g. "A000").
	Region string
}

// WithPage returns a copy of q for another page.
func (q Query) WithPage(page int) Query {
	q.Page = page
	return q
}

// normalized fills the list and sort defaults.
// Area queries sort by DEFAULT, keyword searches by RELATION.
func (q Query) normalized() Query {
	if q.PageSize == 0 {
		q.PageSize = DefaultPageSize
	}
	if q.ListType == "" {
		if q.Region != "" {
			q.ListType = ListTypeArea
		} else {
			q.ListType = ListTypeSearch
		}
	}
	if q.SortType == "" {
		if q.ListType == ListTypeArea {
			q.SortType = SortDefault
		} else {
			q.SortType = SortRelation
		}
	}
	return q
}

// Validate checks the query for values the upstream would reject.
func (q Query) Validate() error {
	switch {
	case q.Page < 1:
		return fmt.Errorf("%w: page must be >= 1 (got %d)", ErrInvalidQuery, q.Page)
	case q.PageSize < 1:
		return fmt.Errorf("%w: page size must be >= 1 (got %d)", ErrInvalidQuery, q.PageSize)
	case !q.Period.Valid():
		return fmt.Errorf("%w: unknown period %q", ErrInvalidQuery, q.Period)
	case q.ListType != ListTypeSearch && q.ListType != ListTypeArea:
		return fmt.Errorf("%w: unknown list type %q", ErrInvalidQuery, q.ListType)
	case q.ListType == ListTypeArea && q.Region == "":
		return fmt.Errorf("%w: area query needs a region", ErrInvalidQuery)
	}
	return nil
}

// DefaultCondition returns the empty filter criteria the search page sends
// when no filters are selected.
func DefaultCondition() map[string]any {
	return map[string]any{
		"areas":               []any{},
		"employmentTypes":     []any{},
		"excludeKeywords":     []any{},
		"excludeBar":          false,
		"excludeNegoAge":      false,
		"excludeNegoWorkWeek": false,
		"excludeNegoWorkTime": false,
		"excludeNegoGender":   false,
		"parts":               []any{},
		"similarDongJoin":     false,
		"workDayTypes":        []any{},
		"workPeriodTypes":     []any{},
		"workTimeTypes":       []any{},
		"workWeekTypes":       []any{},
		"endWorkTime":         "",
		"startWorkTime":       "",
		"includeKeyword":      "",
		"excludeKeywordList":  []any{},
		"age":                 0,
		"genderType":          "NONE",
		"moreThanEducation":   false,
		"educationType":       "ALL",
	}
}

type searchRequest struct {
	Pagination struct {
		Page int `json:"page"`
		Size int `json:"size"`
	} `json:"pagination"`
	RecruitListType  ListType `json:"recruitListType"`
	SortTabCondition struct {
		SearchPeriodType Period `json:"searchPeriodType"`
		SortType         string `json:"sortType"`
	} `json:"sortTabCondition"`
	Condition          map[string]any `json:"condition"`
	ExtensionCondition map[string]any `json:"extensionCondition,omitempty"`
}

// buildRequestBody renders the POST body for q. The base condition is
// copied, never mutated.
func buildRequestBody(q Query, base map[string]any) ([]byte, error) {
	condition := make(map[string]any, len(base)+2)
	for k, v := range base {
		condition[k] = v
	}

	var req searchRequest
	req.Pagination.Page = q.Page
	req.Pagination.Size = q.PageSize
	req.RecruitListType = q.ListType
	req.SortTabCondition.SearchPeriodType = q.Period
	req.SortTabCondition.SortType = q.SortType

	if q.ListType == ListTypeArea {
		condition["areas"] = []any{map[string]any{"si": q.Region, "gu": "", "dong": ""}}
		condition["selectedArea"] = map[string]any{"si": "", "gu": "", "dong": ""}
	} else {
		req.ExtensionCondition = map[string]any{
			"search": map[string]any{
				"keyword":                   "",
				"featureCode":               "",
				"disableExceptedConditions": []any{},
			},
		}
	}
	req.Condition = condition

	return json.Marshal(req)
}
