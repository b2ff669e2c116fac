package search

import (
	"fmt"
	"strings"
)

// FilterParams are the search API query options
type FilterParams struct {
	Query        string
	Site         string
	AcmID        string
	PrefName     string
	MinPointRate *int
	MinStayTime  *int
	MinCredit    *int
	MaxPrice     *int
	SortBy       string // field, optionally suffixed with ":asc" or ":desc"
	Limit        int64
	Offset       int64
}

var sortableFields = map[string]bool{
	"cheapest_price":  true,
	"credit":          true,
	"point_rate":      true,
	"stay_time":       true,
	"last_checked_at": true,
}

// Filter builds the Meilisearch filter expression
func (p FilterParams) Filter() string {
	var filters []string

	if p.Site != "" {
		filters = append(filters, fmt.Sprintf("site = %q", p.Site))
	}
	if p.AcmID != "" {
		filters = append(filters, fmt.Sprintf("acm_id = %q", p.AcmID))
	}
	if p.PrefName != "" {
		filters = append(filters, fmt.Sprintf("pref_name = %q", p.PrefName))
	}

	// Threshold filters
	if p.MinPointRate != nil {
		filters = append(filters, fmt.Sprintf("point_rate >= %d", *p.MinPointRate))
	}
	if p.MinStayTime != nil {
		filters = append(filters, fmt.Sprintf("stay_time >= %d", *p.MinStayTime))
	}
	if p.MinCredit != nil {
		filters = append(filters, fmt.Sprintf("credit >= %d", *p.MinCredit))
	}
	if p.MaxPrice != nil {
		filters = append(filters, fmt.Sprintf("cheapest_price <= %d", *p.MaxPrice))
	}

	return strings.Join(filters, " AND ")
}

// Sort returns the sort rule, or nil for relevance order. Unknown fields
// are ignored.
func (p FilterParams) Sort() []string {
	if p.SortBy == "" {
		return nil
	}

	field, dir, found := strings.Cut(p.SortBy, ":")
	if !found {
		dir = "asc"
	}
	if !sortableFields[field] || (dir != "asc" && dir != "desc") {
		return nil
	}
	return []string{field + ":" + dir}
}
