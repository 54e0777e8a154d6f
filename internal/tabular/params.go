package tabular

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	monitoring "monitor-dashboard/internal/monitoring/domain"
)

// Page sizes offered by the tables.
const (
	DefaultPageSize = 10
	CompactPageSize = 5
)

// PageSizeOptions lists the accepted page sizes.
var PageSizeOptions = []int{5, 10, 25}

// ParseParams reads view parameters from a query string. categoryKey names the query key
// carrying the category ("status" for monitors, "severity" for alarms). Missing values
// fall back to the schema defaults and defaultPageSize.
func (s Schema[T]) ParseParams(query url.Values, categoryKey string, defaultPageSize int) (Params, error) {
	params := s.DefaultParams(defaultPageSize)
	params.Search = query.Get("search")

	if value := strings.ToLower(strings.TrimSpace(query.Get(categoryKey))); value != "" {
		category := Category(value)
		if category != CategoryAll {
			if _, ok := s.Categories[category]; !ok {
				return Params{}, monitoring.NewValidationError(categoryKey, "unknown value "+strconv.Quote(value))
			}
		}
		params.Category = category
	}

	if key := strings.TrimSpace(query.Get("sort")); key != "" {
		if _, ok := s.SortKeys[key]; !ok {
			return Params{}, monitoring.NewValidationError("sort", "unknown sort key "+strconv.Quote(key))
		}
		params.SortKey = key
	}

	if order := strings.ToLower(strings.TrimSpace(query.Get("order"))); order != "" {
		switch Direction(order) {
		case Asc, Desc:
			params.Direction = Direction(order)
		default:
			return Params{}, monitoring.NewValidationError("order", "must be asc or desc")
		}
	}

	if value := strings.TrimSpace(query.Get("page")); value != "" {
		page, err := strconv.Atoi(value)
		if err != nil || page < 0 {
			return Params{}, monitoring.NewValidationError("page", "must be a non-negative integer")
		}
		params.PageIndex = page
	}

	if value := strings.TrimSpace(query.Get("page_size")); value != "" {
		size, err := strconv.Atoi(value)
		if err != nil || !slices.Contains(PageSizeOptions, size) {
			return Params{}, monitoring.NewValidationError("page_size", "must be one of 5, 10, 25")
		}
		params.PageSize = size
	}
	return params, nil
}
