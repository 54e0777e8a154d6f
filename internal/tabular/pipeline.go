// Package tabular derives the visible rows of a table from a fetched snapshot.
//
// Every operation is a pure function of its arguments: inputs are never mutated and the
// same arguments always produce the same output. Filtering precedes sorting, which
// precedes pagination, so totals are always the filtered pre-pagination count.
package tabular

import (
	"slices"
	"strings"
)

// Direction is the sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Category names one value of a table's closed filter enumeration.
type Category string

// CategoryAll is the identity filter of every table.
const CategoryAll Category = "all"

// Compare is a three-way comparator: negative when a sorts before b, zero when equal.
type Compare[T any] func(a, b T) int

// Schema describes how a record type is searched, categorised and sorted.
type Schema[T any] struct {
	Name             string
	SearchFields     func(T) []string
	Categories       map[Category]func(T) bool
	SortKeys         map[string]Compare[T]
	DefaultSortKey   string
	DefaultDirection Direction
}

// Params are the view parameters of one table render.
type Params struct {
	Search    string
	Category  Category
	SortKey   string
	Direction Direction
	PageIndex int
	PageSize  int
}

// Page is the rendered slice plus the filtered total used for pagination controls.
type Page[T any] struct {
	Rows      []T `json:"rows"`
	Total     int `json:"total"`
	PageIndex int `json:"page"`
	PageSize  int `json:"page_size"`
}

// FilterBySearch keeps records where any search field contains term, ignoring case.
// An empty term keeps every record in its original order.
func (s Schema[T]) FilterBySearch(records []T, term string) []T {
	if term == "" || s.SearchFields == nil {
		return clone(records)
	}
	needle := strings.ToLower(term)
	out := make([]T, 0, len(records))
	for _, record := range records {
		for _, field := range s.SearchFields(record) {
			if strings.Contains(strings.ToLower(field), needle) {
				out = append(out, record)
				break
			}
		}
	}
	return out
}

// FilterByCategory keeps records matching the category predicate. "all" and the empty
// category are the identity; a category the schema does not define matches nothing.
func (s Schema[T]) FilterByCategory(records []T, category Category) []T {
	if category == "" || category == CategoryAll {
		return clone(records)
	}
	match, ok := s.Categories[category]
	if !ok {
		return []T{}
	}
	out := make([]T, 0, len(records))
	for _, record := range records {
		if match(record) {
			out = append(out, record)
		}
	}
	return out
}

// SortBy returns a sorted copy. The sort is stable in both directions: records with equal
// keys keep their input order. An unknown key returns the records in input order.
func (s Schema[T]) SortBy(records []T, key string, direction Direction) []T {
	out := clone(records)
	compare, ok := s.SortKeys[key]
	if !ok {
		return out
	}
	if direction == Desc {
		slices.SortStableFunc(out, func(a, b T) int { return compare(b, a) })
		return out
	}
	slices.SortStableFunc(out, compare)
	return out
}

// Filter applies search then category filtering and sorts the result. It is the
// pre-pagination collection that totals and exports are computed from.
func (s Schema[T]) Filter(records []T, params Params) []T {
	filtered := s.FilterByCategory(s.FilterBySearch(records, params.Search), params.Category)
	return s.SortBy(filtered, params.SortKey, params.Direction)
}

// Compose runs the whole pipeline: search, category, sort, paginate.
func (s Schema[T]) Compose(records []T, params Params) Page[T] {
	sorted := s.Filter(records, params)
	return Page[T]{
		Rows:      Paginate(sorted, params.PageIndex, params.PageSize),
		Total:     len(sorted),
		PageIndex: params.PageIndex,
		PageSize:  params.PageSize,
	}
}

// DefaultParams returns the first page sorted by the schema defaults.
func (s Schema[T]) DefaultParams(pageSize int) Params {
	return Params{
		Category:  CategoryAll,
		SortKey:   s.DefaultSortKey,
		Direction: s.DefaultDirection,
		PageSize:  pageSize,
	}
}

// Paginate returns records[pageIndex*pageSize : pageIndex*pageSize+pageSize], clipped to
// the collection. Out-of-range windows yield an empty slice.
func Paginate[T any](records []T, pageIndex, pageSize int) []T {
	if pageIndex < 0 || pageSize <= 0 || pageIndex > len(records)/pageSize {
		return []T{}
	}
	start := pageIndex * pageSize
	if start >= len(records) {
		return []T{}
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}
	return clone(records[start:end])
}

// Where keeps the records matching keep.
func Where[T any](records []T, keep func(T) bool) []T {
	out := make([]T, 0, len(records))
	for _, record := range records {
		if keep(record) {
			out = append(out, record)
		}
	}
	return out
}

func clone[T any](records []T) []T {
	out := make([]T, len(records))
	copy(out, records)
	return out
}
