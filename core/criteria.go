package core

import (
	"fmt"
)

// Condition types supported by asset filters
const (
	ConditionEq   = "eq"
	ConditionNeq  = "neq"
	ConditionIn   = "in"
	ConditionLike = "like"
	ConditionGt   = "gt"
	ConditionLt   = "lt"
)

const (
	SortASC  = "ASC"
	SortDESC = "DESC"
)

type Filter struct {
	Field     string
	Value     any
	Condition string // Empty means ConditionEq
}

type SortOrder struct {
	Field     string
	Direction string
}

// SearchCriteria describes a bounded, filtered and ordered search.
// All filters must match. Zero PageSize means no limit.
type SearchCriteria struct {
	Words       string
	Filters     []Filter
	SortOrders  []SortOrder
	PageSize    int
	CurrentPage int // 1-based, zero is treated as the first page
}

func NewSearchCriteria() *SearchCriteria {
	return &SearchCriteria{}
}

func (c *SearchCriteria) AddFilter(field string, value any, condition string) *SearchCriteria {
	c.Filters = append(c.Filters, Filter{Field: field, Value: value, Condition: condition})
	return c
}

func (c *SearchCriteria) AddSortOrder(field, direction string) *SearchCriteria {
	c.SortOrders = append(c.SortOrders, SortOrder{Field: field, Direction: direction})
	return c
}

func (c *SearchCriteria) SetPage(page, pageSize int) *SearchCriteria {
	c.CurrentPage = page
	c.PageSize = pageSize
	return c
}

// Offset is the number of items skipped before the current page.
func (c *SearchCriteria) Offset() int {
	if c.PageSize <= 0 || c.CurrentPage <= 1 {
		return 0
	}
	return (c.CurrentPage - 1) * c.PageSize
}

// FilterValue returns the value of the first equality filter on field.
func (c *SearchCriteria) FilterValue(field string) (any, bool) {
	for _, f := range c.Filters {
		if f.Field == field && (f.Condition == "" || f.Condition == ConditionEq) {
			return f.Value, true
		}
	}
	return nil, false
}

func (f Filter) ConditionType() string {
	if f.Condition == "" {
		return ConditionEq
	}
	return f.Condition
}

func (f Filter) Validate() error {
	switch f.ConditionType() {
	case ConditionEq, ConditionNeq, ConditionLike, ConditionGt, ConditionLt:
		return nil
	case ConditionIn:
		if _, ok := f.Value.([]int64); ok {
			return nil
		}
		if _, ok := f.Value.([]string); ok {
			return nil
		}
		return fmt.Errorf("%w: filter %q expects a []int64 or []string value", ErrInvalidArgument, f.Field)
	default:
		return fmt.Errorf("%w: unsupported condition %q", ErrInvalidArgument, f.Condition)
	}
}
