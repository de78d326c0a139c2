package audit

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidFilter is returned for malformed query, pagination or window input.
var ErrInvalidFilter = errors.New("invalid audit filter")

// Filter selects events. Zero-valued fields match everything; all set fields
// must match.
type Filter struct {
	ActorID       string
	ApplicationID string
	Actions       []Action
	Resources     []string
	ResourceID    string
	IP            string
	// From is inclusive, To is exclusive.
	From time.Time
	To   time.Time
}

// Validate rejects unknown actions and inverted time ranges.
func (f Filter) Validate() error {
	for _, a := range f.Actions {
		if !a.Valid() {
			return fmt.Errorf("%w: unknown action %q", ErrInvalidFilter, a)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return fmt.Errorf("%w: from is after to", ErrInvalidFilter)
	}
	return nil
}

// Matches reports whether e satisfies every predicate of f.
func (f Filter) Matches(e Event) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.ApplicationID != "" && e.ApplicationID != f.ApplicationID {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	if f.IP != "" && e.IP != f.IP {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.Timestamp.Before(f.To) {
		return false
	}
	if len(f.Actions) > 0 && !contains(f.Actions, e.Action) {
		return false
	}
	if len(f.Resources) > 0 && !contains(f.Resources, e.Resource) {
		return false
	}
	return true
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// SortField names a sortable column.
type SortField string

const (
	SortTimestamp SortField = "timestamp"
	SortAction    SortField = "action"
	SortResource  SortField = "resource"
)

// Sort orders query results.
type Sort struct {
	Field SortField
	Desc  bool
}

// DefaultSort is timestamp, newest first.
var DefaultSort = Sort{Field: SortTimestamp, Desc: true}

// Normalize maps any field outside the whitelist to [DefaultSort].
func (s Sort) Normalize() Sort {
	switch s.Field {
	case SortTimestamp, SortAction, SortResource:
		return s
	default:
		return DefaultSort
	}
}

// Page selects a 1-based page. Zero values select the first page and the
// default size.
type Page struct {
	Number int
	Size   int
}

func (p Page) normalize(limits Limits) (Page, error) {
	if p.Number < 0 || p.Size < 0 {
		return Page{}, fmt.Errorf("%w: negative page or size", ErrInvalidFilter)
	}
	if p.Number == 0 {
		p.Number = 1
	}
	switch {
	case p.Size == 0:
		p.Size = limits.DefaultPageSize
	case p.Size > limits.MaxPageSize:
		p.Size = limits.MaxPageSize
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return Page{}, fmt.Errorf("%w: page %d out of range", ErrInvalidFilter, p.Number)
	}
	return p, nil
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}
