package audit

import (
	"context"
	"time"
)

// Dimension is a column that Aggregate ranks by.
type Dimension string

const (
	DimensionAction      Dimension = "action"
	DimensionActor       Dimension = "actor"
	DimensionApplication Dimension = "application"
)

// Count is one ranked entry of a top-K list.
type Count struct {
	Key   string
	Count int64
}

// DayCount is the number of events on one UTC day.
type DayCount struct {
	Day   time.Time
	Count int64
}

// Store persists events and answers the primitive queries the [Pipeline]
// composes. Implementations must be safe for concurrent use.
type Store interface {
	Insert(ctx context.Context, e Event) error
	// Find returns events matching f ordered by s, the page bounded by limit and
	// offset, and the total number of matches ignoring limit and offset.
	Find(ctx context.Context, f Filter, s Sort, limit, offset int) ([]Event, int64, error)
	Count(ctx context.Context, f Filter) (int64, error)
	// Top ranks the non-empty values of dim among events matching f, most
	// frequent first, ties by key ascending.
	Top(ctx context.Context, dim Dimension, f Filter, k int) ([]Count, error)
	// Daily counts events matching f per UTC day, oldest first. Days without
	// events may be omitted.
	Daily(ctx context.Context, f Filter) ([]DayCount, error)
}
