package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps events in process memory. It is meant for development
// and tests; it has the same query semantics as [SQLStore].
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Insert(_ context.Context, e Event) error {
	m.mu.Lock()
	m.events = append(m.events, e.clone())
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) matching(f Filter) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		if f.Matches(e) {
			out = append(out, e.clone())
		}
	}
	return out
}

func (m *MemoryStore) Find(_ context.Context, f Filter, s Sort, limit, offset int) ([]Event, int64, error) {
	events := m.matching(f)
	sortEvents(events, s.Normalize())

	total := int64(len(events))
	if offset < 0 || limit < 0 {
		return nil, 0, fmt.Errorf("%w: negative limit or offset", ErrInvalidFilter)
	}
	if offset >= len(events) {
		return []Event{}, total, nil
	}
	events = events[offset:]
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events, total, nil
}

func (m *MemoryStore) Count(_ context.Context, f Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, e := range m.events {
		if f.Matches(e) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Top(_ context.Context, dim Dimension, f Filter, k int) ([]Count, error) {
	counts := map[string]int64{}
	for _, e := range m.matching(f) {
		var key string
		switch dim {
		case DimensionAction:
			key = string(e.Action)
		case DimensionActor:
			key = e.ActorID
		case DimensionApplication:
			key = e.ApplicationID
		}
		if key != "" {
			counts[key]++
		}
	}
	return rank(counts, k), nil
}

func (m *MemoryStore) Daily(_ context.Context, f Filter) ([]DayCount, error) {
	counts := map[time.Time]int64{}
	for _, e := range m.matching(f) {
		counts[truncateDay(e.Timestamp)]++
	}

	out := make([]DayCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, DayCount{Day: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func rank(counts map[string]int64, k int) []Count {
	out := make([]Count, 0, len(counts))
	for key, n := range counts {
		out = append(out, Count{Key: key, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// sortEvents orders by s with id as the tie breaker in the same direction.
func sortEvents(events []Event, s Sort) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		var c int
		switch s.Field {
		case SortAction:
			c = strings.Compare(string(a.Action), string(b.Action))
		case SortResource:
			c = strings.Compare(a.Resource, b.Resource)
		default:
			c = a.Timestamp.Compare(b.Timestamp)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
