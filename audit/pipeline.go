package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Limits bounds pagination, aggregation and export.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
	MaxExportRows   int
	TopK            int
	MaxWindowDays   int
}

// DefaultLimits returns the production defaults.
func DefaultLimits() Limits {
	return Limits{
		DefaultPageSize: 50,
		MaxPageSize:     200,
		MaxExportRows:   10000,
		TopK:            10,
		MaxWindowDays:   365,
	}
}

func (l Limits) validate() error {
	if l.DefaultPageSize <= 0 || l.MaxPageSize <= 0 || l.DefaultPageSize > l.MaxPageSize {
		return errors.New("audit: page sizes must satisfy 0 < default <= max")
	}
	if l.MaxExportRows <= 0 || l.TopK <= 0 || l.MaxWindowDays <= 0 {
		return errors.New("audit: export rows, top-k and window days must be > 0")
	}
	return nil
}

// Options configures a [Pipeline].
type Options struct {
	Dispatcher DispatcherConfig
	Limits     Limits
	Logger     *slog.Logger
	Now        func() time.Time
}

// Result is one page of a query.
type Result struct {
	Events []Event
	// Total counts every match of the filter, independent of pagination.
	Total int64
	Page  int
	Size  int
}

// Stats is the output of [Pipeline.Aggregate].
type Stats struct {
	ApplicationID   string
	WindowDays      int
	Total           int64
	WindowTotal     int64
	TopActions      []Count
	TopActors       []Count
	TopApplications []Count
	// Daily has one entry per day of the window, oldest first, zero-filled.
	Daily []DayCount
}

// Pipeline is the audit facade used by the Engine.
type Pipeline struct {
	store      Store
	dispatcher *Dispatcher
	limits     Limits
	now        func() time.Time
}

// NewPipeline builds a pipeline over store and starts its dispatcher.
func NewPipeline(store Store, opts Options) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	if err := opts.Limits.validate(); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Dispatcher.Logger == nil {
		opts.Dispatcher.Logger = opts.Logger
	}

	return &Pipeline{
		store:      store,
		dispatcher: NewDispatcher(opts.Dispatcher, store),
		limits:     opts.Limits,
		now:        opts.Now,
	}, nil
}

// Record stamps e with an id and timestamp when missing and queues it. It
// never returns an error and never waits for persistence.
func (p *Pipeline) Record(ctx context.Context, e Event) {
	if p == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = p.now()
	}
	e.Timestamp = e.Timestamp.UTC()
	if e.ID == "" {
		e.ID = NewID(e.Timestamp)
	}
	e.ActorEmail, e.ApplicationName = "", ""
	p.dispatcher.Emit(ctx, e.clone())
}

// Query returns one page of events matching f ordered by s.
func (p *Pipeline) Query(ctx context.Context, f Filter, page Page, s Sort) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, err
	}
	page, err := page.normalize(p.limits)
	if err != nil {
		return Result{}, err
	}

	events, total, err := p.store.Find(ctx, f, s.Normalize(), page.Size, page.offset())
	if err != nil {
		return Result{}, err
	}
	return Result{Events: events, Total: total, Page: page.Number, Size: page.Size}, nil
}

// Aggregate summarizes the trailing windowDays days, counted in whole UTC days
// ending today, optionally scoped to one application. Total is all-time.
func (p *Pipeline) Aggregate(ctx context.Context, windowDays int, applicationID string) (Stats, error) {
	if windowDays < 1 || windowDays > p.limits.MaxWindowDays {
		return Stats{}, fmt.Errorf("%w: window must be between 1 and %d days", ErrInvalidFilter, p.limits.MaxWindowDays)
	}

	scope := Filter{ApplicationID: applicationID}
	total, err := p.store.Count(ctx, scope)
	if err != nil {
		return Stats{}, err
	}

	start := truncateDay(p.now()).AddDate(0, 0, -(windowDays - 1))
	window := scope
	window.From = start
	window.To = start.AddDate(0, 0, windowDays)

	stats := Stats{ApplicationID: applicationID, WindowDays: windowDays, Total: total}
	if stats.WindowTotal, err = p.store.Count(ctx, window); err != nil {
		return Stats{}, err
	}
	if stats.TopActions, err = p.store.Top(ctx, DimensionAction, window, p.limits.TopK); err != nil {
		return Stats{}, err
	}
	if stats.TopActors, err = p.store.Top(ctx, DimensionActor, window, p.limits.TopK); err != nil {
		return Stats{}, err
	}
	if stats.TopApplications, err = p.store.Top(ctx, DimensionApplication, window, p.limits.TopK); err != nil {
		return Stats{}, err
	}

	days, err := p.store.Daily(ctx, window)
	if err != nil {
		return Stats{}, err
	}
	stats.Daily = fillDays(start, windowDays, days)
	return stats, nil
}

func fillDays(start time.Time, n int, days []DayCount) []DayCount {
	byDay := make(map[time.Time]int64, len(days))
	for _, d := range days {
		byDay[truncateDay(d.Day)] += d.Count
	}
	out := make([]DayCount, n)
	for i := range out {
		day := start.AddDate(0, 0, i)
		out[i] = DayCount{Day: day, Count: byDay[day]}
	}
	return out
}

// Close drains queued events.
func (p *Pipeline) Close() {
	if p == nil {
		return
	}
	p.dispatcher.Close()
}

// Dropped returns how many events were discarded because the queue was full.
func (p *Pipeline) Dropped() uint64 {
	if p == nil {
		return 0
	}
	return p.dispatcher.Dropped()
}

// Failed returns how many queued events the store rejected.
func (p *Pipeline) Failed() uint64 {
	if p == nil {
		return 0
	}
	return p.dispatcher.Failed()
}

// Limits returns the effective limits.
func (p *Pipeline) Limits() Limits {
	return p.limits
}
