package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrWriteFailed wraps every store failure seen by the dispatcher. It is
// logged and handed to OnFailed, never returned to the recording caller.
var ErrWriteFailed = errors.New("audit write failed")

// DispatcherConfig controls dispatcher buffering behavior.
type DispatcherConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events when the queue is full. When false, Emit waits for
	// room until the caller's context is done.
	DropIfFull bool
	// WriteTimeout bounds each store write. Zero selects 2s.
	WriteTimeout time.Duration
	Logger       *slog.Logger
	// Hooks observe the outcome of every event; any may be nil.
	OnWritten func()
	OnDropped func()
	OnFailed  func(error)
}

// Dispatcher asynchronously forwards events to a [Store] from one worker goroutine.
type Dispatcher struct {
	cfg       DispatcherConfig
	store     Store
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher writing to store. A disabled config
// returns nil; a nil *Dispatcher accepts and discards events.
func NewDispatcher(cfg DispatcherConfig, store Store) *Dispatcher {
	if !cfg.Enabled || store == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	d := &Dispatcher{
		cfg:   cfg,
		store: store,
		ch:    make(chan Event, cfg.BufferSize),
		done:  make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.write(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.write(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
	defer cancel()

	if err := d.store.Insert(ctx, event); err != nil {
		err = fmt.Errorf("%w: %w", ErrWriteFailed, err)
		d.failed.Add(1)
		if d.cfg.OnFailed != nil {
			d.cfg.OnFailed(err)
		}
		d.cfg.Logger.Warn("audit write failed",
			slog.String("event_id", event.ID),
			slog.String("action", string(event.Action)),
			slog.String("resource", event.Resource),
			slog.String("error", err.Error()),
		)
		return
	}
	if d.cfg.OnWritten != nil {
		d.cfg.OnWritten()
	}
}

// Emit queues event. It never blocks when DropIfFull is set.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.drop()
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.drop()
	case <-d.done:
	}
}

func (d *Dispatcher) drop() {
	d.dropped.Add(1)
	if d.cfg.OnDropped != nil {
		d.cfg.OnDropped()
	}
}

// Close stops accepting events and drains the queue.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
