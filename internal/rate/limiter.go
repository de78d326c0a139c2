package rate

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/cache"
	xrate "golang.org/x/time/rate"
)

// DefaultKeyPrefix is the leading segment of every counter key.
const DefaultKeyPrefix = "rate"

// ErrInvalidIdentity is returned for an empty identity.
var ErrInvalidIdentity = errors.New("rate: empty identity")

// Config holds limiter tuning parameters.
type Config struct {
	// Limit is the number of requests allowed per window.
	Limit int
	// Window is the fixed window length.
	Window time.Duration
	// KeyPrefix replaces [DefaultKeyPrefix] when set.
	KeyPrefix string
	// Now is the clock; nil selects time.Now.
	Now func() time.Time
	// Logger receives fail-open warnings; nil discards them.
	Logger *slog.Logger
	// OnFailOpen is invoked each time a cache error admits a request.
	OnFailOpen func()
}

// Result is the outcome of [Limiter.Allow].
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is the end of the current window.
	ResetAt time.Time
	// FailOpen reports that the cache could not be reached and the request was admitted.
	FailOpen bool
}

// Limiter enforces a fixed-window quota per identity using cache counters.
type Limiter struct {
	cache  cache.Cache
	config Config
	warn   xrate.Sometimes
}

// New creates a [Limiter] backed by c.
func New(c cache.Cache, cfg Config) (*Limiter, error) {
	if c == nil {
		return nil, errors.New("rate: cache is required")
	}
	if cfg.Limit <= 0 {
		return nil, errors.New("rate: limit must be > 0")
	}
	if cfg.Window < time.Second {
		return nil, errors.New("rate: window must be >= 1s")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Limiter{
		cache:  c,
		config: cfg,
		warn:   xrate.Sometimes{First: 1, Interval: 30 * time.Second},
	}, nil
}

// Allow counts one request for identity and reports whether it fits the
// current window's quota.
func (l *Limiter) Allow(ctx context.Context, identity string) (Result, error) {
	if identity == "" {
		return Result{}, ErrInvalidIdentity
	}

	now := l.config.Now()
	window := l.windowIndex(now)
	res := Result{
		Limit:   l.config.Limit,
		ResetAt: time.Unix(0, (window+1)*int64(l.config.Window)),
	}

	count, err := l.cache.IncrWindow(ctx, l.key(identity, window), l.config.Window)
	if err != nil {
		l.failOpen(identity, err)
		res.Allowed = true
		res.Remaining = l.config.Limit
		res.FailOpen = true
		return res, nil
	}

	res.Allowed = count <= int64(l.config.Limit)
	if remaining := int64(l.config.Limit) - count; remaining > 0 {
		res.Remaining = int(remaining)
	}
	return res, nil
}

func (l *Limiter) windowIndex(now time.Time) int64 {
	return now.UnixNano() / int64(l.config.Window)
}

func (l *Limiter) key(identity string, window int64) string {
	return l.config.KeyPrefix + ":" + identity + ":" + strconv.FormatInt(window, 10)
}

func (l *Limiter) failOpen(identity string, err error) {
	if l.config.OnFailOpen != nil {
		l.config.OnFailOpen()
	}
	l.warn.Do(func() {
		l.config.Logger.Warn("rate limiter failing open",
			slog.String("identity", identity),
			slog.String("error", err.Error()),
		)
	})
}
