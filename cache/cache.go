package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss is returned by Get when the key does not exist or has expired.
	ErrMiss = errors.New("cache miss")
	// ErrUnavailable wraps every transport or timeout failure of the backend.
	ErrUnavailable = errors.New("cache unavailable")
)

// SwapResult reports the outcome of [Cache.CompareAndSwap].
type SwapResult int

const (
	// SwapMissing means the key did not exist; nothing was written.
	SwapMissing SwapResult = iota
	// SwapMismatch means the stored value differed from the expected one; nothing was written.
	SwapMismatch
	// SwapOK means the expected value was consumed and replaced.
	SwapOK
)

func (r SwapResult) String() string {
	switch r {
	case SwapOK:
		return "ok"
	case SwapMismatch:
		return "mismatch"
	default:
		return "missing"
	}
}

// Cache is the shared key-value store with per-key TTL used by the core.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Exists returns how many of keys are present.
	Exists(ctx context.Context, keys ...string) (int64, error)
	// IncrWindow atomically increments key and returns the new value. The TTL is
	// applied only when the counter is created, which gives fixed-window semantics.
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// CompareAndSwap replaces the value of key with next, and resets its TTL, only
	// when the current value equals expected.
	CompareAndSwap(ctx context.Context, key, expected, next string, ttl time.Duration) (SwapResult, error)
	AddMember(ctx context.Context, setKey, member string, ttl time.Duration) error
	RemoveMember(ctx context.Context, setKey, member string) error
	Members(ctx context.Context, setKey string) ([]string, error)
}
