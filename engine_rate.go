package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/internal/rate"
)

// Allow counts one request for identity in the current fixed window.
//
// A denied request returns the populated result together with
// ErrQuotaExceeded. Windows reset at fixed boundaries, so a client can
// send up to twice the limit across a boundary. When the cache is
// unreachable the request is admitted with FailOpen set. With rate limiting
// disabled every request is admitted and Limit is zero.
func (e *Engine) Allow(ctx context.Context, identity string) (RateLimitResult, error) {
	if e == nil || e.rateLimiter == nil {
		return RateLimitResult{Allowed: true}, nil
	}

	res, err := e.rateLimiter.Allow(ctx, identity)
	if err != nil {
		if errors.Is(err, rate.ErrInvalidIdentity) {
			return RateLimitResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return RateLimitResult{}, err
	}

	out := RateLimitResult{
		Allowed:   res.Allowed,
		Limit:     res.Limit,
		Remaining: res.Remaining,
		ResetAt:   res.ResetAt,
		FailOpen:  res.FailOpen,
	}
	if out.Allowed {
		return out, nil
	}

	e.metricInc(MetricRateLimited)
	e.emitAudit(ctx, audit.Event{
		Action:   audit.ActionRateLimited,
		Resource: "rate_limit",
		Detail: map[string]any{
			"identity": identity,
			"limit":    res.Limit,
			"reset_at": res.ResetAt.Unix(),
		},
	})
	return out, ErrQuotaExceeded
}
