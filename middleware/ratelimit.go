package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore"
)

// KeyFunc derives the rate-limit identity for a request. An empty identity
// skips limiting for that request.
type KeyFunc func(r *http.Request) string

// ByClientIP keys requests by [ClientIP].
func ByClientIP(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// BySubject keys requests by the authenticated subject and application, and
// falls back to the client IP before [Guard] has run.
func BySubject(r *http.Request) string {
	if claims, ok := authcore.ClaimsFromContext(r.Context()); ok {
		return "sub:" + claims.Application + ":" + claims.Subject
	}
	return ByClientIP(r)
}

// RateLimit counts each request against the identity returned by key and
// answers 429 once the window quota is spent. Allowed and denied responses
// both carry X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset
// (epoch seconds) when the limiter is enabled.
func RateLimit(engine *authcore.Engine, key KeyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = ByClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := key(r)
			if engine == nil || identity == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := engine.Allow(withRequestMeta(r), identity)
			setRateHeaders(w.Header(), res)
			if err != nil {
				if StatusCode(err) == http.StatusTooManyRequests {
					w.Header().Set("Retry-After", strconv.FormatInt(retryAfter(res), 10))
				}
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setRateHeaders(h http.Header, res authcore.RateLimitResult) {
	if res.Limit <= 0 {
		return
	}
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
}

func retryAfter(res authcore.RateLimitResult) int64 {
	secs := int64(time.Until(res.ResetAt).Seconds()) + 1
	if secs < 1 {
		return 1
	}
	return secs
}
