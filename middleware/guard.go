package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

// Guard validates the Authorization bearer token as an access token. On
// success the claims, client IP and user agent are attached to the request
// context for downstream handlers and audit events.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, authcore.ErrEngineNotReady)
				return
			}

			ctx := withRequestMeta(r)

			token, ok := BearerToken(r)
			if !ok {
				writeError(w, authcore.ErrUnauthenticated)
				return
			}

			claims, err := engine.ValidateAccessToken(ctx, token)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx = authcore.WithClaims(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects requests whose claims do not allow action on
// resource. It must run after [Guard].
func RequirePermission(engine *authcore.Engine, resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authcore.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, authcore.ErrUnauthenticated)
				return
			}
			if err := engine.Authorize(r.Context(), claims, resource, action); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withRequestMeta(r *http.Request) context.Context {
	ctx := r.Context()
	if ip := ClientIP(r); ip != "" {
		ctx = authcore.WithClientIP(ctx, ip)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = authcore.WithUserAgent(ctx, ua)
	}
	return ctx
}

// ClientIP returns the host part of r.RemoteAddr. Deployments behind a proxy
// should install a handler that rewrites RemoteAddr first, such as chi's
// RealIP middleware.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	const bearer = "Bearer "
	value := r.Header.Get("Authorization")
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// StatusCode maps an Engine error to the HTTP status a handler should send.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, authcore.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, authcore.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, authcore.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, authcore.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, authcore.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	msg := authcore.PublicMessage(err)
	if errors.Is(err, authcore.ErrEngineNotReady) {
		msg = "service unavailable"
	}
	http.Error(w, msg, StatusCode(err))
}
