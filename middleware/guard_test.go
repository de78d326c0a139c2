package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var appA = authcore.Application{ID: "appA", Name: "Authy", Scope: "authy", Active: true}

func newTestEngine(t *testing.T, limit int) (*authcore.Engine, *audit.MemoryStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := authcore.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.RateLimit.Limit = limit
	cfg.RateLimit.Window = time.Minute

	audits := audit.NewMemoryStore()
	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithAuditStore(audits).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, audits
}

func issue(t *testing.T, engine *authcore.Engine, perms ...string) *authcore.TokenPair {
	t.Helper()
	pair, err := engine.IssuePair(context.Background(), "u1", appA, permission.MustSnapshot(perms...))
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	return pair
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := authcore.ClaimsFromContext(r.Context())
		if !ok {
			t.Error("expected claims in request context")
		} else {
			w.Header().Set("X-Subject", claims.Subject)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestGuardAcceptsValidAccessToken(t *testing.T) {
	engine, _ := newTestEngine(t, 100)
	pair := issue(t, engine, "authy_users:read")

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	Guard(engine)(okHandler(t)).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("X-Subject") != "u1" {
		t.Fatalf("expected subject u1, got %q", rec.Header().Get("X-Subject"))
	}
}

func TestGuardRejections(t *testing.T) {
	engine, _ := newTestEngine(t, 100)
	pair := issue(t, engine, "authy_users:read")

	revoked := issue(t, engine, "authy_users:read")
	if err := engine.Logout(context.Background(), revoked.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic " + pair.AccessToken},
		{name: "empty token", header: "Bearer "},
		{name: "garbage", header: "Bearer not.a.token"},
		{name: "refresh token", header: "Bearer " + pair.RefreshToken},
		{name: "revoked", header: "Bearer " + revoked.AccessToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			Guard(engine)(next).ServeHTTP(rec, req)

			if called {
				t.Fatal("next handler must not run")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if body := rec.Body.String(); body != "unauthorized\n" {
				t.Fatalf("expected generic body, got %q", body)
			}
		})
	}
}

func TestGuardNilEngine(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	Guard(nil)(http.NotFoundHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRequirePermission(t *testing.T) {
	engine, audits := newTestEngine(t, 100)
	reader := issue(t, engine, "authy_users:read")
	admin := issue(t, engine, "authy_users:*")

	chain := func(next http.Handler) http.Handler {
		return Guard(engine)(RequirePermission(engine, "users", "delete")(next))
	}

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "wildcard grants", token: admin.AccessToken, want: http.StatusNoContent},
		{name: "missing action", token: reader.AccessToken, want: http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/users/42", nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			req.Header.Set("User-Agent", "guard-test")
			req.RemoteAddr = "203.0.113.9:4711"
			rec := httptest.NewRecorder()
			chain(okHandler(t)).ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}

	engine.Close()
	events, _, err := audits.Find(context.Background(), audit.Filter{Actions: []audit.Action{audit.ActionPermissionDenied}}, audit.Sort{}, 10, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one PERMISSION_DENIED event, got %d", len(events))
	}
	if events[0].IP != "203.0.113.9" || events[0].UserAgent != "guard-test" {
		t.Fatalf("expected request metadata on event, got ip=%q ua=%q", events[0].IP, events[0].UserAgent)
	}
}

func TestRequirePermissionWithoutGuard(t *testing.T) {
	engine, _ := newTestEngine(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	RequirePermission(engine, "users", "read")(http.NotFoundHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRateLimitHeaders(t *testing.T) {
	engine, _ := newTestEngine(t, 2)
	handler := RateLimit(engine, ByClientIP)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.7:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i, wantRemaining := range []string{"1", "0"} {
		rec := do()
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "2" {
			t.Fatalf("request %d: expected limit 2, got %q", i, got)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != wantRemaining {
			t.Fatalf("request %d: expected remaining %s, got %q", i, wantRemaining, got)
		}
	}

	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Body.String() != "too many requests\n" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	reset, err := strconv.ParseInt(rec.Header().Get("X-RateLimit-Reset"), 10, 64)
	if err != nil || reset <= 0 {
		t.Fatalf("expected epoch reset header, got %q", rec.Header().Get("X-RateLimit-Reset"))
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After on 429")
	}
}

func TestRateLimitDisabled(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := authcore.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.RateLimit.Enabled = false
	disabled, err := authcore.New().WithConfig(cfg).WithRedis(rdb).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(disabled.Close)

	handler := RateLimit(disabled, ByClientIP)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "" {
			t.Fatal("disabled limiter must not set headers")
		}
	}
}

func TestBySubjectUsesClaims(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:80"
	if got := BySubject(req); got != "ip:192.0.2.1" {
		t.Fatalf("expected ip fallback, got %q", got)
	}

	ctx := authcore.WithClaims(req.Context(), &authcore.Claims{Subject: "u1", Application: "appA"})
	if got := BySubject(req.WithContext(ctx)); got != "sub:appA:u1" {
		t.Fatalf("expected subject key, got %q", got)
	}
}
