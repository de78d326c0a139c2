package authcore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memoryCredentials struct {
	principals map[string]Principal
	secrets    map[string]string
	roles      map[string]*permission.RoleManager
	grants     map[string][]string
}

func (m *memoryCredentials) LookupPrincipal(_ context.Context, identifier string) (Principal, error) {
	p, ok := m.principals[identifier]
	if !ok {
		return Principal{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryCredentials) VerifySecret(_ context.Context, principalID, secret string) (bool, error) {
	return m.secrets[principalID] == secret, nil
}

func (m *memoryCredentials) ResolvePermissions(_ context.Context, principalID string, app Application) ([]string, error) {
	rm, ok := m.roles[app.ID]
	if !ok {
		return nil, nil
	}
	snap, err := rm.Resolve(m.grants[app.ID+"/"+principalID]...)
	if err != nil {
		return nil, err
	}
	return snap.Strings(), nil
}

func newMemoryCredentials(t *testing.T) *memoryCredentials {
	t.Helper()

	authy := permission.NewRoleManager("authy")
	mustRegister(t, authy, "reader", []string{"authy_users:read"})
	mustRegister(t, authy, "admin", []string{"authy_users:*", "authy_roles:*"})
	authy.Freeze()

	billing := permission.NewRoleManager("billing")
	mustRegister(t, billing, "clerk", []string{"billing_invoices:read", "billing_invoices:create"})
	billing.Freeze()

	return &memoryCredentials{
		principals: map[string]Principal{
			"alice": {ID: "u1", Active: true},
			"bob":   {ID: "u2", Active: false},
		},
		secrets: map[string]string{
			"u1": "correct-password-123",
			"u2": "correct-password-456",
		},
		roles: map[string]*permission.RoleManager{
			"appA": authy,
			"appB": billing,
		},
		grants: map[string][]string{
			"appA/u1": {"reader"},
			"appB/u1": {"clerk"},
			"appA/u2": {"admin"},
		},
	}
}

func mustRegister(t *testing.T, rm *permission.RoleManager, name string, perms []string) {
	t.Helper()
	if err := rm.RegisterRole(name, perms); err != nil {
		t.Fatalf("register role %s: %v", name, err)
	}
}

func testApplications() StaticApplications {
	return StaticApplications{
		"appA": {ID: "appA", Name: "Authy", Scope: "authy", Active: true},
		"appB": {ID: "appB", Name: "Billing", Scope: "billing", Active: true},
		"appC": {ID: "appC", Name: "Legacy", Scope: "legacy", Active: false},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.AccessTTL = time.Minute
	cfg.JWT.RefreshTTL = time.Hour
	cfg.RateLimit.Limit = 10
	cfg.RateLimit.Window = time.Minute
	return cfg
}

type testEngine struct {
	*Engine
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	clock  *testClock
	audits *audit.MemoryStore
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEngine {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	clock := newTestClock()
	audits := audit.NewMemoryStore()
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClock(clock.Now).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithCredentialStore(newMemoryCredentials(t)).
		WithApplicationStore(testApplications()).
		WithAuditStore(audits).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, mr: mr, rdb: rdb, clock: clock, audits: audits}
}

func (te *testEngine) auditActions(t *testing.T, action audit.Action) []audit.Event {
	t.Helper()
	te.Close()
	events, _, err := te.audits.Find(context.Background(), audit.Filter{Actions: []audit.Action{action}}, audit.DefaultSort, 1000, 0)
	if err != nil {
		t.Fatalf("find audit events: %v", err)
	}
	return events
}

func TestLoginRefreshReplayScenario(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	p1, err := te.Login(ctx, "appA", "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	p2, err := te.Refresh(ctx, p1.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if p2.SessionID != p1.SessionID {
		t.Fatalf("refresh must keep the session, got %s want %s", p2.SessionID, p1.SessionID)
	}
	if p2.RefreshToken == p1.RefreshToken || p2.AccessToken == p1.AccessToken {
		t.Fatal("refresh must return new tokens")
	}

	if _, err := te.ValidateAccessToken(ctx, p1.AccessToken); err != nil {
		t.Fatalf("old access token must stay valid until revoked: %v", err)
	}

	_, err = te.Refresh(ctx, p1.RefreshToken)
	if !errors.Is(err, ErrRefreshReused) || !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrRefreshReused, got %v", err)
	}

	// Reuse revokes the whole session.
	if _, err := te.ValidateAccessToken(ctx, p2.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected session access tokens to be revoked, got %v", err)
	}
	if _, err := te.Refresh(ctx, p2.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for the revoked session, got %v", err)
	}

	snap := te.MetricsSnapshot()
	if snap.Counters[MetricRefreshReuseDetected] != 1 {
		t.Fatalf("expected one reuse metric, got %d", snap.Counters[MetricRefreshReuseDetected])
	}
	if got := te.auditActions(t, audit.ActionRefreshReuse); len(got) != 1 || got[0].ResourceID != p1.SessionID {
		t.Fatalf("expected one REFRESH_REUSE event for the session, got %+v", got)
	}
}

func TestLogoutBlacklistsAccessToken(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	pair, err := te.Login(ctx, "appA", "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	claims, err := te.ValidateAccessToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	te.clock.Advance(20 * time.Second)
	if err := te.Logout(ctx, pair.AccessToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	if _, err := te.ValidateAccessToken(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after logout, got %v", err)
	}
	if _, err := te.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected refresh entry to be deleted, got %v", err)
	}

	ttl := te.mr.TTL("ac:bl:" + claims.TokenID)
	if ttl <= 0 || ttl > 40*time.Second {
		t.Fatalf("blacklist TTL must equal remaining lifetime (40s), got %v", ttl)
	}

	// Stateless validation only checks signature, expiry and type.
	if _, err := te.ValidateStateless(ctx, pair.AccessToken, TokenAccess); err != nil {
		t.Fatalf("stateless validation should still accept the token: %v", err)
	}
}

func TestAccessTokenExpires(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	pair, err := te.IssuePair(ctx, "u9", testApplications()["appA"], permission.MustSnapshot("authy_users:read"))
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if !pair.AccessExpiresAt.Equal(te.clock.Now().Add(time.Minute)) {
		t.Fatalf("unexpected access expiry %v", pair.AccessExpiresAt)
	}

	if _, err := te.Validate(ctx, pair.AccessToken, TokenAccess); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	te.clock.Advance(time.Minute + time.Second)
	_, err = te.Validate(ctx, pair.AccessToken, TokenAccess)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if PublicMessage(err) != "unauthorized" {
		t.Fatalf("unexpected public message %q", PublicMessage(err))
	}

	// Refresh tokens live longer.
	if _, err := te.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("refresh after access expiry failed: %v", err)
	}
}

func TestTokenTypeIsEnforced(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	pair, err := te.Login(ctx, "appA", "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := te.Validate(ctx, pair.RefreshToken, TokenAccess); !errors.Is(err, ErrTokenInvalidType) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := te.Validate(ctx, pair.AccessToken, TokenRefresh); !errors.Is(err, ErrTokenInvalidType) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
	if _, err := te.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrTokenInvalidType) {
		t.Fatalf("access token accepted by Refresh: %v", err)
	}
	if _, err := te.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("rejected type probe must not consume the refresh token: %v", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	pair, err := te.Login(ctx, "appA", "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	if _, err := te.ValidateAccessToken(ctx, tampered); !errors.Is(err, ErrTokenInvalidSignature) && !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected signature failure, got %v", err)
	}
	if _, err := te.ValidateAccessToken(ctx, "not-a-token"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestLogoutIsolatedPerApplication(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	a, err := te.Login(ctx, "appA", "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login appA failed: %v", err)
	}
	b, err := te.Login(ctx, "appB", "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login appB failed: %v", err)
	}

	if err := te.Logout(ctx, a.AccessToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	claims, err := te.ValidateAccessToken(ctx, b.AccessToken)
	if err != nil {
		t.Fatalf("appB session affected by appA logout: %v", err)
	}
	if claims.Application != "appB" || !claims.Allows("invoices", "create") {
		t.Fatalf("unexpected appB claims %+v", claims)
	}
	if _, err := te.Refresh(ctx, b.RefreshToken); err != nil {
		t.Fatalf("appB refresh affected by appA logout: %v", err)
	}
}

func TestRevokeAllAndSessions(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	var pairs []*TokenPair
	for i := 0; i < 3; i++ {
		p, err := te.Login(ctx, "appA", "alice", "correct-password-123")
		if err != nil {
			t.Fatalf("login %d failed: %v", i, err)
		}
		pairs = append(pairs, p)
	}
	other, err := te.Login(ctx, "appB", "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login appB failed: %v", err)
	}

	ids, err := te.Sessions(ctx, "u1", "appA")
	if err != nil || len(ids) != 3 {
		t.Fatalf("expected 3 appA sessions, got %v (%v)", ids, err)
	}

	if err := te.Revoke(ctx, Session{ID: pairs[0].SessionID, Subject: "u1", Application: "appA"}); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := te.ValidateAccessToken(ctx, pairs[0].AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("revoked session token accepted: %v", err)
	}

	n, err := te.RevokeAll(ctx, "u1", "appA")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 sessions revoked, got %d (%v)", n, err)
	}
	for _, p := range pairs {
		if _, err := te.Refresh(ctx, p.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}
	}
	if _, err := te.ValidateAccessToken(ctx, other.AccessToken); err != nil {
		t.Fatalf("appB session revoked by appA RevokeAll: %v", err)
	}

	if _, err := te.RevokeAll(ctx, "", "appA"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	pair, err := te.Login(ctx, "appA", "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := te.Refresh(ctx, pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrRefreshReused) && !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
}

func TestLoginFailures(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	tests := []struct {
		name        string
		app, id, pw string
		want        error
		class       error
	}{
		{"wrong secret", "appA", "alice", "nope", ErrInvalidCredentials, ErrUnauthenticated},
		{"unknown principal", "appA", "mallory", "nope", ErrInvalidCredentials, ErrUnauthenticated},
		{"inactive principal", "appA", "bob", "correct-password-456", ErrPrincipalInactive, ErrForbidden},
		{"inactive application", "appC", "alice", "correct-password-123", ErrApplicationInactive, ErrForbidden},
		{"unknown application", "appZ", "alice", "correct-password-123", ErrApplicationNotFound, ErrForbidden},
		{"missing secret", "appA", "alice", "", ErrInvalidInput, ErrInvalidInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := te.Login(ctx, tc.app, tc.id, tc.pw)
			if !errors.Is(err, tc.want) || !errors.Is(err, tc.class) {
				t.Fatalf("expected %v (%v), got %v", tc.want, tc.class, err)
			}
		})
	}

	failed := te.auditActions(t, audit.ActionLoginFailed)
	if len(failed) != len(tests)-1 {
		t.Fatalf("expected %d LOGIN_FAILED events, got %d", len(tests)-1, len(failed))
	}
	for _, e := range failed {
		if e.Detail["reason"] == "" {
			t.Fatalf("LOGIN_FAILED without reason: %+v", e)
		}
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	te := newTestEngine(t, func(cfg *Config) { cfg.RateLimit.Limit = 3 })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := te.Login(ctx, "appA", "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if _, err := te.Login(ctx, "appA", "alice", "correct-password-123"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	// Another identifier has its own window.
	if _, err := te.Login(ctx, "appA", "bob", "correct-password-456"); !errors.Is(err, ErrPrincipalInactive) {
		t.Fatalf("expected bob to be evaluated, got %v", err)
	}

	te.clock.Advance(time.Minute)
	if _, err := te.Login(ctx, "appA", "alice", "correct-password-123"); err != nil {
		t.Fatalf("login after window reset failed: %v", err)
	}
}

func TestAuthorizeScenario(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := WithClientIP(context.Background(), "10.0.0.7")

	pair, err := te.Login(ctx, "appA", "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	claims, err := te.ValidateAccessToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	if err := te.Authorize(ctx, claims, "users", "read"); err != nil {
		t.Fatalf("expected users:read to be allowed: %v", err)
	}
	err = te.Authorize(ctx, claims, "users", "create")
	if !errors.Is(err, ErrPermissionDenied) || !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if err := te.Authorize(ctx, nil, "users", "read"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected nil claims to be unauthenticated, got %v", err)
	}

	denied := te.auditActions(t, audit.ActionPermissionDenied)
	if len(denied) != 1 {
		t.Fatalf("expected one PERMISSION_DENIED event, got %d", len(denied))
	}
	if denied[0].ActorID != "u1" || denied[0].IP != "10.0.0.7" || denied[0].Detail["required"] != "authy_users:create" {
		t.Fatalf("unexpected denial event %+v", denied[0])
	}
}

func TestAllowFixedWindow(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	windowStart := te.clock.Now()

	for i := 1; i <= 10; i++ {
		res, err := te.Allow(ctx, "client-1")
		if err != nil || !res.Allowed {
			t.Fatalf("request %d: expected allow, got %+v (%v)", i, res, err)
		}
		if res.Remaining != 10-i {
			t.Fatalf("request %d: expected remaining %d, got %d", i, 10-i, res.Remaining)
		}
	}

	res, err := te.Allow(ctx, "client-1")
	if !errors.Is(err, ErrQuotaExceeded) || res.Allowed {
		t.Fatalf("11th request must be denied, got %+v (%v)", res, err)
	}
	if !res.ResetAt.Equal(windowStart.Add(time.Minute)) {
		t.Fatalf("expected reset at %v, got %v", windowStart.Add(time.Minute), res.ResetAt)
	}

	te.clock.Advance(time.Minute)
	if res, err := te.Allow(ctx, "client-1"); err != nil || !res.Allowed {
		t.Fatalf("expected allow after window reset, got %+v (%v)", res, err)
	}

	if got := te.auditActions(t, audit.ActionRateLimited); len(got) != 1 {
		t.Fatalf("expected one RATE_LIMITED event, got %d", len(got))
	}
}

func TestCacheOutagePolicy(t *testing.T) {
	for _, failOpen := range []bool{true, false} {
		te := newTestEngine(t, func(cfg *Config) { cfg.Policy.RevocationCheckFailOpen = failOpen })
		ctx := context.Background()

		pair, err := te.Login(ctx, "appA", "alice", "correct-password-123")
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}

		te.mr.Close()

		_, err = te.ValidateAccessToken(ctx, pair.AccessToken)
		if failOpen {
			if err != nil {
				t.Fatalf("fail-open policy rejected token: %v", err)
			}
			if te.MetricsSnapshot().Counters[MetricRevocationFailOpen] != 1 {
				t.Fatal("expected revocation fail-open metric")
			}
		} else if !errors.Is(err, ErrRevocationUnavailable) || !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("fail-closed policy must reject, got %v", err)
		}

		res, err := te.Allow(ctx, "client-1")
		if err != nil || !res.Allowed || !res.FailOpen {
			t.Fatalf("rate limiter must fail open, got %+v (%v)", res, err)
		}
		if te.MetricsSnapshot().Counters[MetricRateLimiterFailOpen] != 1 {
			t.Fatal("expected rate limiter fail-open metric")
		}
	}
}

func TestIssuePairValidation(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	apps := testApplications()

	if _, err := te.IssuePair(ctx, "", apps["appA"], permission.Snapshot{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := te.IssuePair(ctx, "u1", apps["appC"], permission.Snapshot{}); !errors.Is(err, ErrApplicationInactive) {
		t.Fatalf("expected ErrApplicationInactive, got %v", err)
	}

	pair, err := te.IssuePair(ctx, "svc", apps["appA"], permission.MustSnapshot(string(permission.SuperAdmin)))
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	claims, err := te.ValidateAccessToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if err := te.Authorize(ctx, claims, "anything", "delete"); err != nil {
		t.Fatalf("super admin denied: %v", err)
	}
}

func TestBuilderRequiresCache(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected build without cache to fail")
	}

	b := New().WithConfig(testConfig()).WithRedis(redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()}))
	if _, err := b.Build(); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected builder reuse to fail")
	}
}

func TestEngineWithoutAuditStore(t *testing.T) {
	mr := miniredis.RunT(t)
	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer engine.Close()

	if _, err := engine.QueryAudit(context.Background(), audit.Filter{}, audit.Page{}, audit.Sort{}); !errors.Is(err, ErrAuditUnavailable) {
		t.Fatalf("expected ErrAuditUnavailable, got %v", err)
	}
	if _, err := engine.Login(context.Background(), "appA", "alice", "pw"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady without stores, got %v", err)
	}
}

func TestRejectionReasonsLoggedAtDefaultLevel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	var logs bytes.Buffer
	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	ctx := context.Background()
	if _, err := engine.ValidateAccessToken(ctx, "not-a-token"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
	if _, err := engine.Refresh(ctx, "not-a-token"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed from refresh, got %v", err)
	}
	engine.Close()

	out := logs.String()
	for _, want := range []string{
		`"msg":"token rejected"`,
		`"msg":"refresh rejected"`,
		`"reason":"malformed"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in logs, got:\n%s", want, out)
		}
	}
}
