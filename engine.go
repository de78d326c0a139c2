package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/session"
	"github.com/google/uuid"
	xrate "golang.org/x/time/rate"
)

// Engine is the authentication and authorization core. It is safe for
// concurrent use once returned by [Builder.Build].
type Engine struct {
	config       Config
	logger       *slog.Logger
	now          func() time.Time
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	audit        *audit.Pipeline
	metrics      *Metrics
	jwtManager   *jwt.Manager
	credentials  CredentialStore
	applications ApplicationStore
	flows        flows.Service
	failOpenWarn xrate.Sometimes
}

// Close drains queued audit events. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns how many audit events were discarded by the drop policy.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

func (e *Engine) flowDeps() flows.Deps {
	validate := flows.ValidateDeps{
		Parse:           e.jwtManager.Parse,
		RevocationStore: e.sessionStore,
		FailOpen:        e.config.Policy.RevocationCheckFailOpen,
	}
	issue := flows.IssueDeps{
		NewID:        uuid.NewString,
		Sign:         e.jwtManager.Issue,
		AccessTTL:    e.config.JWT.AccessTTL,
		RefreshTTL:   e.config.JWT.RefreshTTL,
		SessionStore: e.sessionStore,
	}

	return flows.Deps{
		Issue:    issue,
		Validate: validate,
		Refresh: flows.RefreshDeps{
			Parse:        e.jwtManager.Parse,
			NewID:        uuid.NewString,
			Sign:         e.jwtManager.Issue,
			AccessTTL:    e.config.JWT.AccessTTL,
			RefreshTTL:   e.config.JWT.RefreshTTL,
			SessionStore: e.sessionStore,
		},
		Logout: flows.LogoutDeps{
			Validate:     validate,
			Now:          e.now,
			SessionStore: e.sessionStore,
		},
		Login: e.loginDeps(issue),
	}
}

// IssuePair starts a session for subject at app and returns its first token
// pair. perms is embedded verbatim and never changes for the session.
func (e *Engine) IssuePair(ctx context.Context, subject string, app Application, perms permission.Snapshot) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if subject == "" || app.ID == "" {
		return nil, fmt.Errorf("%w: subject and application are required", ErrInvalidInput)
	}
	if !app.Active {
		return nil, ErrApplicationInactive
	}

	res := e.flows.Issue(ctx, flows.IssueRequest{
		Subject:     subject,
		Application: app.ID,
		Scope:       app.Scope,
		Permissions: perms.Strings(),
	})
	if res.Failure != flows.IssueFailureNone {
		return nil, fmt.Errorf("issue token pair: %w", res.Err)
	}

	e.metricInc(MetricIssue)
	return pairFrom(res), nil
}

// Validate verifies signature, expiry and type, then consults the blacklist
// and revoked-session markers.
func (e *Engine) Validate(ctx context.Context, tokenStr string, expected TokenType) (*Claims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	claims, err := e.finishValidate(ctx, e.flows.Validate(ctx, tokenStr, expected))
	e.metrics.Observe(MetricValidateLatency, time.Since(start))
	return claims, err
}

// ValidateAccessToken is Validate for access tokens.
func (e *Engine) ValidateAccessToken(ctx context.Context, tokenStr string) (*Claims, error) {
	return e.Validate(ctx, tokenStr, TokenAccess)
}

// ValidateStateless checks signature, expiry and type only. Tokens revoked
// through Logout or Revoke stay valid here until they expire.
func (e *Engine) ValidateStateless(ctx context.Context, tokenStr string, expected TokenType) (*Claims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	claims, err := e.finishValidate(ctx, e.flows.ValidateStateless(ctx, tokenStr, expected))
	e.metrics.Observe(MetricValidateLatency, time.Since(start))
	return claims, err
}

func (e *Engine) finishValidate(ctx context.Context, res flows.ValidateResult) (*Claims, error) {
	if err := validateError(res); err != nil {
		e.metricInc(MetricValidateFailure)
		e.logger.LogAttrs(ctx, slog.LevelInfo, "token rejected",
			slog.String("reason", reasonOf(err)),
			slog.String("cause", errString(res.Err)),
		)
		return nil, err
	}

	if res.FailOpen {
		e.metricInc(MetricRevocationFailOpen)
		e.failOpenWarn.Do(func() {
			e.logger.Warn("revocation check failing open", slog.String("error", errString(res.Err)))
		})
	}

	claims, err := claimsFromToken(res.Claims)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		e.logger.LogAttrs(ctx, slog.LevelInfo, "token rejected",
			slog.String("reason", reasonOf(ErrTokenMalformed)),
			slog.String("cause", err.Error()),
		)
		return nil, ErrTokenMalformed
	}

	e.metricInc(MetricValidateSuccess)
	return claims, nil
}

func validateError(res flows.ValidateResult) error {
	switch res.Failure {
	case flows.ValidateFailureNone:
		return nil
	case flows.ValidateFailureParse:
		return tokenError(res.Err)
	case flows.ValidateFailureWrongType:
		return ErrTokenInvalidType
	case flows.ValidateFailureRevoked:
		return ErrTokenRevoked
	case flows.ValidateFailureRevocationUnavailable:
		return fmt.Errorf("%w: %w", ErrRevocationUnavailable, res.Err)
	default:
		return ErrUnauthenticated
	}
}

// Refresh consumes refreshToken and returns the next pair of its session.
//
// A refresh token can be consumed once. Presenting it again returns
// ErrRefreshReused and revokes the whole session. Callers must not retry a
// Refresh that timed out: the rotation may have succeeded and the retry
// would be treated as reuse.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Refresh(ctx, refreshToken)
	if res.Failure == flows.RefreshFailureNone {
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, audit.Event{
			ActorID:       res.Presented.Subject,
			ApplicationID: res.Presented.Application,
			Action:        audit.ActionTokenRefresh,
			Resource:      "sessions",
			ResourceID:    res.Presented.SessionID,
		})
		return pairFrom(res.Pair), nil
	}

	var err error
	switch res.Failure {
	case flows.RefreshFailureParse:
		err = tokenError(res.Err)
	case flows.RefreshFailureWrongType:
		err = ErrTokenInvalidType
	case flows.RefreshFailureSign:
		err = fmt.Errorf("sign token pair: %w", res.Err)
	case flows.RefreshFailureReuse:
		err = ErrRefreshReused
	case flows.RefreshFailureSessionNotFound:
		err = ErrSessionNotFound
	default:
		err = fmt.Errorf("rotate refresh token: %w", res.Err)
	}

	e.metricInc(MetricRefreshFailure)
	if res.Failure == flows.RefreshFailureReuse {
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricSessionRevoked)
		p := res.Presented
		e.logger.Warn("refresh token reuse detected; session revoked",
			slog.String("subject", p.Subject),
			slog.String("application", p.Application),
			slog.String("session_id", p.SessionID),
		)
		e.emitAudit(ctx, audit.Event{
			ActorID:       p.Subject,
			ApplicationID: p.Application,
			Action:        audit.ActionRefreshReuse,
			Resource:      "sessions",
			ResourceID:    p.SessionID,
			Detail:        map[string]any{"token_id": p.ID},
		})
	} else {
		e.logger.LogAttrs(ctx, slog.LevelInfo, "refresh rejected",
			slog.String("reason", reasonOf(err)),
			slog.String("cause", errString(res.Err)),
		)
	}
	return nil, err
}

// Logout blacklists accessToken for its remaining lifetime and revokes its
// session. Sessions of the same subject at other applications are untouched.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := e.flows.Logout(ctx, accessToken)
	switch res.Failure {
	case flows.LogoutFailureNone:
	case flows.LogoutFailureValidate:
		return validateError(res.Validate)
	default:
		return fmt.Errorf("logout: %w", res.Err)
	}

	claims := res.Validate.Claims
	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, audit.Event{
		ActorID:       claims.Subject,
		ApplicationID: claims.Application,
		Action:        audit.ActionLogout,
		Resource:      "sessions",
		ResourceID:    claims.SessionID,
	})
	return nil
}

// Revoke ends one session. Its refresh token stops working immediately and
// its access tokens are rejected by Validate.
func (e *Engine) Revoke(ctx context.Context, s Session) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if s.ID == "" || s.Subject == "" || s.Application == "" {
		return fmt.Errorf("%w: session id, subject and application are required", ErrInvalidInput)
	}

	err := e.flows.Revoke(ctx, session.Session{
		ID:          s.ID,
		Subject:     s.Subject,
		Application: s.Application,
	})
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, audit.Event{
		ApplicationID: s.Application,
		Action:        audit.ActionSessionRevoke,
		Resource:      "sessions",
		ResourceID:    s.ID,
		Detail:        map[string]any{"subject": s.Subject},
	})
	return nil
}

// RevokeAll ends every session of subject at applicationID and returns how
// many were revoked.
func (e *Engine) RevokeAll(ctx context.Context, subject, applicationID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if subject == "" || applicationID == "" {
		return 0, fmt.Errorf("%w: subject and application are required", ErrInvalidInput)
	}

	n, err := e.flows.RevokeAll(ctx, applicationID, subject)
	if err != nil {
		return n, fmt.Errorf("revoke sessions: %w", err)
	}

	for i := 0; i < n; i++ {
		e.metricInc(MetricSessionRevoked)
	}
	e.emitAudit(ctx, audit.Event{
		ApplicationID: applicationID,
		Action:        audit.ActionSessionRevoke,
		Resource:      "sessions",
		Detail:        map[string]any{"subject": subject, "count": n},
	})
	return n, nil
}

// Sessions lists the live session ids of subject at applicationID.
func (e *Engine) Sessions(ctx context.Context, subject, applicationID string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if subject == "" || applicationID == "" {
		return nil, fmt.Errorf("%w: subject and application are required", ErrInvalidInput)
	}
	return e.sessionStore.List(ctx, applicationID, subject)
}

func pairFrom(res flows.IssueResult) *TokenPair {
	pair := &TokenPair{
		SessionID:    res.SessionID,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}
	if res.AccessClaims.ExpiresAt != nil {
		pair.AccessExpiresAt = res.AccessClaims.ExpiresAt.Time
	}
	if res.RefreshClaims.ExpiresAt != nil {
		pair.RefreshExpiresAt = res.RefreshClaims.ExpiresAt.Time
	}
	return pair
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrInvalidSignature):
		return ErrTokenInvalidSignature
	default:
		return ErrTokenMalformed
	}
}

// reasonOf returns the internal failure code logged and audited for err.
func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrTokenInvalidType):
		return "invalid_type"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, ErrRefreshReused):
		return "refresh_reused"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrRevocationUnavailable):
		return "revocation_unavailable"
	case errors.Is(err, ErrApplicationInactive):
		return "application_inactive"
	case errors.Is(err, ErrApplicationNotFound):
		return "application_not_found"
	case errors.Is(err, ErrPrincipalInactive):
		return "principal_inactive"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, session.ErrUnavailable):
		return "backend_unavailable"
	default:
		return "internal_error"
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
