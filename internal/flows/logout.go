package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/session"
)

// LogoutFailureKind classifies logout failures for root-level mapping.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	// LogoutFailureValidate means the access token was rejected; Validate holds the details.
	LogoutFailureValidate
	LogoutFailureStore
)

type LogoutSessionStore interface {
	Blacklist(ctx context.Context, jti string, ttl time.Duration) error
	Revoke(ctx context.Context, sess session.Session) error
	RevokeAll(ctx context.Context, app, subject string) (int, error)
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Validate     ValidateDeps
	Now          func() time.Time
	SessionStore LogoutSessionStore
}

type LogoutResult struct {
	Failure  LogoutFailureKind
	Err      error
	Validate ValidateResult
}

// RunLogout validates accessToken, blacklists it for its remaining lifetime and
// revokes its session, which also removes the refresh-token entry.
func RunLogout(ctx context.Context, accessToken string, deps LogoutDeps) LogoutResult {
	v := RunValidate(ctx, accessToken, jwt.TypeAccess, deps.Validate)
	if v.Failure != ValidateFailureNone {
		return LogoutResult{Failure: LogoutFailureValidate, Err: v.Err, Validate: v}
	}
	claims := v.Claims

	var remaining time.Duration
	if claims.ExpiresAt != nil {
		remaining = claims.ExpiresAt.Time.Sub(deps.Now())
	}
	if err := deps.SessionStore.Blacklist(ctx, claims.ID, remaining); err != nil {
		return LogoutResult{Failure: LogoutFailureStore, Err: err, Validate: v}
	}

	err := deps.SessionStore.Revoke(ctx, session.Session{
		ID:          claims.SessionID,
		Subject:     claims.Subject,
		Application: claims.Application,
	})
	if err != nil {
		return LogoutResult{Failure: LogoutFailureStore, Err: err, Validate: v}
	}

	return LogoutResult{Validate: v}
}

// RunRevoke revokes one session of a subject at an application.
func RunRevoke(ctx context.Context, sess session.Session, deps LogoutDeps) error {
	return deps.SessionStore.Revoke(ctx, sess)
}

// RunRevokeAll revokes every session of subject at app and no other application.
func RunRevokeAll(ctx context.Context, app, subject string, deps LogoutDeps) (int, error) {
	return deps.SessionStore.RevokeAll(ctx, app, subject)
}
