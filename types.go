package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/permission"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType = jwt.TokenType

const (
	TokenAccess  = jwt.TypeAccess
	TokenRefresh = jwt.TypeRefresh
)

// Principal is the subject of a login, as seen by the core. Everything else
// about a user stays in the caller's store.
type Principal struct {
	ID     string
	Active bool
	// System marks service principals. The core records it in audit detail only.
	System bool
}

// Application is an isolation boundary for sessions. Scope prefixes resource
// names inside its permission strings.
type Application struct {
	ID     string
	Name   string
	Scope  string
	Active bool
}

// CredentialStore is implemented by the caller's user database. The secret
// hashing scheme is owned entirely by the store.
//
// LookupPrincipal returns an error wrapping [ErrNotFound] for unknown identifiers.
type CredentialStore interface {
	LookupPrincipal(ctx context.Context, identifier string) (Principal, error)
	VerifySecret(ctx context.Context, principalID, secret string) (bool, error)
	// ResolvePermissions returns the permission snapshot of principalID at app.
	ResolvePermissions(ctx context.Context, principalID string, app Application) ([]string, error)
}

// ApplicationStore resolves applications by id. GetApplication returns an
// error wrapping [ErrNotFound] for unknown ids.
type ApplicationStore interface {
	GetApplication(ctx context.Context, id string) (Application, error)
}

// StaticApplications is an in-memory [ApplicationStore] keyed by id.
type StaticApplications map[string]Application

func (s StaticApplications) GetApplication(_ context.Context, id string) (Application, error) {
	app, ok := s[id]
	if !ok {
		return Application{}, ErrNotFound
	}
	return app, nil
}

// Session identifies one login of a subject at an application.
type Session struct {
	ID          string
	Subject     string
	Application string
}

// TokenPair is returned by IssuePair, Login and Refresh.
type TokenPair struct {
	SessionID        string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Claims is the validated content of a token. Permissions were parsed once
// when the token was decoded and cannot change for the token's lifetime.
type Claims struct {
	Subject     string
	Application string
	Scope       string
	SessionID   string
	TokenID     string
	Type        TokenType
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Permissions permission.Snapshot
}

// Allows reports whether the claims' permission snapshot authorizes action on
// resource. Unscoped resource names are resolved in the claims' scope.
func (c *Claims) Allows(resource, action string) bool {
	if c == nil {
		return false
	}
	return permission.Authorize(c.Permissions, c.Scope, resource, action)
}

func claimsFromToken(tc *jwt.Claims) (*Claims, error) {
	perms, err := permission.NewSnapshot(tc.Permissions)
	if err != nil {
		return nil, err
	}
	claims := &Claims{
		Subject:     tc.Subject,
		Application: tc.Application,
		Scope:       tc.Scope,
		SessionID:   tc.SessionID,
		TokenID:     tc.ID,
		Type:        tc.Type,
		Permissions: perms,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims, nil
}

// RateLimitResult is the outcome of [Engine.Allow].
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// FailOpen reports that the limiter could not reach the cache and admitted the request.
	FailOpen bool
}
