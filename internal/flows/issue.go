package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/session"
)

// IssueFailureKind classifies issuance failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureSign
	IssueFailureStore
)

// IssueRequest names who the pair is for. Permissions must already be a
// validated snapshot.
type IssueRequest struct {
	Subject     string
	Application string
	Scope       string
	Permissions []string
}

// IssueResult carries either the new pair or failure metadata.
type IssueResult struct {
	Failure       IssueFailureKind
	Err           error
	SessionID     string
	AccessToken   string
	RefreshToken  string
	AccessClaims  jwt.Claims
	RefreshClaims jwt.Claims
}

type IssueSessionStore interface {
	Create(ctx context.Context, sess session.Session, ttl time.Duration) error
}

// IssueDeps captures issuance dependencies.
type IssueDeps struct {
	NewID        func() string
	Sign         func(jwt.Claims, time.Duration) (string, jwt.Claims, error)
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	SessionStore IssueSessionStore
}

// RunIssue starts a new session and signs its first access/refresh pair.
func RunIssue(ctx context.Context, req IssueRequest, deps IssueDeps) IssueResult {
	base := jwt.Claims{
		Application: req.Application,
		Scope:       req.Scope,
		SessionID:   deps.NewID(),
		Permissions: req.Permissions,
	}
	base.Subject = req.Subject

	pair, err := signPair(base, deps.NewID, deps.Sign, deps.AccessTTL, deps.RefreshTTL)
	if err != nil {
		return IssueResult{Failure: IssueFailureSign, Err: err, SessionID: base.SessionID}
	}

	err = deps.SessionStore.Create(ctx, session.Session{
		ID:          base.SessionID,
		Subject:     base.Subject,
		Application: base.Application,
		RefreshID:   pair.RefreshClaims.ID,
	}, deps.RefreshTTL)
	if err != nil {
		return IssueResult{Failure: IssueFailureStore, Err: err, SessionID: base.SessionID}
	}

	return pair
}

// signPair signs an access and a refresh token sharing base's identity,
// session and permission snapshot, each with a fresh jti.
func signPair(
	base jwt.Claims,
	newID func() string,
	sign func(jwt.Claims, time.Duration) (string, jwt.Claims, error),
	accessTTL, refreshTTL time.Duration,
) (IssueResult, error) {
	accessClaims := base
	accessClaims.ID = newID()
	accessClaims.Type = jwt.TypeAccess
	access, accessClaims, err := sign(accessClaims, accessTTL)
	if err != nil {
		return IssueResult{}, err
	}

	refreshClaims := base
	refreshClaims.ID = newID()
	refreshClaims.Type = jwt.TypeRefresh
	refresh, refreshClaims, err := sign(refreshClaims, refreshTTL)
	if err != nil {
		return IssueResult{}, err
	}

	return IssueResult{
		SessionID:     base.SessionID,
		AccessToken:   access,
		RefreshToken:  refresh,
		AccessClaims:  accessClaims,
		RefreshClaims: refreshClaims,
	}, nil
}

// baseFrom copies the identity, session and permission snapshot of claims.
// Registered time claims and the jti are left for the signer.
func baseFrom(claims *jwt.Claims) jwt.Claims {
	base := jwt.Claims{
		Application: claims.Application,
		Scope:       claims.Scope,
		SessionID:   claims.SessionID,
		Permissions: append([]string(nil), claims.Permissions...),
	}
	base.Subject = claims.Subject
	return base
}
