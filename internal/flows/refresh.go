package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureParse
	RefreshFailureWrongType
	RefreshFailureSign
	RefreshFailureReuse
	RefreshFailureSessionNotFound
	RefreshFailureRotate
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	// Presented holds the claims of the consumed refresh token once it parsed.
	Presented *jwt.Claims
	Pair      IssueResult
}

type RefreshSessionStore interface {
	Rotate(ctx context.Context, sess session.Session, next string, ttl time.Duration) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Parse        func(string) (*jwt.Claims, error)
	NewID        func() string
	Sign         func(jwt.Claims, time.Duration) (string, jwt.Claims, error)
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	SessionStore RefreshSessionStore
}

// RunRefresh consumes refreshToken and issues the next pair of its session.
//
// The new pair is signed before the session record is swapped so that a
// successful swap is never followed by a signing failure.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	presented, err := deps.Parse(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureParse, Err: err}
	}
	if presented.Type != jwt.TypeRefresh {
		return RefreshResult{Failure: RefreshFailureWrongType, Presented: presented}
	}

	pair, err := signPair(baseFrom(presented), deps.NewID, deps.Sign, deps.AccessTTL, deps.RefreshTTL)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureSign, Err: err, Presented: presented}
	}

	err = deps.SessionStore.Rotate(ctx, session.Session{
		ID:          presented.SessionID,
		Subject:     presented.Subject,
		Application: presented.Application,
		RefreshID:   presented.ID,
	}, pair.RefreshClaims.ID, deps.RefreshTTL)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrReused):
			return RefreshResult{Failure: RefreshFailureReuse, Err: err, Presented: presented}
		case errors.Is(err, session.ErrNotFound):
			return RefreshResult{Failure: RefreshFailureSessionNotFound, Err: err, Presented: presented}
		default:
			return RefreshResult{Failure: RefreshFailureRotate, Err: err, Presented: presented}
		}
	}

	return RefreshResult{Presented: presented, Pair: pair}
}
