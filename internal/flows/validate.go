package flows

import (
	"context"

	"github.com/MrEthical07/authcore/jwt"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	// ValidateFailureParse covers signature, expiry and malformed tokens; Err
	// holds the jwt package error.
	ValidateFailureParse
	ValidateFailureWrongType
	ValidateFailureRevoked
	ValidateFailureRevocationUnavailable
)

// ValidateResult returns either claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
	// FailOpen reports that the revocation lookup failed and policy admitted the token.
	FailOpen bool
}

type ValidateRevocationStore interface {
	IsRevoked(ctx context.Context, jti, sid string) (bool, error)
}

// ValidateDeps captures validation dependencies.
type ValidateDeps struct {
	Parse func(string) (*jwt.Claims, error)
	// RevocationStore is nil for stateless validation.
	RevocationStore ValidateRevocationStore
	// FailOpen admits tokens when the revocation lookup errors.
	FailOpen bool
}

// Stateless returns a copy of deps that skips the revocation lookup.
func (d ValidateDeps) Stateless() ValidateDeps {
	d.RevocationStore = nil
	return d
}

// RunValidate checks, in order: signature and integrity, expiry, token type,
// and finally the blacklist/revoked-session lookup.
func RunValidate(ctx context.Context, tokenStr string, expected jwt.TokenType, deps ValidateDeps) ValidateResult {
	claims, err := deps.Parse(tokenStr)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureParse, Err: err}
	}
	if claims.Type != expected {
		return ValidateResult{Failure: ValidateFailureWrongType, Claims: claims}
	}

	if deps.RevocationStore == nil {
		return ValidateResult{Claims: claims}
	}

	revoked, err := deps.RevocationStore.IsRevoked(ctx, claims.ID, claims.SessionID)
	if err != nil {
		if deps.FailOpen {
			return ValidateResult{Claims: claims, Err: err, FailOpen: true}
		}
		return ValidateResult{Failure: ValidateFailureRevocationUnavailable, Err: err, Claims: claims}
	}
	if revoked {
		return ValidateResult{Failure: ValidateFailureRevoked, Claims: claims}
	}

	return ValidateResult{Claims: claims}
}
