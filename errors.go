package authcore

import (
	"errors"

	"github.com/MrEthical07/authcore/audit"
)

// Error classes. Every kind below unwraps to exactly one of them, so callers
// can map a failure to a response with a single errors.Is check.
var (
	// ErrUnauthenticated is the class of every credential and token failure.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is the class of authorization failures.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited is the class of quota failures.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidInput is the class of malformed caller input such as audit filters.
	ErrInvalidInput = errors.New("invalid input")
)

// kindError is a failure kind that belongs to a class.
type kindError struct {
	msg   string
	class error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.class }

func newKind(msg string, class error) error {
	return &kindError{msg: msg, class: class}
}

var (
	// ErrTokenExpired is returned once the token's exp has passed.
	ErrTokenExpired = newKind("token expired", ErrUnauthenticated)
	// ErrTokenInvalidSignature is returned when the signature or key id does not verify.
	ErrTokenInvalidSignature = newKind("token signature invalid", ErrUnauthenticated)
	// ErrTokenInvalidType is returned when a refresh token is presented where an
	// access token is required, or the other way around.
	ErrTokenInvalidType = newKind("token type invalid", ErrUnauthenticated)
	// ErrTokenMalformed covers undecodable tokens and tokens with invalid claims.
	ErrTokenMalformed = newKind("token malformed", ErrUnauthenticated)
	// ErrTokenRevoked is returned for blacklisted tokens and tokens of revoked sessions.
	ErrTokenRevoked = newKind("token revoked", ErrUnauthenticated)
	// ErrRefreshReused is returned when a consumed refresh token is presented
	// again. The session has been revoked by the time it is returned.
	ErrRefreshReused = newKind("refresh token reused", ErrUnauthenticated)
	ErrInvalidCredentials = newKind("invalid credentials", ErrUnauthenticated)
	ErrSessionNotFound    = newKind("session not found", ErrUnauthenticated)
	// ErrRevocationUnavailable is returned when the revocation lookup failed
	// and Policy.RevocationCheckFailOpen is false.
	ErrRevocationUnavailable = newKind("revocation check unavailable", ErrUnauthenticated)

	ErrPermissionDenied    = newKind("permission denied", ErrForbidden)
	ErrApplicationInactive = newKind("application inactive", ErrForbidden)
	ErrApplicationNotFound = newKind("application not found", ErrForbidden)
	ErrPrincipalInactive   = newKind("principal inactive", ErrForbidden)

	ErrQuotaExceeded = newKind("quota exceeded", ErrRateLimited)

	// ErrAuditWriteFailed is only ever logged. Record never returns it.
	ErrAuditWriteFailed = audit.ErrWriteFailed
	// ErrAuditUnavailable is returned by audit reads when the engine was built
	// without an audit store.
	ErrAuditUnavailable = errors.New("audit store unavailable")

	// ErrNotFound is returned by CredentialStore and ApplicationStore
	// implementations for unknown identifiers.
	ErrNotFound = errors.New("not found")

	ErrEngineNotReady = errors.New("engine not initialized")
)

// PublicMessage returns the text that may be shown to an end user for err.
// Authentication failures share one message so a caller cannot tell an
// expired token from a forged one.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrRateLimited):
		return "too many requests"
	case errors.Is(err, ErrInvalidInput):
		return "invalid request"
	default:
		return "internal error"
	}
}
