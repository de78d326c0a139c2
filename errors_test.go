package authcore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/MrEthical07/authcore/audit"
)

func TestErrorClasses(t *testing.T) {
	tests := []struct {
		err   error
		class error
	}{
		{ErrTokenExpired, ErrUnauthenticated},
		{ErrTokenInvalidSignature, ErrUnauthenticated},
		{ErrTokenInvalidType, ErrUnauthenticated},
		{ErrTokenMalformed, ErrUnauthenticated},
		{ErrTokenRevoked, ErrUnauthenticated},
		{ErrRefreshReused, ErrUnauthenticated},
		{ErrInvalidCredentials, ErrUnauthenticated},
		{ErrSessionNotFound, ErrUnauthenticated},
		{ErrRevocationUnavailable, ErrUnauthenticated},
		{ErrPermissionDenied, ErrForbidden},
		{ErrApplicationInactive, ErrForbidden},
		{ErrPrincipalInactive, ErrForbidden},
		{ErrQuotaExceeded, ErrRateLimited},
		{auditError(audit.ErrInvalidFilter), ErrInvalidInput},
	}

	classes := []error{ErrUnauthenticated, ErrForbidden, ErrRateLimited, ErrInvalidInput}
	for _, tc := range tests {
		wrapped := fmt.Errorf("handler: %w", tc.err)
		for _, class := range classes {
			if got, want := errors.Is(wrapped, class), class == tc.class; got != want {
				t.Fatalf("errors.Is(%v, %v) = %v, want %v", tc.err, class, got, want)
			}
		}
	}
}

func TestPublicMessageIsGeneric(t *testing.T) {
	auth := []error{
		ErrTokenExpired,
		ErrTokenInvalidSignature,
		ErrTokenMalformed,
		ErrRefreshReused,
		ErrInvalidCredentials,
	}
	for _, err := range auth {
		if got := PublicMessage(err); got != "unauthorized" {
			t.Fatalf("PublicMessage(%v) = %q", err, got)
		}
	}
	if PublicMessage(ErrPermissionDenied) != "forbidden" {
		t.Fatal("unexpected forbidden message")
	}
	if PublicMessage(errors.New("db down")) != "internal error" {
		t.Fatal("unexpected internal message")
	}
	if PublicMessage(nil) != "" {
		t.Fatal("nil error must have no message")
	}
}

func TestReasonKeepsKind(t *testing.T) {
	if reasonOf(ErrTokenExpired) == reasonOf(ErrTokenInvalidSignature) {
		t.Fatal("internal reasons must distinguish failure kinds")
	}
	if reasonOf(fmt.Errorf("%w: %w", ErrRevocationUnavailable, errors.New("dial"))) != "revocation_unavailable" {
		t.Fatal("unexpected reason for revocation outage")
	}
}
