// Package authcore is a central authentication and authorization core shared
// by many client applications. It issues and validates signed access/refresh
// token pairs, keeps sessions isolated per (subject, application), evaluates
// permission snapshots, throttles callers with a fixed-window limiter and
// records security events for forensic review.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy and value types ([Claims], [TokenPair], [Session]).
// Flow orchestration and rate limiting live under internal/. Token codec,
// session cache, permission grammar and the audit pipeline are importable
// sub-packages (jwt, cache, session, permission, audit).
//
// # Errors
//
// Every failure kind unwraps to one class: [ErrUnauthenticated],
// [ErrForbidden], [ErrRateLimited] or [ErrInvalidInput]. Use
// [PublicMessage] for text shown to end users; it never distinguishes one
// authentication failure from another. The precise kind is logged with a
// "reason" attribute.
//
// # Cache outages
//
// The rate limiter always fails open. The revocation lookup in Validate
// fails open only when Policy.RevocationCheckFailOpen is set; signature and
// expiry checks never depend on the cache.
//
// # What this package must NOT do
//
//   - Hash or store secrets; the [CredentialStore] owns that.
//   - Keep process-wide state. Metrics, logger and cache are injected through
//     the Builder.
//   - Let an audit write delay or fail the operation it describes.
package authcore
