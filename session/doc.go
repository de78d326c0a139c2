// Package session keeps the cache-side state of issued token pairs: the session
// records that make refresh tokens single-use, the per-subject session index,
// the access-token blacklist, and per-session revocation markers.
//
// # Key layout
//
//	<prefix>:s:<app>:<sub>:<sid>   current refresh jti of a session (TTL = refresh TTL)
//	<prefix>:u:<app>:<sub>         set of session ids for a subject at an application
//	<prefix>:bl:<jti>              blacklisted access token (TTL = remaining lifetime)
//	<prefix>:rv:<sid>              revoked session marker (TTL = access TTL)
//
// Records are keyed by application and subject, so a session of application A
// can never be rotated or listed through application B.
//
// # Rotation
//
// [Store.Rotate] is a single compare-and-swap on the session record. Exactly one
// of several concurrent rotations of the same refresh token wins; the others
// observe a mismatch and are treated as reuse, which revokes the session.
//
// # What this package must NOT do
//
//   - Import authcore, jwt, or permission (no upward imports).
//   - Parse or sign tokens.
//   - Decide whether a cache outage fails open or closed; errors are returned as-is.
package session
