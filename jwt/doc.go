// Package jwt signs and verifies the compact tokens issued by the authority.
//
// Access and refresh tokens share one claim layout ({sub, app, scp, sid, typ,
// exp, iat, jti, perms}); the typ claim is what keeps one from being accepted
// where the other is required. Parse verifies the signature before any claim is
// trusted and reports failures through four sentinel errors so callers can log
// the precise kind while answering clients generically.
package jwt
