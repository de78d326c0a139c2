// Package middleware adapts an [authcore.Engine] to net/http.
//
// [Guard] authenticates the bearer access token and stores the validated
// claims in the request context. [RequirePermission] rejects requests whose
// claims do not grant a resource action. [RateLimit] counts requests per
// identity and reports the window through X-RateLimit-* headers.
//
// Every rejection is written with the generic message from
// [authcore.PublicMessage] so responses never reveal which check failed.
// The package makes no decisions of its own; it delegates to the Engine.
package middleware
