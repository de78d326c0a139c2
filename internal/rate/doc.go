// Package rate implements the fixed-window request limiter used by the engine
// and the HTTP rate-limit middleware.
//
// # Window semantics
//
// Time is cut into fixed windows of length W starting at the Unix epoch. Each
// identity owns one counter per window under the key
//
//	rate:<identity>:<windowIndex>
//
// incremented atomically in the shared cache with TTL W. Requests 1..Q of a
// window are allowed and the rest denied until the next window starts. Bursts
// of up to 2Q across a window boundary are possible.
//
// # Cache outages
//
// The limiter fails open: when the cache errors, the request is allowed, the
// outage is logged (throttled) and counted through the OnFailOpen hook.
//
// # What this package must NOT do
//
//   - Be imported outside the authcore module.
//   - Keep per-identity state in process memory.
package rate
