// Package cache defines the Session Cache contract consumed by the token authority
// and the rate limiter, and a Redis implementation of it.
//
// # Atomic operations
//
// Two operations must be atomic on the server side and are implemented as Lua
// scripts in the Redis backend:
//
//   - [Cache.IncrWindow]: INCR plus PEXPIRE on the first hit, so concurrent bursts
//     never undercount and the counter always carries a TTL.
//   - [Cache.CompareAndSwap]: compare the stored value and replace it in one step,
//     so two callers presenting the same expected value cannot both win.
//
// # Deadlines
//
// Every call is bounded by the backend's operation timeout in addition to the
// caller's context. A slow cache surfaces as [ErrUnavailable], never as a stall.
//
// # What this package must NOT do
//
//   - Decide fail-open or fail-closed policy (callers own that).
//   - Import authcore, jwt, session, or permission.
package cache
