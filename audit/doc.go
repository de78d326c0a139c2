// Package audit records security-relevant events and serves them back for
// forensic review.
//
// # Components
//
//   - [Event] and [Action]: the immutable audit record and its action enum.
//   - [Store]: persistence contract, implemented by [SQLStore] (Postgres through
//     the pgx database/sql driver) and [MemoryStore].
//   - [Dispatcher]: bounded asynchronous writer with a drop-if-full policy.
//   - [Pipeline]: Record, Query, Aggregate and Export over a Store.
//
// # Write path
//
// Record never fails and never waits for persistence. Events are queued on a
// bounded channel; when the queue is full they are dropped and counted. Store
// failures are logged and counted, never returned.
//
// # Architecture boundaries
//
// This package owns event persistence and reporting. It does NOT decide which
// events to emit; that belongs to the Engine.
//
// # What this package must NOT do
//
//   - Update or delete stored events.
//   - Import authcore or any internal package.
//   - Retry failed writes from an unbounded in-memory queue.
package audit
