// Package flows contains pure-function orchestrators for the token operations
// of the Engine.
//
// Each flow function (RunIssue, RunValidate, RunRefresh, RunLogout, RunLogin)
// accepts a typed dependency struct and returns a result carrying either the
// payload or a failure kind. The root package maps failure kinds to its public
// errors, audit events and metrics.
//
// # Architecture boundaries
//
// Flow functions coordinate the JWT manager and the session store. They do NOT
// own either; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcore (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
