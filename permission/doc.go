// Package permission implements the permission grammar, immutable permission
// snapshots, and the pure authorization decision used on every request.
//
// # Grammar
//
// A permission is "<scope>_<resource>:<action>". The action may be "*" to grant
// every action on the resource. Two sentinels sit outside the grammar: the
// universal wildcard "*" and the super-admin permission [SuperAdmin].
//
// # Precedence
//
// [Evaluate] checks, first match wins: universal wildcard, super-admin,
// resource-wide wildcard, exact permission. Anything else is a deny.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authcore, jwt, or session.
//   - Mutate a [Snapshot] after construction.
package permission
