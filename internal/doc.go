// Package internal holds packages that are private to authcore.
//
// # Sub-packages
//
//   - flows: pure-function orchestrators for the Engine's token operations
//   - rate: fixed-window limiter over the shared cache
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
