// Package internal contains helpers private to authcore: secure random
// generation of one-time codes and session identifiers.
//
// # Sub-packages
//
//   - rate: fixed-window attempt counters on the ephemeral store
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Use math/rand for anything security relevant.
package internal
