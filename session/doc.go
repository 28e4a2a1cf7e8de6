// Package session keeps refresh-session state in the ephemeral store: one
// record per live session, a per-user index of session ids, blacklist
// entries for revoked sessions, and the per-user password-changed marker.
//
// # Record layout
//
//	refresh:<userId>:<sessionId>   issued-at unix seconds, TTL = refresh lifetime
//	session:<userId>               set of session ids, TTL refreshed on every add
//	blacklist:<sessionId>          "1", TTL = remaining refresh lifetime (min 1s)
//	password_changed:<userId>      unix seconds of the latest change
//
// A record's existence is the session's validity. An index member whose
// record is gone is treated as expired and pruned on read.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Session] model. It does NOT parse
// JWTs or decide what a revoked session means to a caller. Those belong to
// the tokens package and the Engine.
//
// # What this package must NOT do
//
//   - Import authcore, jwt or tokens (no upward imports).
//   - Store token strings or other secrets.
package session
