// Package store provides the ephemeral key/value contract used for every
// short-lived record in authcore: one-time codes, refresh session records,
// session indexes, blacklist entries, password-changed markers and 2FA
// staging.
//
// # Design
//
// Each operation is individually atomic. Sequences of operations are not
// transactional; callers compose them with idempotent, fail-closed semantics
// and rely on TTLs for cleanup. Delete reports how many keys it removed so
// callers can elect a single winner among concurrent consumers.
//
// # What this package must NOT do
//
//   - Interpret record contents (values are opaque strings).
//   - Log keys or values; keys embed user identifiers and values may be secrets.
package store
