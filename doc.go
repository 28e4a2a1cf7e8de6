// Package authcore is an authentication and session-lifecycle core: credential
// verification, JWT access/refresh issuance with single-use rotation,
// revocation, password-change invalidation, one-time email codes and TOTP
// two-factor enrollment.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # State
//
// Short-lived state (session records, blacklist entries, codes, staged
// two-factor secrets and login tokens) lives in an ephemeral TTL store, Redis
// in production. Durable identity state lives behind [identity.Repository].
// Every revocation path is idempotent, and the store's delete count decides
// the winner wherever two requests race for the same single-use value.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. HTTP routing, cookies and request validation belong to the
// caller.
//
// # What this package must NOT do
//
//   - Hold package-level mutable state; everything is wired by the Builder.
//   - Log secrets, codes or tokens.
//   - Reveal whether an email is registered through Logout, ForgotPassword or
//     ResendVerification.
package authcore
