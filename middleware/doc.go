// Package middleware exposes HTTP middleware adapters over authcore.Engine.
//
// # Guards
//
//   - [Guard] validates the bearer access token with Engine.ValidateAccess
//     and injects the resulting claims into the request context.
//   - [RequireRole] rejects authenticated requests whose role is not allowed.
//   - [ClientIP] attaches the remote address so Login can throttle per IP.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself. All decisions are delegated to the
// Engine, and it never parses JWTs or touches the ephemeral store directly.
package middleware
