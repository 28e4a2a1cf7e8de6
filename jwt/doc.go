// Package jwt signs and parses the two JWT kinds authcore issues: short-lived
// access tokens and refresh tokens bound to a server-side session record.
//
// Access and refresh tokens are signed with separate keys so that a leaked
// access key cannot mint refresh tokens. Parsing is strict: the algorithm is
// pinned per key, iat is required and may not be in the future, and issuer
// and audience are enforced when configured.
//
// This package does not consult the session store. Revocation, blacklist and
// password-change checks belong to the tokens package.
package jwt
