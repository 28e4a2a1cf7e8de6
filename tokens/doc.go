// Package tokens issues, verifies, rotates and revokes the access/refresh
// token pairs authcore hands to clients.
//
// A refresh token is valid while its session record exists and its session
// id is not blacklisted. Each refresh consumes the presented session and
// mints a new one; the session record's delete count decides the single
// winner when the same token is presented concurrently.
//
// Access tokens minted as part of a pair carry jti = the session id, so
// revoking the session also revokes the paired access token.
package tokens
