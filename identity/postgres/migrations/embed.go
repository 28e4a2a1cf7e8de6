package migrations

import "embed"

// FS contains the embedded Postgres schema migrations for identities.
//
//go:embed *.sql
var FS embed.FS
