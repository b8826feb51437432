package migrations

import "embed"

// FS contains the embedded Postgres migrations for the proposal service.
//
//go:embed *.sql
var FS embed.FS
