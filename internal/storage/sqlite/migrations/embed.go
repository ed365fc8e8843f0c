package migrations

import "embed"

// FS contains embedded SQLite migrations for postgate storage.
//
//go:embed *.sql
var FS embed.FS
