// Package migrations embeds the SQL migration files for the story store.
package migrations

import "embed"

// FS contains the story schema migrations.
//
//go:embed *.sql
var FS embed.FS
