// Package migrations embeds the goose SQL migrations applied on server start.
package migrations

import "embed"

// FS holds all *.sql migration files.
//
//go:embed *.sql
var FS embed.FS
