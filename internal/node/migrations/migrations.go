// Package migrations embeds the goose migrations for the node database.
// The statements are portable between SQLite and PostgreSQL.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
