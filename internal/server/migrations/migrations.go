// Package migrations embeds the goose SQL migrations for the coordinator schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
