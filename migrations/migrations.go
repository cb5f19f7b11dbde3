// Package migrations embeds the SQL schema applied by the postgres migrator.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
