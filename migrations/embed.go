// Package migrations holds the tenant schema migrations applied by db.Migrator.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
