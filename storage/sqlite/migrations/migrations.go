// Package migrations embeds the SQL schema for the sqlite cache adapter.
package migrations

import "embed"

// FS holds the *.sql migration files applied in filename order.
//
//go:embed *.sql
var FS embed.FS
