// Package migrations holds the Postgres schema for the condition store.
package migrations

import "embed"

// FS contains the numbered .sql files at its root.
//
//go:embed *.sql
var FS embed.FS
