// Package migrations embeds the schema of the SQL-backed key-value stores.
package migrations

import "embed"

// SQLite holds the migrations applied to the sqlite backend.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds the migrations applied to the postgres backend.
//
//go:embed postgres/*.sql
var Postgres embed.FS
