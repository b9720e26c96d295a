// Package migrations embeds the schema of every supported storage backend.
package migrations

import "embed"

// SQLite and Postgres are versioned goose migrations.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

//go:embed postgres/*.sql
var Postgres embed.FS

// YDB has no goose dialect, its schema is applied statement by statement.
//
//go:embed ydb/schema.yql
var YDBSchema string
