// Package migrations embeds the PostgreSQL schema of both services.
package migrations

import "embed"

// FS holds the numbered migration files, e.g. 001_alerts.sql.
//
//go:embed *.sql
var FS embed.FS
