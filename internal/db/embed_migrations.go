package db

import "embed"

// MigrationFS embeds the SQL migrations of every schema under internal/db/migrations/<schema>.
// Used by the migrate runner (cmd/migrate).
//
//go:embed migrations/auth/*.sql migrations/snapshot/*.sql
var MigrationFS embed.FS

// Schemas lists the migration sets in MigrationFS. The auth service owns "auth"; every
// user-sync service owns its own "snapshot" database.
var Schemas = []string{"auth", "snapshot"}
