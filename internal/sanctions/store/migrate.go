package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed schema.sql
var schemaSQL string

// optionalStatements enable the fuzzy stage. A database without pg_trgm still
// serves exact and vector search; the fuzzy stage then fails and is skipped.
var optionalStatements = []struct {
	name  string
	query string
}{
	{name: "pg_trgm extension", query: `CREATE EXTENSION IF NOT EXISTS pg_trgm`},
	{name: "trigram index", query: `CREATE INDEX IF NOT EXISTS sanctions_entity_name_trgm_idx ON sanctions USING gin (entity_name gin_trgm_ops)`},
}

// Migrate creates the schema. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	for _, stmt := range optionalStatements {
		if _, err := db.ExecContext(ctx, stmt.query); err != nil {
			logger.Warn("optional schema step failed", "step", stmt.name, "error", err)
			continue
		}
	}
	return nil
}
