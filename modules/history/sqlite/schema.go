package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application. The primary key on
// (destination, timestamp, name) makes repeated flushes of the same records
// replace rather than duplicate.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS turns (
		destination TEXT NOT NULL,
		timestamp   TEXT NOT NULL,
		name        TEXT NOT NULL,
		model       TEXT NOT NULL,
		prompt      TEXT NOT NULL DEFAULT '',
		response    TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (destination, timestamp, name)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_turns_destination ON turns(destination, timestamp)`,
}

// migrate applies the schema.
func migrate(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(context.TODO(), stmt); err != nil {
			return fmt.Errorf("sqlite: migrate schema: %w", err)
		}
	}
	return nil
}
