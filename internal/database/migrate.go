package database

import (
	"database/sql"
	"embed"
	"fmt"
)

// Schemas are compiled into the binary so migration works regardless of
// working directory, in tests, CI, and production.
//
//go:embed schemas/*.sql
var schemaFiles embed.FS

// Migrate applies the embedded schema for this database.
// All statements are idempotent (CREATE IF NOT EXISTS), so this is safe to
// run on every startup.
func (db *DB) Migrate() error {
	schemaPath := fmt.Sprintf("schemas/%s_schema.sql", db.name)
	content, err := schemaFiles.ReadFile(schemaPath)
	if err != nil {
		// No schema for this database name - nothing to apply
		return nil
	}

	err = WithTransaction(db.conn, func(tx *sql.Tx) error {
		_, execErr := tx.Exec(string(content))
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to apply schema for %s: %w", db.name, err)
	}

	return nil
}
