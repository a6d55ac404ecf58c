package database

import (
	"context"
	"database/sql"
	"fmt"

	"shared-tasks/pkg/logger"
)

var schemas = map[string][]string{
	DriverPostgres: postgresSchema,
	DriverPgx:      postgresSchema,
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS tasks (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			title      TEXT     NOT NULL,
			completed  BOOLEAN  NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
		)`,
		`CREATE INDEX IF NOT EXISTS tasks_created_at_idx ON tasks (created_at DESC, id DESC)`,
	},
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id         BIGSERIAL   PRIMARY KEY,
		title      TEXT        NOT NULL CHECK (length(btrim(title)) > 0),
		completed  BOOLEAN     NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_created_at_idx ON tasks (created_at DESC, id DESC)`,
}

// MigrateOrCreateSchema creates the tasks table and its ordering index if they are missing.
func MigrateOrCreateSchema(ctx context.Context, db *sql.DB, driver string) error {
	stmts, ok := schemas[driver]
	if !ok {
		return fmt.Errorf("no schema for driver %q", driver)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	logger.Info(ctx, "Schema ensured", "driver", driver)
	return nil
}
