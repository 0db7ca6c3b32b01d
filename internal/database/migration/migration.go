package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_search_history",
		SQL: `CREATE TABLE IF NOT EXISTS search_history (
  id           UUID        PRIMARY KEY,
  project_id   TEXT        NOT NULL,
  query        TEXT        NOT NULL,
  mode         TEXT        NOT NULL,
  targets      INTEGER     NOT NULL CHECK (targets >= 0),
  result_count INTEGER     NOT NULL CHECK (result_count >= 0),
  outcome      TEXT        NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_search_history_project_created",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_search_history_project_created ON search_history (project_id, created_at DESC);`,
	},
	{
		Name: "create_index_search_history_outcome",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_search_history_outcome ON search_history (outcome);`,
	},
}

// EnsureMigrated creates the search_history schema unless the table already exists.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	start := time.Now()
	log = log.With("component", "database")

	log.InfoContext(ctx, "db_migration_check", "status", "starting")

	var exists bool
	query := "SELECT to_regclass('public.search_history') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.ErrorContext(ctx, "db_migration_failed",
			"status", "error",
			"error_message", err.Error(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.InfoContext(ctx, "db_migration_skip",
			"status", "success",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.ErrorContext(ctx, "db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		log.DebugContext(ctx, "db_migration_step",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	log.InfoContext(ctx, "db_migration_success",
		"status", "success",
		"steps", len(steps),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
