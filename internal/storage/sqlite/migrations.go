package sqlite

import (
	"context"
	"database/sql"
)

// Migrate runs all database migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		// Plans table
		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			tasks_json TEXT NOT NULL,
			layout_json TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		// Snapshots table: one durable run snapshot per plan
		`CREATE TABLE IF NOT EXISTS snapshots (
			plan_id TEXT PRIMARY KEY,
			tasks_json TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE CASCADE
		)`,

		// Artifacts table: one task output per (plan, task)
		`CREATE TABLE IF NOT EXISTS artifacts (
			plan_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			data_json TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (plan_id, task_id)
		)`,

		// Validation reports table
		`CREATE TABLE IF NOT EXISTS validation_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plan_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			passed INTEGER NOT NULL,
			report TEXT,
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_validation_reports_task
			ON validation_reports(plan_id, task_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}
