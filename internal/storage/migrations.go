package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial review schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS review_tasks (
					id TEXT PRIMARY KEY,
					source_file_id TEXT NOT NULL,
					status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'needs_info')),
					reason TEXT NOT NULL DEFAULT '',
					assigned_to TEXT NOT NULL DEFAULT '',
					reviewer TEXT NOT NULL DEFAULT '',
					proposed_specifications TEXT NOT NULL,
					finalized_specifications TEXT,
					confidence REAL NOT NULL DEFAULT 0 CHECK (confidence >= 0 AND confidence <= 1),
					source_version INTEGER NOT NULL DEFAULT 0,
					revision INTEGER NOT NULL DEFAULT 0,
					created_at INTEGER NOT NULL,
					updated_at INTEGER NOT NULL,
					resolved_at INTEGER
				)`,
				// At most one open task per source file.
				`CREATE UNIQUE INDEX idx_review_tasks_open_source ON review_tasks(source_file_id)
					WHERE status IN ('pending', 'needs_info')`,
				`CREATE INDEX idx_review_tasks_status ON review_tasks(status)`,
				`CREATE INDEX idx_review_tasks_created_at ON review_tasks(created_at)`,

				`CREATE TABLE IF NOT EXISTS review_comments (
					task_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					author TEXT NOT NULL DEFAULT '',
					body TEXT NOT NULL,
					created_at INTEGER NOT NULL,
					PRIMARY KEY (task_id, position),
					FOREIGN KEY (task_id) REFERENCES review_tasks(id) ON DELETE CASCADE
				)`,

				`CREATE TABLE IF NOT EXISTS review_logs (
					seq INTEGER PRIMARY KEY AUTOINCREMENT,
					id TEXT UNIQUE NOT NULL,
					task_id TEXT NOT NULL,
					correlation_id TEXT NOT NULL DEFAULT '',
					action TEXT NOT NULL,
					actor TEXT NOT NULL DEFAULT '',
					payload TEXT NOT NULL,
					timestamp INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_review_logs_task ON review_logs(task_id)`,

				`CREATE TABLE IF NOT EXISTS extraction_logs (
					seq INTEGER PRIMARY KEY AUTOINCREMENT,
					id TEXT UNIQUE NOT NULL,
					source_file_id TEXT NOT NULL DEFAULT '',
					correlation_id TEXT NOT NULL DEFAULT '',
					action TEXT NOT NULL,
					actor TEXT NOT NULL DEFAULT '',
					payload TEXT NOT NULL,
					timestamp INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_extraction_logs_source ON extraction_logs(source_file_id)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Make audit logs append-only",
		Up: func(tx *sql.Tx) error {
			var queries []string
			for _, table := range []string{"review_logs", "extraction_logs"} {
				for _, op := range []string{"UPDATE", "DELETE"} {
					queries = append(queries, fmt.Sprintf(
						`CREATE TRIGGER IF NOT EXISTS %[1]s_no_%[2]s BEFORE %[3]s ON %[1]s
						BEGIN
							SELECT RAISE(ABORT, '%[1]s is append-only');
						END`,
						table, strings.ToLower(op), op))
				}
			}
			return execAll(tx, queries)
		},
	},
	{
		Version:     3,
		Description: "Add snapshot metadata",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS snapshot_metadata (
					name TEXT PRIMARY KEY,
					description TEXT NOT NULL DEFAULT '',
					created_at INTEGER NOT NULL,
					file_size INTEGER NOT NULL DEFAULT 0,
					task_count INTEGER NOT NULL DEFAULT 0,
					review_log_count INTEGER NOT NULL DEFAULT 0,
					extraction_log_count INTEGER NOT NULL DEFAULT 0,
					schema_version INTEGER NOT NULL DEFAULT 0,
					is_auto INTEGER NOT NULL DEFAULT 0
				)`,
			})
		},
	},
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// Migrate brings the schema up to ExpectedSchemaVersion. Each migration runs
// in its own transaction together with the user_version bump.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the user_version of the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
