package history

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  project_key TEXT NOT NULL DEFAULT 'default',
  command TEXT NOT NULL DEFAULT '',
  ts_utc TEXT NOT NULL,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  file_count INTEGER NOT NULL,
  pattern_count INTEGER NOT NULL,
  issue_count INTEGER NOT NULL,
  failure_count INTEGER NOT NULL DEFAULT 0,
  fingerprint TEXT NOT NULL DEFAULT '',
  created_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(ts_utc);
CREATE INDEX IF NOT EXISTS idx_runs_project_key ON runs(project_key);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE runs ADD COLUMN index_version INTEGER NOT NULL DEFAULT 0;
CREATE TABLE IF NOT EXISTS run_patterns (
  run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  pattern TEXT NOT NULL,
  issue_count INTEGER NOT NULL,
  PRIMARY KEY (run_id, pattern)
);
`,
	},
}

// EnsureSchema applies every migration newer than the database's recorded
// version, each in its own transaction.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("history schema %d is newer than this build (%d)", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version > current {
			if err := applyMigration(db, m); err != nil {
				return fmt.Errorf("migration %d: %w", m.version, err)
			}
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(m.sql); err != nil {
		return err
	}
	if _, err = tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
		return err
	}
	return tx.Commit()
}
