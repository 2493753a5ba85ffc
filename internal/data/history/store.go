package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"recast/internal/shared/util"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func normalizeProjectKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "default"
	}
	return key
}

// SaveRun stores run and its per-pattern counts. Saving a run ID twice
// replaces the earlier row.
func (s *Store) SaveRun(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id must not be empty")
	}
	run.ProjectKey = normalizeProjectKey(run.ProjectKey)
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}

	return s.withRetry("save run", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.Exec(`
INSERT INTO runs (
  id, project_key, command, ts_utc, duration_ms, file_count, pattern_count,
  issue_count, failure_count, fingerprint, index_version
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  project_key=excluded.project_key,
  command=excluded.command,
  ts_utc=excluded.ts_utc,
  duration_ms=excluded.duration_ms,
  file_count=excluded.file_count,
  pattern_count=excluded.pattern_count,
  issue_count=excluded.issue_count,
  failure_count=excluded.failure_count,
  fingerprint=excluded.fingerprint,
  index_version=excluded.index_version
`,
			run.ID,
			run.ProjectKey,
			run.Command,
			run.Timestamp.UTC().Format(time.RFC3339Nano),
			run.Duration.Milliseconds(),
			run.FileCount,
			run.PatternCount,
			run.IssueCount,
			run.FailureCount,
			strconv.FormatUint(run.Fingerprint, 16),
			int64(run.IndexVersion),
		); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM run_patterns WHERE run_id = ?`, run.ID); err != nil {
			return err
		}
		for _, name := range util.SortedStringKeys(run.Patterns) {
			if _, err := tx.Exec(
				`INSERT INTO run_patterns (run_id, pattern, issue_count) VALUES (?, ?, ?)`,
				run.ID, name, run.Patterns[name],
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// LoadRuns returns runs of projectKey at or after since, oldest first. A
// zero since loads everything.
func (s *Store) LoadRuns(projectKey string, since time.Time) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT
  id, project_key, command, ts_utc, duration_ms, file_count, pattern_count,
  issue_count, failure_count, fingerprint, index_version
FROM runs
WHERE project_key = ?`
	args := []any{normalizeProjectKey(projectKey)}
	if !since.IsZero() {
		query += " AND ts_utc >= ?"
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY ts_utc ASC, id ASC"

	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	byID := make(map[string]int)
	for rows.Next() {
		var (
			run            Run
			tsRaw          string
			durationMS     int64
			fingerprintRaw string
			indexVersion   int64
		)
		if err := rows.Scan(
			&run.ID,
			&run.ProjectKey,
			&run.Command,
			&tsRaw,
			&durationMS,
			&run.FileCount,
			&run.PatternCount,
			&run.IssueCount,
			&run.FailureCount,
			&fingerprintRaw,
			&indexVersion,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
		}
		run.Timestamp = ts.UTC()
		run.Duration = time.Duration(durationMS) * time.Millisecond
		run.IndexVersion = uint64(indexVersion)
		if fingerprintRaw != "" {
			if run.Fingerprint, err = strconv.ParseUint(fingerprintRaw, 16, 64); err != nil {
				return nil, fmt.Errorf("parse run fingerprint %q: %w", fingerprintRaw, err)
			}
		}
		run.Patterns = make(map[string]int)
		byID[run.ID] = len(runs)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	rows.Close()

	if len(runs) == 0 {
		return runs, nil
	}
	patternRows, err := s.db.Query(`
SELECT rp.run_id, rp.pattern, rp.issue_count
FROM run_patterns rp JOIN runs r ON r.id = rp.run_id
WHERE r.project_key = ?`, normalizeProjectKey(projectKey))
	if err != nil {
		return nil, fmt.Errorf("load run patterns: %w", err)
	}
	defer patternRows.Close()
	for patternRows.Next() {
		var (
			runID, pattern string
			count          int
		)
		if err := patternRows.Scan(&runID, &pattern, &count); err != nil {
			return nil, fmt.Errorf("scan run pattern row: %w", err)
		}
		if i, ok := byID[runID]; ok {
			runs[i].Patterns[pattern] = count
		}
	}
	if err := patternRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run pattern rows: %w", err)
	}
	return runs, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
