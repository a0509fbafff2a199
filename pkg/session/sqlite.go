package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"riskadvisor/pkg/logx"
)

// Fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists the current session and the report archive in a SQLite file,
// so an interrupted workflow can be resumed after a restart.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *logx.Logger
}

// OpenSQLite opens (creating if needed) the database at path and migrates its schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger := logx.NewLogger("session")
	logger.Debug("session store opened: %s", path)
	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// dsnPathEscaper escapes the characters SQLite URI filenames treat as delimiters.
var dsnPathEscaper = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

func sqliteDSN(path string) string {
	return "file:" + dsnPathEscaper.Replace(path) +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Save replaces the current session.
func (s *SQLiteStore) Save(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (slot, session_id, title, description, budget, budget_undecided, updated_at)
		VALUES ('current', ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			session_id = excluded.session_id,
			title = excluded.title,
			description = excluded.description,
			budget = excluded.budget,
			budget_undecided = excluded.budget_undecided,
			updated_at = excluded.updated_at
	`, sess.ID, sess.Brief.Title, sess.Brief.Description, sess.Brief.Budget,
		boolToInt(sess.Brief.BudgetUndecided), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	return nil
}

// Load returns the current session or ErrNoSession.
func (s *SQLiteStore) Load(ctx context.Context) (Session, error) {
	var (
		sess      Session
		undecided int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, title, description, budget, budget_undecided
		FROM sessions WHERE slot = 'current'
	`).Scan(&sess.ID, &sess.Brief.Title, &sess.Brief.Description, &sess.Brief.Budget, &undecided)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	sess.Brief.BudgetUndecided = undecided != 0
	return sess, nil
}

// Clear drops the current session.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE slot = 'current'`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Archive stores a completed report. A missing ID gets a fresh UUID.
func (s *SQLiteStore) Archive(ctx context.Context, r ArchivedReport) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	report := string(r.Report)
	if report == "" {
		report = "{}"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, run_id, session_id, title, description, budget, budget_undecided, report_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.RunID, r.SessionID, r.Brief.Title, r.Brief.Description, r.Brief.Budget,
		boolToInt(r.Brief.BudgetUndecided), report, r.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to archive report for session %s: %w", r.SessionID, err)
	}
	s.logger.Debug("archived report %s (run %s)", r.ID, r.RunID)
	return nil
}

// ListReports returns archived reports, newest first. limit <= 0 returns all.
func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]ArchivedReport, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, session_id, title, description, budget, budget_undecided, report_json, created_at
		FROM reports ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reports []ArchivedReport
	for rows.Next() {
		var (
			r         ArchivedReport
			undecided int
			report    string
			created   string
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.SessionID, &r.Brief.Title, &r.Brief.Description,
			&r.Brief.Budget, &undecided, &report, &created); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		r.Brief.BudgetUndecided = undecided != 0
		r.Report = []byte(report)
		if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("report %s has invalid created_at %q: %w", r.ID, created, err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return reports, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
