package session

import (
	"database/sql"
	"errors"
	"fmt"
)

// CurrentSchemaVersion is the schema version this build creates. A database written by a
// newer build is refused rather than guessed at.
const CurrentSchemaVersion = 1

// initializeSchema creates the schema in an empty database and checks the version of an
// existing one. Version changes add a migration step here.
func initializeSchema(db *sql.DB) error {
	currentVersion, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	switch {
	case currentVersion == 0:
		return createSchema(db)
	case currentVersion > CurrentSchemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, CurrentSchemaVersion)
	case currentVersion < CurrentSchemaVersion:
		return fmt.Errorf("no migration from schema version %d to %d", currentVersion, CurrentSchemaVersion)
	default:
		return nil
	}
}

const schemaVersionTable = `CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
)`

// A single row keyed by slot holds the current session.
const sessionsTable = `CREATE TABLE IF NOT EXISTS sessions (
	slot TEXT PRIMARY KEY CHECK (slot = 'current'),
	session_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	budget TEXT NOT NULL DEFAULT '',
	budget_undecided INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
)`

const reportsTable = `CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	budget TEXT NOT NULL DEFAULT '',
	budget_undecided INTEGER NOT NULL DEFAULT 0,
	report_json TEXT NOT NULL,
	created_at TEXT NOT NULL
)`

const reportsIndex = `CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at)`

func createSchema(db *sql.DB) error {
	statements := []string{schemaVersionTable, sessionsTable, reportsTable, reportsIndex}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return setSchemaVersion(db, CurrentSchemaVersion)
}

func setSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("database exec error: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the current schema version from the database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(schemaVersionTable); err != nil {
		return 0, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("schema version scan error: %w", err)
	}
	return version, nil
}
