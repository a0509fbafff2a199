package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBrief() ProjectBrief {
	return ProjectBrief{Title: "App", Description: "desc", Budget: "500만원"}
}

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// storeContract runs the Store behavior every implementation must share.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, store.Save(ctx, Session{ID: "S1", Brief: testBrief()}))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Session{ID: "S1", Brief: testBrief()}, got)

	undecided := ProjectBrief{Title: "App", Description: "desc", BudgetUndecided: true}
	require.NoError(t, store.Save(ctx, Session{ID: "S2", Brief: undecided}))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "S2", got.ID)
	assert.True(t, got.Brief.BudgetUndecided)
	assert.Empty(t, got.Brief.Budget)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)
	require.NoError(t, store.Clear(ctx), "clearing an empty store is a no-op")
}

func archiveContract(t *testing.T, archiver Archiver) {
	t.Helper()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range 3 {
		require.NoError(t, archiver.Archive(ctx, ArchivedReport{
			ID:        fmt.Sprintf("r%d", i),
			RunID:     fmt.Sprintf("run-%d", i),
			SessionID: "S1",
			Brief:     testBrief(),
			Report:    json.RawMessage(fmt.Sprintf(`{"overall_risk_score":%d}`, i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := archiver.ListReports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r2", all[0].ID)
	assert.Equal(t, "r0", all[2].ID)
	assert.JSONEq(t, `{"overall_risk_score":2}`, string(all[0].Report))
	assert.Equal(t, testBrief(), all[0].Brief)
	assert.True(t, base.Add(2*time.Minute).Equal(all[0].CreatedAt))

	latest, err := archiver.ListReports(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "run-2", latest[0].RunID)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
	archiveContract(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	storeContract(t, openTestStore(t))
	archiveContract(t, openTestStore(t))
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, Session{ID: "S9", Brief: testBrief()}))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "S9", got.ID)
	assert.Equal(t, path, reopened.Path())
}

func TestSQLiteArchiveAssignsID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Archive(ctx, ArchivedReport{RunID: "run", SessionID: "S1", Brief: testBrief()}))
	reports, err := store.ListReports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Len(t, reports[0].ID, 36)
	assert.JSONEq(t, `{}`, string(reports[0].Report))
	assert.False(t, reports[0].CreatedAt.IsZero())
}

func TestSQLiteFreshSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")
	store, err := OpenSQLite(path)
	require.NoError(t, err)

	version, err := GetSchemaVersion(store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	var tables int
	require.NoError(t, store.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('sessions', 'reports')`,
	).Scan(&tables))
	assert.Equal(t, 2, tables)
	require.NoError(t, store.Close())

	// Reopening leaves the version alone.
	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()
	version, err = GetSchemaVersion(reopened.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestSQLitePathWithURIDelimiters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "what?", "100%#1")
	path := filepath.Join(dir, "session.db")
	ctx := context.Background()

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, Session{ID: "S3", Brief: testBrief()}))
	require.NoError(t, store.Close())

	_, err = os.Stat(path)
	require.NoError(t, err, "database must be created at the literal path")

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "S3", got.ID)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"file:/tmp/a%3Fb/c%23d/50%25.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		sqliteDSN("/tmp/a?b/c#d/50%.db"))
}

func TestSQLiteRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")

	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	_, err = db.Exec(schemaVersionTable)
	require.NoError(t, err)
	require.NoError(t, setSchemaVersion(db, CurrentSchemaVersion+1))
	require.NoError(t, db.Close())

	_, err = OpenSQLite(path)
	assert.Error(t, err)
}

func TestSessionValid(t *testing.T) {
	var nilSession *Session
	assert.False(t, nilSession.Valid())
	assert.False(t, (&Session{}).Valid())
	assert.True(t, (&Session{ID: "S1"}).Valid())
}
