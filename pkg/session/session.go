// Package session holds the server-assigned analysis session and the brief it was
// started with, and archives completed reports.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrNoSession is returned when no session is stored.
var ErrNoSession = errors.New("no session stored")

// ProjectBrief is the user-submitted project description.
// Exactly one of Budget and BudgetUndecided is set on a valid brief.
type ProjectBrief struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Budget          string `json:"budget"`
	BudgetUndecided bool   `json:"budget_undecided"`
}

// Session correlates every call of one analysis run. It is always assigned by the service.
type Session struct {
	ID    string       `json:"session_id"`
	Brief ProjectBrief `json:"brief"`
}

// Valid reports whether the session carries an id.
func (s *Session) Valid() bool {
	return s != nil && s.ID != ""
}

// ArchivedReport is a completed run kept after its session is discarded.
type ArchivedReport struct {
	ID        string          `json:"id"`
	RunID     string          `json:"run_id"`
	SessionID string          `json:"session_id"`
	Brief     ProjectBrief    `json:"brief"`
	Report    json.RawMessage `json:"report"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store holds at most one current session.
type Store interface {
	Save(ctx context.Context, s Session) error
	// Load returns ErrNoSession when nothing is stored.
	Load(ctx context.Context) (Session, error)
	Clear(ctx context.Context) error
}

// Archiver is implemented by stores that keep completed reports.
type Archiver interface {
	Archive(ctx context.Context, r ArchivedReport) error
	ListReports(ctx context.Context, limit int) ([]ArchivedReport, error)
}

// MemoryStore is a process-local Store and Archiver.
type MemoryStore struct {
	mu      sync.Mutex
	current *Session
	reports []ArchivedReport
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save replaces the current session.
func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &s
	return nil
}

// Load returns the current session.
func (m *MemoryStore) Load(_ context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, ErrNoSession
	}
	return *m.current, nil
}

// Clear drops the current session.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	return nil
}

// Archive keeps a completed report.
func (m *MemoryStore) Archive(_ context.Context, r ArchivedReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.reports = append(m.reports, r)
	return nil
}

// ListReports returns archived reports, newest first. limit <= 0 returns all.
func (m *MemoryStore) ListReports(_ context.Context, limit int) ([]ArchivedReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ArchivedReport, 0, len(m.reports))
	for i := len(m.reports) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.reports[i])
	}
	return out, nil
}
