package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Journal is an append-only SQLite table of audit events
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (creating if needed) the journal database at path
func OpenJournal(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	j := &Journal{db: db}
	if err := j.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			resource_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			request_id TEXT NOT NULL DEFAULT '',
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_resource ON audit_events(resource_id);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Append inserts one event
func (j *Journal) Append(ctx context.Context, ev Event) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("journal not initialized")
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO audit_events (action, resource_id, user_id, status, details, request_id, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?);`,
		ev.Action, ev.ResourceID, ev.UserID, ev.Status, ev.Details, ev.RequestID,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ForResource returns the events recorded for one property, oldest first
func (j *Journal) ForResource(ctx context.Context, resourceID string) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT action, resource_id, user_id, status, details, request_id, recorded_at
		 FROM audit_events WHERE resource_id = ? ORDER BY id ASC;`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var recorded string
		if err := rows.Scan(&ev.Action, &ev.ResourceID, &ev.UserID, &ev.Status, &ev.Details, &ev.RequestID, &recorded); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.At, _ = time.Parse(time.RFC3339Nano, recorded)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Ping checks the database for the readiness probe
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close releases the database handle
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}
