// Package history keeps a durable audit log of synthesis attempts in a
// SQLite database inside the workspace. Writes are best-effort: the log
// never fails a synthesis cycle, it only loses a row.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BrowserOperator/web-agent/internal/logging"
	"github.com/BrowserOperator/web-agent/internal/synth"
)

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id        TEXT NOT NULL,
	attempt        INTEGER NOT NULL,
	source         TEXT NOT NULL,
	accepted       INTEGER NOT NULL DEFAULT 0,
	failed_example TEXT,
	reason         TEXT,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_task ON attempts(task_id, created_at);
`

// Entry is one persisted attempt row.
type Entry struct {
	TaskID        string
	Attempt       int
	Source        string
	Accepted      bool
	FailedExample string
	Reason        string
	CreatedAt     time.Time
}

// Log records synthesis attempts for one task. It implements synth.Recorder.
type Log struct {
	db     *sql.DB
	taskID string
}

// Open creates or opens the attempt log at <workspace>/.evalbuilder/history.db
// and scopes rows to taskID.
func Open(workspace, taskID string) (*Log, error) {
	dir := filepath.Join(workspace, ".evalbuilder")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	dbPath := filepath.Join(dir, "history.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("verify history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}

	logging.History("attempt log open at %s (task %s)", dbPath, taskID)
	return &Log{db: db, taskID: taskID}, nil
}

// Close releases the database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// RecordAttempt inserts one attempt row. Failures are logged and swallowed.
func (l *Log) RecordAttempt(ctx context.Context, a synth.Attempt) {
	at := a.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO attempts (task_id, attempt, source, accepted, failed_example, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.taskID, a.Attempt, a.Source, boolToInt(a.Accepted), a.FailedExample, a.Reason, at.Format(time.RFC3339Nano),
	)
	if err != nil {
		logging.HistoryWarn("record attempt %d failed: %v", a.Attempt, err)
	}
}

// Attempts returns this task's rows in insertion order.
func (l *Log) Attempts(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT task_id, attempt, source, accepted, failed_example, reason, created_at
		 FROM attempts WHERE task_id = ? ORDER BY id`,
		l.taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var accepted int
		var createdAt string
		if err := rows.Scan(&e.TaskID, &e.Attempt, &e.Source, &accepted, &e.FailedExample, &e.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attempt row: %w", err)
		}
		e.Accepted = accepted != 0
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
