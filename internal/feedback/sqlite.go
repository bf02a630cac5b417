package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteLedger is a Ledger backed by a local SQLite database, so feedback
// survives process restarts.
type SQLiteLedger struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the feedback database.
// It resolves to ~/.matchd/feedback.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("feedback: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".matchd")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("feedback: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "feedback.db"), nil
}

// Open opens (or creates) a SQLiteLedger at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteLedger, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("feedback: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	l := &SQLiteLedger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// migrate creates the schema if it does not already exist.
func (l *SQLiteLedger) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS feedback (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    TEXT    NOT NULL,
    message    TEXT    NOT NULL,
    verdict    TEXT    NOT NULL CHECK(verdict IN ('positive','negative')),
    metadata   TEXT,             -- JSON object, may be NULL
    history    TEXT,             -- JSON array of turns, may be NULL
    created_at INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_feedback_user_created
    ON feedback (user_id, created_at);
`
	if _, err := l.db.Exec(ddl); err != nil {
		return fmt.Errorf("feedback: migrate: %w", err)
	}
	return nil
}

// Record appends a single feedback entry for the user.
func (l *SQLiteLedger) Record(ctx context.Context, e Entry) error {
	if e.UserID == "" {
		return fmt.Errorf("feedback: record: empty user id")
	}
	if e.Verdict != Positive && e.Verdict != Negative {
		return fmt.Errorf("feedback: record: invalid verdict %q", e.Verdict)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	var meta, hist sql.NullString
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("feedback: record: encode metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}
	if len(e.History) > 0 {
		b, err := json.Marshal(e.History)
		if err != nil {
			return fmt.Errorf("feedback: record: encode history: %w", err)
		}
		hist = sql.NullString{String: string(b), Valid: true}
	}

	const q = `INSERT INTO feedback (user_id, message, verdict, metadata, history, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := l.db.ExecContext(ctx, q, e.UserID, e.Message, string(e.Verdict), meta, hist, created.Unix()); err != nil {
		return fmt.Errorf("feedback: record: %w", err)
	}
	return nil
}

// EntriesFor returns all entries for the user, oldest first.
func (l *SQLiteLedger) EntriesFor(ctx context.Context, userID string) ([]Entry, error) {
	const q = `
SELECT message, verdict, metadata, history, created_at
FROM   feedback
WHERE  user_id = ?
ORDER  BY created_at ASC, id ASC`

	rows, err := l.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("feedback: entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			verdict    string
			meta, hist sql.NullString
			ts         int64
		)
		if err := rows.Scan(&e.Message, &verdict, &meta, &hist, &ts); err != nil {
			return nil, fmt.Errorf("feedback: entries scan: %w", err)
		}
		e.UserID = userID
		e.Verdict = Verdict(verdict)
		e.CreatedAt = time.Unix(ts, 0).UTC()
		if meta.Valid {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("feedback: entries decode metadata: %w", err)
			}
		}
		if hist.Valid {
			if err := json.Unmarshal([]byte(hist.String), &e.History); err != nil {
				return nil, fmt.Errorf("feedback: entries decode history: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("feedback: entries rows: %w", err)
	}
	return entries, nil
}

// Snapshot reports per-user entry counts.
func (l *SQLiteLedger) Snapshot(ctx context.Context) (map[string]int, error) {
	const q = `SELECT user_id, COUNT(*) FROM feedback GROUP BY user_id`
	rows, err := l.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("feedback: snapshot: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("feedback: snapshot scan: %w", err)
		}
		out[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("feedback: snapshot rows: %w", err)
	}
	return out, nil
}

// Close releases the database connection pool.
func (l *SQLiteLedger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("feedback: close: %w", err)
	}
	return nil
}
