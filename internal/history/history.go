// Package history keeps an append-only SQLite ledger of completed processing
// jobs. The ledger is an audit sidecar for operators; entitlement state never
// depends on it, so a lost or cleared ledger costs nothing but history.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one completed processing job.
type Entry struct {
	ID         int64
	UserID     int64
	VideoName  string
	OutputName string
	Reencoded  bool
	BackupURL  string
	DurationMS int64
	CreatedAt  time.Time
}

// Ledger manages processing history backed by SQLite.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database.
func Open(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	ledger := &Ledger{db: db, path: dbPath}
	if err := ledger.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Path returns the database file location.
func (l *Ledger) Path() string { return l.path }

// Record appends a completed job and returns its row id.
func (l *Ledger) Record(ctx context.Context, entry Entry) (int64, error) {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := l.db.ExecContext(
		ctx,
		`INSERT INTO processing_history (
            user_id, video_name, output_name, reencoded, backup_url, duration_ms, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID,
		entry.VideoName,
		entry.OutputName,
		boolToInt(entry.Reencoded),
		nullableString(entry.BackupURL),
		entry.DurationMS,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert history entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history entry id: %w", err)
	}
	return id, nil
}

// Recent returns the most recent entries across all users, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(
		ctx,
		`SELECT id, user_id, video_name, output_name, reencoded, backup_url, duration_ms, created_at
         FROM processing_history ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ForUser returns a user's most recent entries, newest first.
func (l *Ledger) ForUser(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(
		ctx,
		`SELECT id, user_id, video_name, output_name, reencoded, backup_url, duration_ms, created_at
         FROM processing_history WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query user history: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// CountForUser returns the total number of jobs recorded for a user.
func (l *Ledger) CountForUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := l.db.QueryRowContext(
		ctx,
		"SELECT COUNT(1) FROM processing_history WHERE user_id = ?",
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count user history: %w", err)
	}
	return count, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			reencoded int
			backupURL sql.NullString
			createdAt string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.VideoName,
			&entry.OutputName,
			&reencoded,
			&backupURL,
			&entry.DurationMS,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.Reencoded = reencoded != 0
		if backupURL.Valid {
			entry.BackupURL = backupURL.String
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			entry.CreatedAt = ts
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var errNotOpen = errors.New("history ledger not open")

// Ping verifies the connection, for health reporting.
func (l *Ledger) Ping(ctx context.Context) error {
	if l == nil || l.db == nil {
		return errNotOpen
	}
	return l.db.PingContext(ctx)
}
