// ABOUTME: SQLite-backed tool call ledger using modernc.org/sqlite.
// ABOUTME: Records every dispatched call for usage stats and auditing.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// CallRecord is one audited tool call.
type CallRecord struct {
	ID         string    `json:"id"`
	Tool       string    `json:"tool"`
	DurationMS int64     `json:"duration_ms"`
	IsError    bool      `json:"is_error"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToolStats aggregates the ledger per tool.
type ToolStats struct {
	Tool          string `json:"tool"`
	Calls         int64  `json:"calls"`
	Errors        int64  `json:"errors"`
	AvgDurationMS int64  `json:"avg_duration_ms"`
}

// Ledger persists tool call records in SQLite.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates a ledger at the given path. The schema is created if it
// doesn't exist; parent directories are created if needed.
func Open(path string) (*Ledger, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	l := &Ledger{db: db, logger: logger}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("call ledger initialized", "path", path)
	return l, nil
}

func (l *Ledger) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tool_calls (
			id          TEXT PRIMARY KEY,
			tool        TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			is_error    INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tool_calls_tool
			ON tool_calls(tool);

		CREATE INDEX IF NOT EXISTS idx_tool_calls_created
			ON tool_calls(created_at);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// RecordCall appends one call to the ledger.
func (l *Ledger) RecordCall(ctx context.Context, tool string, duration time.Duration, isError bool) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO tool_calls (id, tool, duration_ms, is_error, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), tool, duration.Milliseconds(), isError, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording call: %w", err)
	}
	return nil
}

// RecentCalls returns up to limit calls, newest first.
func (l *Ledger) RecentCalls(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, tool, duration_ms, is_error, created_at
		 FROM tool_calls
		 ORDER BY created_at DESC, id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent calls: %w", err)
	}
	defer rows.Close()

	var records []CallRecord
	for rows.Next() {
		var rec CallRecord
		if err := rows.Scan(&rec.ID, &rec.Tool, &rec.DurationMS, &rec.IsError, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning call record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats aggregates the ledger per tool, ordered by call count.
func (l *Ledger) Stats(ctx context.Context) ([]ToolStats, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT tool,
		        COUNT(*),
		        COALESCE(SUM(is_error), 0),
		        COALESCE(CAST(AVG(duration_ms) AS INTEGER), 0)
		 FROM tool_calls
		 GROUP BY tool
		 ORDER BY COUNT(*) DESC, tool`)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	defer rows.Close()

	var stats []ToolStats
	for rows.Next() {
		var st ToolStats
		if err := rows.Scan(&st.Tool, &st.Calls, &st.Errors, &st.AvgDurationMS); err != nil {
			return nil, fmt.Errorf("scanning stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
