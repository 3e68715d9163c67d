package thread

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// SQLiteCheckpointer persists thread state in a local SQLite file, one
// JSON-serialized state per thread.
type SQLiteCheckpointer struct {
	db *sql.DB
}

// NewSQLiteCheckpointer opens (or creates) the checkpoint store at
// path. An empty path uses an in-process database.
func NewSQLiteCheckpointer(path string) (*SQLiteCheckpointer, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	c := &SQLiteCheckpointer{db: db}
	if err := c.init(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCheckpointer) init() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS threads (
			thread_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create threads table: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (c *SQLiteCheckpointer) Close() error {
	return c.db.Close()
}

func (c *SQLiteCheckpointer) Load(ctx context.Context, threadID string) (*State, error) {
	var payload string
	err := c.db.QueryRowContext(ctx,
		`SELECT state FROM threads WHERE thread_id = ?`, threadID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}

	var state State
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("failed to decode thread %s: %w", threadID, err)
	}
	return &state, nil
}

func (c *SQLiteCheckpointer) Save(ctx context.Context, threadID string, state *State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode thread %s: %w", threadID, err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO threads (thread_id, state, updated_at)
		VALUES (?, ?, ?)
	`, threadID, string(payload), time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save thread %s: %w", threadID, err)
	}
	return nil
}

func (c *SQLiteCheckpointer) Delete(ctx context.Context, threadID string) error {
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM threads WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete thread %s: %w", threadID, err)
	}
	return nil
}
