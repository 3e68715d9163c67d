package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// SQLiteStore persists records in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the store at path. An empty path
// uses an in-process database, which is useful in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Serialize all access through one connection to avoid SQLITE_BUSY
	// from concurrent writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memories (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, key)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create memories table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_memories_updated ON memories(namespace, updated_at)`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, namespace, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memories (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
	`, namespace, key, value, time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store memory: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, namespace, key string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT namespace, key, value, updated_at FROM memories
		WHERE namespace = ? AND key = ?
	`, namespace, key)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load memory: %w", err)
	}
	return record, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, namespace, key string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM memories WHERE namespace = ? AND key = ?
	`, namespace, key)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, namespace, query string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace, key, value, updated_at FROM memories
		WHERE namespace = ?
		  AND (? = '' OR instr(lower(key), lower(?)) > 0 OR instr(lower(value), lower(?)) > 0)
		ORDER BY updated_at DESC, key ASC
		LIMIT ?
	`, namespace, query, query, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (s *SQLiteStore) List(ctx context.Context, namespace string) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace, key, value, updated_at FROM memories
		WHERE namespace = ?
		ORDER BY updated_at DESC, key ASC
	`, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var nanos int64
	if err := row.Scan(&record.Namespace, &record.Key, &record.Value, &nanos); err != nil {
		return nil, err
	}
	record.UpdatedAt = time.Unix(0, nanos).UTC()
	return &record, nil
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory row: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
