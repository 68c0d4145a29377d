package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// DefaultSQLiteDSN keeps the store in memory for the life of the process.
const DefaultSQLiteDSN = "file:finboard-session?mode=memory&cache=shared"

var _ Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements Storage on a single key/value table.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at dsn and prepares the
// session table.
func NewSQLiteStorage(ctx context.Context, dsn string) (*SQLiteStorage, error) {
	if dsn == "" {
		dsn = DefaultSQLiteDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("infra: open sqlite: %w", err)
	}
	// One connection keeps in-memory databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	const schema = `CREATE TABLE IF NOT EXISTS session_cache (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("infra: create session table: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session_cache WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("infra: read %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStorage) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_cache (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("infra: write %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("infra: delete %q: %w", key, err)
	}
	return nil
}
