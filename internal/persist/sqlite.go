package persist

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLite implements a Provider on top of a single sqlite table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and creates if needed) the database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, errors.Wrap(err, "creating database directory")
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	// Create kv table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			update_timestamp INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating kv table")
	}

	return &SQLite{db: db}, nil
}

// Get implements Provider.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "querying key (%s)", key)
	}
	return value, true, nil
}

// Set implements Provider.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	// Use REPLACE INTO to handle both insert and update cases
	_, err := s.db.ExecContext(ctx, `
		REPLACE INTO kv (key, value, update_timestamp)
		VALUES (?, ?, ?)
	`, key, value, time.Now().UnixMicro())
	if err != nil {
		return errors.Wrapf(err, "writing key (%s)", key)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
