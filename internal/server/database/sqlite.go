package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	// Import the sqlite driver that requires no CGO deps
	_ "modernc.org/sqlite"
)

const (
	sqliteDBName = "push_timer_sqlite.db"
)

// NewSQLiteStore opens (creating if needed) the SQLite database inside dir.
func NewSQLiteStore(ctx context.Context, dir string, encrypt bool) (*SQLStore, error) {
	db, err := sqliteConnect(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return newSQLStore(db, sqliteDialect, dir, encrypt)
}

// sqliteConnect is an internal helper that sets up the database connection and directory.
func sqliteConnect(ctx context.Context, dir string) (*sql.DB, error) {
	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return nil, err
	}

	fullPath := filepath.Join(dir, sqliteDBName)
	params := url.Values{}
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "foreign_keys(1)")

	db, err := sql.Open(sqliteDialect.driver, fmt.Sprintf("file:%s?%s", fullPath, params.Encode()))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	err = pingWithRetry(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
