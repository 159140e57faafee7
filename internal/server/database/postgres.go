package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v4/stdlib"
)

// NewPostgresStore connects to the Postgres database at databaseURL.
// keyDir holds the credentials encryption key when encrypt is set.
func NewPostgresStore(ctx context.Context, databaseURL, keyDir string, encrypt bool) (*SQLStore, error) {
	db, err := sql.Open(postgresDialect.driver, NormalizeURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	err = pingWithRetry(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newSQLStore(db, postgresDialect, keyDir, encrypt)
}

// IsPostgresURL reports whether databaseURL points at a Postgres server.
func IsPostgresURL(databaseURL string) bool {
	u := strings.ToLower(strings.TrimSpace(databaseURL))
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// NormalizeURL trims the connection string and rewrites the legacy postgres:// scheme
// some hosting providers hand out.
func NormalizeURL(databaseURL string) string {
	u := strings.TrimSpace(databaseURL)
	if len(u) >= len("postgres://") && strings.EqualFold(u[:len("postgres://")], "postgres://") {
		return "postgresql://" + u[len("postgres://"):]
	}
	return u
}
