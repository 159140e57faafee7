package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/circa10a/push-timer/internal/server/secrets"
)

// connectTimeout bounds how long startup keeps retrying an unreachable database.
const connectTimeout = 30 * time.Second

// Options selects and configures the backing database.
type Options struct {
	// DatabaseURL selects Postgres when set to a postgres:// or postgresql:// URL.
	DatabaseURL string
	// StorageDir holds the SQLite database and the encryption key file.
	StorageDir string
	// Encrypt stores subscription credentials encrypted at rest.
	Encrypt bool
}

// Open returns the Store described by opts.
func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	if opts.DatabaseURL != "" {
		if !IsPostgresURL(opts.DatabaseURL) {
			return nil, fmt.Errorf("unsupported database URL scheme, expected postgres:// or postgresql://")
		}
		return NewPostgresStore(ctx, opts.DatabaseURL, opts.StorageDir, opts.Encrypt)
	}

	return NewSQLiteStore(ctx, opts.StorageDir, opts.Encrypt)
}

func newSQLStore(db *sql.DB, d dialect, keyDir string, encrypt bool) (*SQLStore, error) {
	store := &SQLStore{
		db:      db,
		dialect: d,
		encrypt: encrypt,
	}

	if !encrypt {
		return store, nil
	}

	err := os.MkdirAll(keyDir, 0750)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	_, key, err := secrets.LoadOrCreateKey(filepath.Join(keyDir, secretName))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize encryption key: %w", err)
	}

	if len(key) == 0 {
		_ = db.Close()
		return nil, errors.New("encryption key content must be more than 0 bytes")
	}

	store.sealer = sealer{key: key}

	return store, nil
}

// pingWithRetry pings db with exponential backoff until it answers or connectTimeout elapses.
func pingWithRetry(ctx context.Context, db *sql.DB) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = connectTimeout

	return backoff.Retry(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		return db.PingContext(pingCtx)
	}, backoff.WithContext(b, ctx))
}
