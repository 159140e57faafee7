package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	timerColumns = `id, subscription_id, client_id, expiry_at, message, notified, created_at`
)

// SQLStore is the database/sql implementation of Store shared by the SQLite and Postgres backends.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	sealer  sealer
	encrypt bool
}

// Init creates the necessary database tables if they do not already exist.
func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Dialect returns the name of the backing database.
func (s *SQLStore) Dialect() string {
	return s.dialect.name
}

// RegisterSubscription inserts the subscription unless its endpoint already exists.
func (s *SQLStore) RegisterSubscription(ctx context.Context, endpoint string, credentials []byte) (int64, bool, error) {
	stored, err := s.sealCredentials(credentials)
	if err != nil {
		return 0, false, err
	}

	query := s.dialect.rebind(`INSERT INTO subscriptions (endpoint, credentials, encrypted, created_at)
              VALUES (?, ?, ?, ?)
              ON CONFLICT (endpoint) DO NOTHING
              RETURNING id`)

	var id int64
	err = s.db.QueryRowContext(ctx, query, endpoint, stored, s.encrypt, time.Now().Unix()).Scan(&id)
	if err == nil {
		return id, true, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to insert subscription: %w", err)
	}

	// Conflict: endpoint already registered
	sub, err := s.GetSubscriptionByEndpoint(ctx, endpoint)
	if err != nil {
		return 0, false, err
	}

	return sub.ID, false, nil
}

// GetSubscriptionByEndpoint returns the subscription for endpoint or ErrNotFound.
func (s *SQLStore) GetSubscriptionByEndpoint(ctx context.Context, endpoint string) (Subscription, error) {
	query := s.dialect.rebind(`SELECT id, endpoint, credentials, encrypted, created_at FROM subscriptions WHERE endpoint = ?`)

	var (
		sub       Subscription
		raw       string
		encrypted bool
		createdAt int64
	)

	err := s.db.QueryRowContext(ctx, query, endpoint).Scan(&sub.ID, &sub.Endpoint, &raw, &encrypted, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subscription{}, ErrNotFound
		}
		return Subscription{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	sub.Credentials, err = s.openCredentials(raw, encrypted)
	if err != nil {
		return Subscription{}, err
	}
	sub.CreatedAt = time.Unix(createdAt, 0).UTC()

	return sub, nil
}

// DeleteSubscription removes a subscription and its timers in one transaction.
func (s *SQLStore) DeleteSubscription(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM timers WHERE subscription_id = ?`), id)
		if err != nil {
			return fmt.Errorf("failed to delete timers: %w", err)
		}

		res, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM subscriptions WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("failed to delete subscription: %w", err)
		}

		return requireAffected(res)
	})
}

// StartTimer replaces any timer with the same client tag and inserts t.
func (s *SQLStore) StartTimer(ctx context.Context, t Timer) (Timer, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.Notified = false

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if t.ClientID != nil {
			_, err := tx.ExecContext(ctx,
				s.dialect.rebind(`DELETE FROM timers WHERE subscription_id = ? AND client_id = ?`),
				t.SubscriptionID, *t.ClientID,
			)
			if err != nil {
				return fmt.Errorf("failed to replace timer: %w", err)
			}
		}

		query := s.dialect.rebind(`INSERT INTO timers (subscription_id, client_id, expiry_at, message, notified, created_at)
              VALUES (?, ?, ?, ?, ?, ?)
              RETURNING id`)

		err := tx.QueryRowContext(ctx, query,
			t.SubscriptionID,
			nullString(t.ClientID),
			toMillis(t.ExpiryAt),
			t.Message,
			false,
			t.CreatedAt.UnixMilli(),
		).Scan(&t.ID)
		if err != nil {
			return fmt.Errorf("failed to insert timer: %w", err)
		}

		return nil
	})
	if err != nil {
		return Timer{}, err
	}

	t.ExpiryAt = fromMillis(toMillis(t.ExpiryAt))
	t.CreatedAt = fromMillis(t.CreatedAt.UnixMilli())

	return t, nil
}

// ListTimers returns every timer belonging to the subscription.
func (s *SQLStore) ListTimers(ctx context.Context, subscriptionID int64) ([]Timer, error) {
	query := s.dialect.rebind(fmt.Sprintf("SELECT %s FROM timers WHERE subscription_id = ? ORDER BY id", timerColumns))

	rows, err := s.db.QueryContext(ctx, query, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list timers: %w", err)
	}

	defer func() { _ = rows.Close() }()

	timers := []Timer{}
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, err
		}
		timers = append(timers, t)
	}

	return timers, rows.Err()
}

// DeleteTimer permanently removes a timer.
func (s *SQLStore) DeleteTimer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM timers WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete timer: %w", err)
	}

	return requireAffected(res)
}

// DeleteTimersBySubscription removes all timers of a subscription, notified or not.
func (s *SQLStore) DeleteTimersBySubscription(ctx context.Context, subscriptionID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM timers WHERE subscription_id = ?`), subscriptionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete timers: %w", err)
	}

	return res.RowsAffected()
}

// GetDue returns timers that have expired and have not been notified yet.
// Credentials are decrypted so the worker can deliver directly.
func (s *SQLStore) GetDue(ctx context.Context, now time.Time, limit int) ([]DueTimer, error) {
	query := s.dialect.rebind(`SELECT t.id, t.subscription_id, t.client_id, t.expiry_at, t.message, t.notified, t.created_at,
              s.endpoint, s.credentials, s.encrypted
              FROM timers t
              JOIN subscriptions s ON s.id = t.subscription_id
              WHERE t.notified = ? AND t.expiry_at <= ?
              ORDER BY t.expiry_at, t.id
              LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, false, now.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due timers: %w", err)
	}

	defer func() { _ = rows.Close() }()

	due := []DueTimer{}
	for rows.Next() {
		var (
			d                    DueTimer
			clientID             sql.NullString
			expiryAt, createdAt  int64
			rawCreds             string
			credentialsEncrypted bool
		)

		err := rows.Scan(
			&d.ID,
			&d.SubscriptionID,
			&clientID,
			&expiryAt,
			&d.Message,
			&d.Notified,
			&createdAt,
			&d.Endpoint,
			&rawCreds,
			&credentialsEncrypted,
		)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}

		if clientID.Valid {
			d.ClientID = &clientID.String
		}
		d.ExpiryAt = fromMillis(expiryAt)
		d.CreatedAt = fromMillis(createdAt)

		d.Credentials, err = s.openCredentials(rawCreds, credentialsEncrypted)
		if err != nil {
			return nil, fmt.Errorf("credentials for timer %d: %w", d.ID, err)
		}

		due = append(due, d)
	}

	return due, rows.Err()
}

// MarkNotified sets notified on every id in a single transaction. Never clears the flag.
func (s *SQLStore) MarkNotified(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := s.dialect.rebind(fmt.Sprintf(`UPDATE timers SET notified = ? WHERE id IN (%s)`, placeholders))

	args := make([]any, 0, len(ids)+1)
	args = append(args, true)
	for _, id := range ids {
		args = append(args, id)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to mark timers as notified: %w", err)
		}
		return nil
	})
}

// PruneNotified removes notified timers whose expiry is older than before.
func (s *SQLStore) PruneNotified(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.dialect.rebind(`DELETE FROM timers WHERE notified = ? AND expiry_at < ?`),
		true, before.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune timers: %w", err)
	}

	return res.RowsAffected()
}

// Ping checks if the database connection is still valid.
func (s *SQLStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return s.db.PingContext(ctx)
}

// Close closes the connection to the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, rolling back on any error.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *SQLStore) sealCredentials(credentials []byte) (string, error) {
	if !s.encrypt {
		return string(credentials), nil
	}

	return s.sealer.encrypt(credentials)
}

func (s *SQLStore) openCredentials(raw string, encrypted bool) ([]byte, error) {
	if !encrypted {
		return []byte(raw), nil
	}

	plain, err := s.sealer.decrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("credentials decryption failed: %w", err)
	}

	return plain, nil
}

// scanTimer is an internal helper that parses a row selected with timerColumns.
func scanTimer(rows *sql.Rows) (Timer, error) {
	var (
		t                   Timer
		clientID            sql.NullString
		expiryAt, createdAt int64
	)

	err := rows.Scan(&t.ID, &t.SubscriptionID, &clientID, &expiryAt, &t.Message, &t.Notified, &createdAt)
	if err != nil {
		return Timer{}, fmt.Errorf("scan error: %w", err)
	}

	if clientID.Valid {
		t.ClientID = &clientID.String
	}
	t.ExpiryAt = fromMillis(expiryAt)
	t.CreatedAt = fromMillis(createdAt)

	return t, nil
}

// toMillis converts t to unix milliseconds, rounding up so a stored expiry is never earlier than t.
func toMillis(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.After(time.UnixMilli(ms)) {
		ms++
	}
	return ms
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
