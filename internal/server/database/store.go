package database

import (
	"context"
	"errors"
	"time"
)

const (
	secretName = "credentials_encryption.key"
)

var (
	// ErrNotFound is returned when a subscription or timer does not exist.
	ErrNotFound = errors.New("record not found")
)

// Store defines the behaviors required for persisting subscriptions and their timers.
type Store interface {
	// Init executes the initial schema setup.
	Init(ctx context.Context) error
	// RegisterSubscription stores the credentials for endpoint unless the endpoint is already known.
	// It returns the subscription id and whether a new row was created.
	RegisterSubscription(ctx context.Context, endpoint string, credentials []byte) (int64, bool, error)
	// GetSubscriptionByEndpoint looks a subscription up by its unique endpoint.
	GetSubscriptionByEndpoint(ctx context.Context, endpoint string) (Subscription, error)
	// DeleteSubscription removes a subscription along with all of its timers.
	DeleteSubscription(ctx context.Context, id int64) error
	// StartTimer inserts a timer, first removing any timer sharing its client tag under the same subscription.
	StartTimer(ctx context.Context, t Timer) (Timer, error)
	// ListTimers returns every timer of a subscription ordered by id.
	ListTimers(ctx context.Context, subscriptionID int64) ([]Timer, error)
	// DeleteTimer removes a single timer. Returns ErrNotFound if no row matched.
	DeleteTimer(ctx context.Context, id int64) error
	// DeleteTimersBySubscription removes every timer of a subscription and returns how many were removed.
	DeleteTimersBySubscription(ctx context.Context, subscriptionID int64) (int64, error)
	// GetDue returns unnotified timers whose expiry is at or before now, with decrypted credentials.
	GetDue(ctx context.Context, now time.Time, limit int) ([]DueTimer, error)
	// MarkNotified flags the given timers as notified in a single transaction.
	MarkNotified(ctx context.Context, ids []int64) error
	// PruneNotified deletes notified timers that expired before the cutoff.
	PruneNotified(ctx context.Context, before time.Time) (int64, error)
	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error
	// Close terminates the database connection.
	Close() error
}
