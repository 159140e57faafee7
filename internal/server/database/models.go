package database

import (
	"time"

	"github.com/circa10a/push-timer/api"
)

// Subscription is a registered push endpoint.
type Subscription struct {
	ID          int64
	Endpoint    string
	Credentials []byte
	CreatedAt   time.Time
}

// Timer is a one-shot reminder owned by a subscription.
type Timer struct {
	ID             int64
	SubscriptionID int64
	ClientID       *string
	ExpiryAt       time.Time
	Message        string
	Notified       bool
	CreatedAt      time.Time
}

// Status derives the client-facing state of the timer at now.
func (t Timer) Status(now time.Time) api.TimerStatus {
	if t.Notified || !t.ExpiryAt.After(now) {
		return api.TimerStatusCompleted
	}
	return api.TimerStatusRunning
}

// DueTimer is a timer ready for delivery together with its subscription's credentials.
type DueTimer struct {
	Timer
	Endpoint    string
	Credentials []byte
}
