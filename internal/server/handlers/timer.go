package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/circa10a/push-timer/api"
	"github.com/circa10a/push-timer/internal/server/apierr"
	"github.com/circa10a/push-timer/internal/server/database"
)

// Timer handles timer creation, listing and cancellation.
type Timer struct {
	Store  database.Store
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (t *Timer) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// subscription resolves endpoint to a stored subscription, mapping an unknown endpoint to 404.
func (t *Timer) subscription(r *http.Request, endpoint string) (database.Subscription, error) {
	sub, err := t.Store.GetSubscriptionByEndpoint(r.Context(), endpoint)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return sub, apierr.New(apierr.NotFound, errSubscriptionNotFound, err)
		}
		return sub, apierr.WrapStoreError("Subscription", err)
	}
	return sub, nil
}

// StartHandleFunc starts a timer, replacing any timer of the same subscription with the same client id.
func (t *Timer) StartHandleFunc(r *http.Request) (int, any, error) {
	req, err := payload[api.StartTimerRequest](r)
	if err != nil {
		return 0, nil, err
	}

	sub, err := t.subscription(r, req.Subscription.Endpoint)
	if err != nil {
		return 0, nil, err
	}

	clientID := req.ClientID
	if clientID != nil && *clientID == "" {
		clientID = nil
	}

	created, err := t.Store.StartTimer(r.Context(), database.Timer{
		SubscriptionID: sub.ID,
		ClientID:       clientID,
		ExpiryAt:       t.now().Add(time.Duration(*req.Minutes) * time.Minute),
		Message:        req.Message,
	})
	if err != nil {
		return 0, nil, apierr.WrapStoreError("Timer", err)
	}

	t.Logger.Debug("Started timer", "id", created.ID, "subscription_id", sub.ID, "expiry", created.ExpiryAt)

	return http.StatusOK, api.StartTimerResponse{
		Status:     api.StatusSuccess,
		TimerID:    created.ID,
		ExpiryTime: formatTime(created.ExpiryAt),
	}, nil
}

// GetHandleFunc lists every timer of the subscription named by the endpoint query parameter.
func (t *Timer) GetHandleFunc(r *http.Request) (int, any, error) {
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		return 0, nil, apierr.New(apierr.InvalidArgument, errMissingEndpoint, nil)
	}

	timers := []api.Timer{}

	sub, err := t.Store.GetSubscriptionByEndpoint(r.Context(), endpoint)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return http.StatusOK, timers, nil
		}
		return 0, nil, apierr.WrapStoreError("Subscription", err)
	}

	stored, err := t.Store.ListTimers(r.Context(), sub.ID)
	if err != nil {
		return 0, nil, apierr.WrapStoreError("Timer", err)
	}

	now := t.now()
	for _, tm := range stored {
		timers = append(timers, api.Timer{
			ID:         tm.ID,
			ClientID:   tm.ClientID,
			ExpiryTime: formatTime(tm.ExpiryAt),
			Status:     tm.Status(now),
		})
	}

	return http.StatusOK, timers, nil
}

// CancelHandleFunc deletes a single timer by id.
func (t *Timer) CancelHandleFunc(r *http.Request) (int, any, error) {
	req, err := payload[api.CancelTimerRequest](r)
	if err != nil {
		return 0, nil, err
	}

	err = t.Store.DeleteTimer(r.Context(), *req.TimerID)
	if err != nil {
		return 0, nil, apierr.WrapStoreError("Timer", err)
	}

	return http.StatusOK, api.StatusResponse{Status: api.StatusSuccess}, nil
}

// CancelAllHandleFunc deletes every timer of a subscription.
func (t *Timer) CancelAllHandleFunc(r *http.Request) (int, any, error) {
	req, err := payload[api.CancelAllRequest](r)
	if err != nil {
		return 0, nil, err
	}

	sub, err := t.subscription(r, req.Subscription.Endpoint)
	if err != nil {
		return 0, nil, err
	}

	n, err := t.Store.DeleteTimersBySubscription(r.Context(), sub.ID)
	if err != nil {
		return 0, nil, apierr.WrapStoreError("Timer", err)
	}

	t.Logger.Debug("Cancelled timers", "subscription_id", sub.ID, "count", n)

	return http.StatusOK, api.StatusResponse{Status: api.StatusSuccess}, nil
}

// expiryLayout is RFC 3339 with millisecond precision, matching what the store keeps.
const expiryLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(expiryLayout)
}
