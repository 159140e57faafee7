package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/circa10a/push-timer/api"
	"github.com/circa10a/push-timer/internal/server/apierr"
	"github.com/circa10a/push-timer/internal/server/database"
)

// Subscription handles push subscription registration.
type Subscription struct {
	Store  database.Store
	Logger *slog.Logger
}

// PostHandleFunc registers a subscription, returning the existing id when the endpoint is known.
func (s *Subscription) PostHandleFunc(r *http.Request) (int, any, error) {
	req, err := payload[api.SubscribeRequest](r)
	if err != nil {
		return 0, nil, err
	}

	credentials, err := json.Marshal(req.Subscription)
	if err != nil {
		return 0, nil, apierr.New(apierr.Internal, "Failed to encode subscription", err)
	}

	id, created, err := s.Store.RegisterSubscription(r.Context(), req.Subscription.Endpoint, credentials)
	if err != nil {
		return 0, nil, apierr.WrapStoreError("Subscription", err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.Logger.Info("Registered subscription", "id", id)
	}

	return status, api.SubscribeResponse{Status: api.StatusSuccess, ID: id}, nil
}
