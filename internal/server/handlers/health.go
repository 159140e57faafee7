package handlers

import (
	"net/http"

	"github.com/circa10a/push-timer/api"
	"github.com/circa10a/push-timer/internal/server/database"
)

// Handles health check requests.
type Health struct {
	Store           database.Store
	VAPIDConfigured bool
}

// GetHandleFunc handles health check requests by verifying the database connection.
func (h *Health) GetHandleFunc(r *http.Request) (int, any, error) {
	resp := api.Health{
		Status:          api.HealthStatusOk,
		VAPIDConfigured: h.VAPIDConfigured,
	}

	// Check if DB is healthy
	err := h.Store.Ping(r.Context())
	if err != nil {
		resp.Status = api.HealthStatusFailed
		return http.StatusServiceUnavailable, resp, nil
	}

	resp.DatabaseConnected = true

	return http.StatusOK, resp, nil
}
