// Package handlers implements the push-timer HTTP endpoints.
package handlers

import (
	"errors"
	"net/http"

	"github.com/circa10a/push-timer/internal/server/apierr"
	"github.com/circa10a/push-timer/internal/server/middleware"
)

// Error messages
const (
	errContext              = "Internal context error"
	errSubscriptionNotFound = "Subscription not found"
	errMissingEndpoint      = "Missing endpoint parameter"
)

// payload returns the request body validated by middleware.Validate.
func payload[T any](r *http.Request) (T, error) {
	p, ok := middleware.PayloadFromContext[T](r.Context())
	if !ok {
		return p, apierr.New(apierr.Internal, errContext, errors.New("validated payload missing from context"))
	}
	return p, nil
}
