package apierr

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/circa10a/push-timer/api"
)

// HandlerFunc is a request handler that returns its status and body instead of writing them.
type HandlerFunc func(r *http.Request) (int, any, error)

// Handle adapts fn to an http.HandlerFunc, writing either the JSON body or an api.Error.
func Handle(logger *slog.Logger, fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, body, err := fn(r)
		if err != nil {
			WriteError(w, logger, r, err)
			return
		}

		writeJSON(w, status, body)
	}
}

// WriteError writes err as an api.Error body. Untyped errors become a generic 500.
func WriteError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	var aerr *Error
	if !errors.As(err, &aerr) {
		aerr = New(Internal, "Internal error", err)
	}

	code := aerr.Code.HTTPCode()
	if code >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", code,
			"error", err,
		)
	}

	writeJSON(w, code, api.Error{
		Status:  api.StatusError,
		Code:    code,
		Message: aerr.Msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
