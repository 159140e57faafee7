package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/circa10a/push-timer/api"
	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds request bodies read by Validate.
const maxBodyBytes = 64 << 10

// contextKey is a private type to avoid collisions in context
type contextKey string

// PayloadContextKey is the context key for accessing a validated request payload in handlers.
const PayloadContextKey contextKey = "validatedPayload"

// PayloadFromContext grabs the payload stored by Validate so the body is only read once.
func PayloadFromContext[T any](ctx context.Context) (T, bool) {
	payload, ok := ctx.Value(PayloadContextKey).(T)
	return payload, ok
}

// Validate decodes the JSON body into T and runs struct validation before calling next.
func Validate[T any](v *validator.Validate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload T

			bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				sendJSONError(w, http.StatusBadRequest, "Read error")
				return
			}

			err = json.Unmarshal(bodyBytes, &payload)
			if err != nil {
				sendJSONError(w, http.StatusBadRequest, "Invalid JSON")
				return
			}

			err = v.Struct(payload)
			if err != nil {
				sendJSONError(w, http.StatusBadRequest, validationMessage(err))
				return
			}

			ctx := context.WithValue(r.Context(), PayloadContextKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return "Validation failed"
	}

	errMsgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		errMsgs = append(errMsgs, fmt.Sprintf("field '%s' failed on validation: %s", fe.Namespace(), fe.Tag()))
	}

	return "Validation failed: " + strings.Join(errMsgs, ", ")
}

func sendJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(api.Error{
		Status:  api.StatusError,
		Code:    code,
		Message: msg,
	})
}
