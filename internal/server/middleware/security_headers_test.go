package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := SecurityHeaders(inner)

	tests := []struct {
		name     string
		path     string
		expected map[string]string
	}{
		{
			name: "api response",
			path: "/api/timers",
			expected: map[string]string{
				"X-Content-Type-Options": "nosniff",
				"Referrer-Policy":        "no-referrer",
				"Cache-Control":          "no-store",
			},
		},
		{
			name: "metrics are left cacheable",
			path: "/metrics",
			expected: map[string]string{
				"X-Content-Type-Options": "nosniff",
				"Cache-Control":          "",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			for header, want := range tt.expected {
				assert.Equal(t, want, rr.Header().Get(header), header)
			}
		})
	}
}
