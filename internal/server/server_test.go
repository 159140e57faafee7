package server

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/circa10a/push-timer/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		server    *Server
		expectErr bool
	}{
		{
			name:      "invalid log format",
			server:    &Server{Config: Config{Validation: true, LogFormat: "fake"}},
			expectErr: true,
		},
		{
			name:      "auto TLS and custom cert set",
			server:    &Server{Config: Config{Validation: true, AutoTLS: true, Domains: []string{"d"}, TLSCert: "cert"}},
			expectErr: true,
		},
		{
			name:      "auto TLS and custom key set",
			server:    &Server{Config: Config{Validation: true, AutoTLS: true, Domains: []string{"d"}, TLSKey: "key"}},
			expectErr: true,
		},
		{
			name:      "auto TLS without domains",
			server:    &Server{Config: Config{Validation: true, AutoTLS: true}},
			expectErr: true,
		},
		{
			name:      "cert without key",
			server:    &Server{Config: Config{Validation: true, TLSCert: "cert"}},
			expectErr: true,
		},
		{
			name:      "key without cert",
			server:    &Server{Config: Config{Validation: true, TLSKey: "key"}},
			expectErr: true,
		},
		{
			name:      "invalid log level",
			server:    &Server{Config: Config{Validation: true, LogLevel: "loud"}},
			expectErr: true,
		},
		{
			name:      "unsupported database url",
			server:    &Server{Config: Config{Validation: true, DatabaseURL: "mysql://localhost/db"}},
			expectErr: true,
		},
		{
			name:      "half a VAPID keypair",
			server:    &Server{Config: Config{Validation: true, VAPIDPublicKey: "pub"}},
			expectErr: true,
		},
		{
			name:      "negative worker interval",
			server:    &Server{Config: Config{Validation: true, WorkerInterval: -time.Second}},
			expectErr: true,
		},
		{
			name:      "negative delivery rate",
			server:    &Server{Config: Config{Validation: true, DeliveryRate: -1}},
			expectErr: true,
		},
		{
			name:      "invalid notifier url",
			server:    &Server{Config: Config{Validation: true, Notifiers: []string{"myscheme://bad"}}},
			expectErr: true,
		},
		{
			name:      "invalid prune schedule",
			server:    &Server{Config: Config{Validation: true, TimerRetention: time.Hour, PruneSchedule: "every tuesday"}},
			expectErr: true,
		},
		{
			name:   "valid auto TLS config",
			server: &Server{Config: Config{Validation: true, AutoTLS: true, Domains: []string{"domain"}}},
		},
		{
			name:   "valid custom cert/key config",
			server: &Server{Config: Config{Validation: true, TLSCert: "cert", TLSKey: "key"}},
		},
		{
			name: "valid full config",
			server: &Server{Config: Config{
				Validation:     true,
				DatabaseURL:    "postgres://localhost/db",
				Notifiers:      []string{"logger://"},
				TimerRetention: 24 * time.Hour,
				PruneSchedule:  "@daily",
				DeliveryRate:   5,
			}},
		},
		{
			name:   "validation disabled",
			server: &Server{Config: Config{LogFormat: "fake"}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.server.validate()
			if (err != nil) != test.expectErr {
				t.Errorf("unexpected validation result: got error=%v wantErr=%v, err=%v", err != nil, test.expectErr, err)
			}
		})
	}
}

func TestGetLogFormatter(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Formatter
	}{
		{
			input:    "json",
			expected: log.JSONFormatter,
		},
		{
			input:    "text",
			expected: log.TextFormatter,
		},
		{
			input:    "fake",
			expected: log.TextFormatter,
		},
	}
	for _, test := range tests {
		actual := getLogFormatter(test.input)
		if test.expected != actual {
			t.Errorf("getLogFormatter returned unexpected log formatter: got %v want %v", actual, test.expected)
		}
	}
}

// newTestServer creates a Server on a fresh storage dir and stops it when the test ends.
func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()

	if cfg.StorageDir == "" {
		cfg.StorageDir = t.TempDir()
	}

	s, err := New(&cfg)
	require.NoError(t, err)
	t.Cleanup(s.Stop)

	return s
}

func TestServerConfigOpts(t *testing.T) {
	outputStr := "got: %v, want: %v"

	t.Run("Defaults", func(t *testing.T) {
		s := newTestServer(t, Config{})

		assert.Equal(t, defaultLogLevel, s.LogLevel)
		assert.Equal(t, defaultWorkerInterval, s.WorkerInterval)
		assert.Equal(t, defaultWorkerBatchSize, s.WorkerBatchSize)
		assert.Equal(t, defaultPushTTL, s.PushTTL)
		assert.Equal(t, defaultPushTimeout, s.PushTimeout)
		assert.Equal(t, defaultPruneSchedule, s.PruneSchedule)
		assert.Nil(t, s.Pruner, "pruner only runs with a retention window")
		assert.Nil(t, s.Worker.Limiter, "no limiter without a delivery rate")
	})

	t.Run("Domains", func(t *testing.T) {
		v := []string{"lemon"}
		s := newTestServer(t, Config{Domains: v})

		if !reflect.DeepEqual(s.Domains, v) {
			t.Errorf(outputStr, s.Domains, v)
		}
	})

	t.Run("Port", func(t *testing.T) {
		s := newTestServer(t, Config{Port: 3000})

		assert.Equal(t, 3000, s.Port)
		assert.Equal(t, ":3000", s.httpServer.Addr)
	})

	t.Run("LogFormat", func(t *testing.T) {
		v := "JSON"
		s := newTestServer(t, Config{LogFormat: v})

		if s.LogFormat != strings.ToLower(v) {
			t.Errorf(outputStr, s.LogFormat, strings.ToLower(v))
		}
	})

	t.Run("Worker", func(t *testing.T) {
		s := newTestServer(t, Config{WorkerBatchSize: 500, WorkerInterval: time.Second, DeliveryRate: 2.5})

		assert.Equal(t, 500, s.Worker.BatchSize)
		assert.Equal(t, time.Second, s.Worker.Interval)
		require.NotNil(t, s.Worker.Limiter)
		assert.InDelta(t, 2.5, float64(s.Worker.Limiter.Limit()), 0.001)
		assert.Equal(t, 2, s.Worker.Limiter.Burst())
	})

	t.Run("TimerRetention", func(t *testing.T) {
		s := newTestServer(t, Config{TimerRetention: 48 * time.Hour, PruneSchedule: "@daily"})

		require.NotNil(t, s.Pruner)
		assert.Equal(t, 48*time.Hour, s.Pruner.Retention)
		assert.Equal(t, "@daily", s.Pruner.Schedule)
	})

	t.Run("VAPIDKeyDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "vapid")
		s := newTestServer(t, Config{VAPIDKeyDir: dir})

		assert.True(t, s.vapid.Complete())
		assert.True(t, s.Worker.Sender.Enabled())
	})

	t.Run("ExplicitVAPIDKeysWin", func(t *testing.T) {
		s := newTestServer(t, Config{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv", VAPIDKeyDir: t.TempDir()})

		assert.Equal(t, "pub", s.vapid.PublicKey)
		assert.Equal(t, "priv", s.vapid.PrivateKey)
	})

	t.Run("InvalidConfigFails", func(t *testing.T) {
		_, err := New(&Config{Validation: true, StorageDir: t.TempDir(), LogFormat: "xml"})
		assert.Error(t, err)
	})
}

func TestServerRoutes(t *testing.T) {
	s := newTestServer(t, Config{Metrics: true, CORSAllowedOrigins: []string{"https://app.example.com"}})

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	t.Run("health reports database and push state", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

		health := api.Health{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
		assert.Equal(t, api.HealthStatusOk, health.Status)
		assert.True(t, health.DatabaseConnected)
		assert.False(t, health.VAPIDConfigured)
	})

	t.Run("metrics are exposed", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "push_timer_http_request_duration_seconds")
	})

	t.Run("timers list requires an endpoint", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/timers")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("cors preflight for allowed origin", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, srv.URL+"/subscribe", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

func TestServerStop_DrainsInFlightRequests(t *testing.T) {
	s, err := New(&Config{StorageDir: t.TempDir()})
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	s.httpServer.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release

		if err := s.store.Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.httpServer.Serve(ln) }()

	type result struct {
		status int
		err    error
	}
	results := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			results <- result{err: err}
			return
		}
		_ = resp.Body.Close()
		results <- result{status: resp.StatusCode}
	}()

	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	// Give Stop time to begin the drain while the request is still running.
	time.Sleep(50 * time.Millisecond)
	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight request finished")
	default:
	}
	assert.NoError(t, s.ctx.Err(), "background jobs keep running until requests drain")

	close(release)

	res := <-results
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.status)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Error(t, s.ctx.Err())
}
