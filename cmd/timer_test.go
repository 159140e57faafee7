package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/circa10a/push-timer/api"
)

// executeCommand is a helper to run cobra commands and capture output
func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}

func Test_SubscribeCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subscribe" {
			t.Errorf("expected path %q, got %q", "/subscribe", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected method %q, got %q", http.MethodPost, r.Method)
		}

		var body api.SubscribeRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Subscription.Keys.Auth != "secret" {
			t.Errorf("expected auth %q, got %q", "secret", body.Subscription.Keys.Auth)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.SubscribeResponse{Status: api.StatusSuccess, ID: 3})
	}))
	defer server.Close()

	output, err := executeCommand("timer", "subscribe", "-e", "https://push.example.com/e1", "--p256dh", "key", "--auth", "secret", "--url", server.URL, "--color=false")

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(output, `"id": 3`) {
		t.Errorf("expected output to contain %q, got %q", `"id": 3`, output)
	}
}

func Test_StartCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/start_timer" {
			t.Errorf("expected path %q, got %q", "/start_timer", r.URL.Path)
		}

		var body api.StartTimerRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Minutes == nil || *body.Minutes != 5 {
			t.Errorf("expected 5 minutes, got %v", body.Minutes)
		}
		if body.ClientID == nil || *body.ClientID != "tea" {
			t.Errorf("expected client id %q, got %v", "tea", body.ClientID)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.StartTimerResponse{
			Status:     api.StatusSuccess,
			TimerID:    9,
			ExpiryTime: "2024-01-01T00:05:00Z",
		})
	}))
	defer server.Close()

	output, err := executeCommand("timer", "start", "-e", "https://push.example.com/e1", "-t", "5", "-m", "Tea ready", "-c", "tea", "--url", server.URL, "--color=false")

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(output, `"timer_id": 9`) {
		t.Errorf("expected output to contain %q, got %q", `"timer_id": 9`, output)
	}
}

func Test_ListCommand_YAML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("endpoint"); got != "https://push.example.com/e1" {
			t.Errorf("expected endpoint query, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]api.Timer{
			{ID: 1, ExpiryTime: "2024-01-01T00:05:00Z", Status: api.TimerStatusCompleted},
		})
	}))
	defer server.Close()

	output, err := executeCommand("timer", "list", "-e", "https://push.example.com/e1", "--url", server.URL, "--color=false", "-o", "yaml")

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "completed") {
		t.Errorf("expected output to contain %q, got %q", "completed", output)
	}

	outputFormat = "json"
}

func Test_CancelCommand_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.Error{
			Status:  api.StatusError,
			Code:    404,
			Message: "Timer not found",
		})
	}))
	defer server.Close()

	output, err := executeCommand("timer", "cancel", "--id", "999", "--url", server.URL, "--color=false", "-o", "json")

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "Timer not found") {
		t.Errorf("expected output to contain error message, got %q", output)
	}
}

func Test_CancelAllCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/timers/cancel_all" {
			t.Errorf("expected path %q, got %q", "/api/timers/cancel_all", r.URL.Path)
		}

		var body api.CancelAllRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Subscription.Endpoint != "https://push.example.com/e1" {
			t.Errorf("unexpected endpoint %q", body.Subscription.Endpoint)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.StatusResponse{Status: api.StatusSuccess})
	}))
	defer server.Close()

	output, err := executeCommand("timer", "cancel-all", "-e", "https://push.example.com/e1", "--url", server.URL, "--color=false", "-o", "json")

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(output, `"status": "success"`) {
		t.Errorf("expected success output, got %q", output)
	}
}

func Test_TimerCommand_InvalidURL(t *testing.T) {
	_, err := executeCommand("timer", "list", "-e", "https://push.example.com/e1", "--url", "not a url")

	if err == nil {
		t.Error("expected an error for an invalid API URL")
	}
}
