package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HttpRequestDoer performs HTTP requests. *http.Client satisfies it.
type HttpRequestDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a push-timer server.
type Client struct {
	Server string
	Client HttpRequestDoer
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(doer HttpRequestDoer) ClientOption {
	return func(c *Client) error {
		c.Client = doer
		return nil
	}
}

// NewClient returns a Client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	_, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	client := &Client{
		Server: strings.TrimSuffix(baseURL, "/"),
	}

	for _, o := range opts {
		err := o(client)
		if err != nil {
			return nil, err
		}
	}

	if client.Client == nil {
		client.Client = &http.Client{}
	}

	return client, nil
}

// Response holds the raw reply and, for 2xx statuses, the decoded body.
type Response[T any] struct {
	StatusCode int
	Body       []byte
	JSON       *T
}

// Subscribe registers a push subscription.
func (c *Client) Subscribe(ctx context.Context, body SubscribeRequest) (*Response[SubscribeResponse], error) {
	return do[SubscribeResponse](ctx, c, http.MethodPost, "/subscribe", body)
}

// StartTimer starts a timer for a registered subscription.
func (c *Client) StartTimer(ctx context.Context, body StartTimerRequest) (*Response[StartTimerResponse], error) {
	return do[StartTimerResponse](ctx, c, http.MethodPost, "/start_timer", body)
}

// ListTimers lists the timers of the subscription with the given endpoint.
func (c *Client) ListTimers(ctx context.Context, endpoint string) (*Response[[]Timer], error) {
	return do[[]Timer](ctx, c, http.MethodGet, "/api/timers?endpoint="+url.QueryEscape(endpoint), nil)
}

// CancelTimer deletes a single timer.
func (c *Client) CancelTimer(ctx context.Context, id int64) (*Response[StatusResponse], error) {
	return do[StatusResponse](ctx, c, http.MethodPost, "/api/timers/cancel", CancelTimerRequest{TimerID: &id})
}

// CancelAllTimers deletes every timer of the subscription with the given endpoint.
func (c *Client) CancelAllTimers(ctx context.Context, endpoint string) (*Response[StatusResponse], error) {
	return do[StatusResponse](ctx, c, http.MethodPost, "/api/timers/cancel_all", CancelAllRequest{
		Subscription: SubscriptionRef{Endpoint: endpoint},
	})
}

// Health fetches the server health.
func (c *Client) Health(ctx context.Context) (*Response[Health], error) {
	return do[Health](ctx, c, http.MethodGet, "/health", nil)
}

func do[T any](ctx context.Context, c *Client, method, path string, body any) (*Response[T], error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Server+path, reader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rsp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rsp.Body.Close() }()

	bodyBytes, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, err
	}

	response := &Response[T]{
		StatusCode: rsp.StatusCode,
		Body:       bodyBytes,
	}

	if rsp.StatusCode >= 200 && rsp.StatusCode < 300 {
		var dest T
		err = json.Unmarshal(bodyBytes, &dest)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		response.JSON = &dest
	}

	return response, nil
}
