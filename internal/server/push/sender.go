package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/circa10a/push-timer/internal/server/secrets"
)

// DefaultTitle is the notification title used when none is given.
const DefaultTitle = "Timer finished"

// ErrGone is returned when the push service reports the subscription no longer exists.
var ErrGone = errors.New("push subscription gone")

// Notification is the JSON payload delivered to the browser service worker.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
}

// Config configures a Sender.
type Config struct {
	Keys secrets.VAPIDKeys
	// Subscriber is the VAPID contact (email or https URL).
	Subscriber string
	TTL        time.Duration
	Timeout    time.Duration
}

// Sender delivers VAPID signed web push messages.
type Sender struct {
	keys       secrets.VAPIDKeys
	subscriber string
	ttl        int
	client     *http.Client
}

// NewSender returns a Sender. It is disabled when the VAPID keypair is incomplete.
func NewSender(cfg Config) *Sender {
	return &Sender{
		keys:       cfg.Keys,
		subscriber: cfg.Subscriber,
		ttl:        int(cfg.TTL.Seconds()),
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether VAPID keys are configured.
func (s *Sender) Enabled() bool {
	return s.keys.Complete()
}

// Deliver sends n to the subscription serialized in credentials.
func (s *Sender) Deliver(ctx context.Context, credentials []byte, n Notification) error {
	if !s.Enabled() {
		return errors.New("push delivery disabled: VAPID keys not configured")
	}

	sub := &webpush.Subscription{}
	err := json.Unmarshal(credentials, sub)
	if err != nil {
		return fmt.Errorf("invalid subscription credentials: %w", err)
	}

	if n.Title == "" {
		n.Title = DefaultTitle
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, sub, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		TTL:             s.ttl,
		VAPIDPublicKey:  s.keys.PublicKey,
		VAPIDPrivateKey: s.keys.PrivateKey,
	})
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusGone:
		return ErrGone
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("push service responded with status %d", resp.StatusCode)
	}

	return nil
}
