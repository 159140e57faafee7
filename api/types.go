// Package api contains the wire types shared by the push-timer server and its CLI client.
package api

// Status values returned in response envelopes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// TimerStatus is the derived state of a timer as shown to clients.
type TimerStatus string

const (
	TimerStatusRunning   TimerStatus = "running"
	TimerStatusCompleted TimerStatus = "completed"
)

// HealthStatus reports overall service health.
type HealthStatus string

const (
	HealthStatusOk     HealthStatus = "ok"
	HealthStatusFailed HealthStatus = "failed"
)

// PushKeys are the client encryption keys of a browser push subscription.
type PushKeys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}

// PushSubscription mirrors the browser PushSubscription JSON.
type PushSubscription struct {
	Endpoint       string   `json:"endpoint" validate:"required,url"`
	ExpirationTime *int64   `json:"expirationTime,omitempty"`
	Keys           PushKeys `json:"keys"`
}

// SubscribeRequest registers a push subscription.
type SubscribeRequest struct {
	Subscription PushSubscription `json:"subscription"`
}

// SubscribeResponse is returned by POST /subscribe.
type SubscribeResponse struct {
	Status string `json:"status"`
	ID     int64  `json:"id"`
}

// SubscriptionRef identifies a subscription by endpoint only.
// Keys are accepted but not required.
type SubscriptionRef struct {
	Endpoint string    `json:"endpoint" validate:"required"`
	Keys     *PushKeys `json:"keys,omitempty"`
}

// StartTimerRequest starts (or restarts, when ClientID matches) a timer.
type StartTimerRequest struct {
	Subscription SubscriptionRef `json:"subscription"`
	Minutes      *int            `json:"minutes" validate:"required,gte=0,lte=525600"`
	Message      string          `json:"message" validate:"required,max=200"`
	ClientID     *string         `json:"client_id,omitempty" validate:"omitempty,max=100"`
}

// StartTimerResponse is returned by POST /start_timer.
type StartTimerResponse struct {
	Status     string `json:"status"`
	TimerID    int64  `json:"timer_id"`
	ExpiryTime string `json:"expiry_time"`
}

// Timer is a single entry of GET /api/timers.
type Timer struct {
	ID         int64       `json:"id"`
	ClientID   *string     `json:"client_id,omitempty"`
	ExpiryTime string      `json:"expiry_time"`
	Status     TimerStatus `json:"status"`
}

// CancelTimerRequest cancels one timer.
type CancelTimerRequest struct {
	TimerID *int64 `json:"timer_id" validate:"required"`
}

// CancelAllRequest cancels every timer of a subscription.
type CancelAllRequest struct {
	Subscription SubscriptionRef `json:"subscription"`
}

// StatusResponse is the plain success envelope.
type StatusResponse struct {
	Status string `json:"status"`
}

// Health is returned by GET /health.
type Health struct {
	Status            HealthStatus `json:"status"`
	DatabaseConnected bool         `json:"database_connected"`
	VAPIDConfigured   bool         `json:"vapid_configured"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
