package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/circa10a/push-timer/internal/server/database"
	"github.com/circa10a/push-timer/internal/server/push"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/time/rate"
)

// markTimeout bounds the final MarkNotified of a batch, which runs even after shutdown begins.
const markTimeout = 10 * time.Second

// Deliverer sends a single push notification.
type Deliverer interface {
	Enabled() bool
	Deliver(ctx context.Context, credentials []byte, n push.Notification) error
}

// Worker periodically fires expired timers.
type Worker struct {
	Store     database.Store
	Sender    Deliverer
	Mirror    *push.Mirror
	Limiter   *rate.Limiter
	BatchSize int
	Interval  time.Duration
	Logger    *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Start runs sweeps until ctx is cancelled. The next wait only begins once a sweep returns.
func (w *Worker) Start(ctx context.Context) {
	timer := time.NewTimer(w.Interval)
	defer timer.Stop()

	w.Logger.Info("Starting expiry worker", "interval", w.Interval.String(), "batch_size", w.BatchSize)

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("Stopping expiry worker")
			return
		case <-timer.C:
			w.Logger.Debug("Checking for expired timers")
			w.sweep(ctx)
			timer.Reset(w.Interval)
		}
	}
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// sweep fires every due timer in batches. Panics are recovered so future sweeps still run.
func (w *Worker) sweep(ctx context.Context) {
	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	var (
		catcher panics.Catcher
		err     error
	)
	catcher.Try(func() { err = w.sweepBatches(ctx) })

	if r := catcher.Recovered(); r != nil {
		sweepsTotal.WithLabelValues("panic").Inc()
		w.Logger.Error("Recovered from panic during sweep", "error", r.AsError())
		return
	}

	if err != nil {
		sweepsTotal.WithLabelValues("error").Inc()
		w.Logger.Error("Sweep stopped early", "error", err)
		return
	}

	sweepsTotal.WithLabelValues("ok").Inc()
}

// sweepBatches fetches and fires batches until a short batch. A store error ends the sweep so the
// same batch is not refetched in a loop; the next sweep retries it.
func (w *Worker) sweepBatches(ctx context.Context) error {
	enabled := w.Sender.Enabled()
	if !enabled {
		w.Logger.Warn("Push delivery disabled, VAPID keys not configured. Due timers will be marked notified without delivery")
	}

	now := w.now()

	for ctx.Err() == nil {
		due, err := w.Store.GetDue(ctx, now, w.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to fetch due timers: %w", err)
		}

		if len(due) == 0 {
			return nil
		}

		err = w.processBatch(ctx, due, enabled)
		if err != nil {
			return fmt.Errorf("failed to mark timers as notified: %w", err)
		}

		if len(due) < w.BatchSize {
			return nil
		}
	}

	return nil
}

// processBatch attempts each timer once and then marks every attempted timer notified in one
// transaction, whatever the delivery outcome.
func (w *Worker) processBatch(ctx context.Context, due []database.DueTimer, enabled bool) error {
	attempted := make([]int64, 0, len(due))
	gone := map[int64]struct{}{}

	for _, t := range due {
		if _, ok := gone[t.SubscriptionID]; ok {
			attempted = append(attempted, t.ID)
			continue
		}

		if enabled && w.Limiter != nil {
			err := w.Limiter.Wait(ctx)
			if err != nil {
				break
			}
		}

		attempted = append(attempted, t.ID)
		w.fire(ctx, t, enabled, gone)
	}

	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()

	return w.Store.MarkNotified(markCtx, attempted)
}

func (w *Worker) fire(ctx context.Context, t database.DueTimer, enabled bool, gone map[int64]struct{}) {
	log := w.Logger.With("timer_id", t.ID, "subscription_id", t.SubscriptionID)

	err := w.Mirror.Send(t.Message)
	if err != nil {
		mirrorFailuresTotal.Inc()
		log.Warn("Mirror notification failed", "error", err)
	}

	if !enabled {
		deliveriesTotal.WithLabelValues(resultSkipped).Inc()
		return
	}

	notification := push.Notification{Body: t.Message}
	if t.ClientID != nil {
		notification.Tag = *t.ClientID
	}

	err = w.Sender.Deliver(ctx, t.Credentials, notification)
	switch {
	case err == nil:
		deliveriesTotal.WithLabelValues(resultSuccess).Inc()
		log.Info("Delivered timer notification")
	case errors.Is(err, push.ErrGone):
		deliveriesTotal.WithLabelValues(resultGone).Inc()
		gone[t.SubscriptionID] = struct{}{}
		log.Info("Subscription gone, removing it and its timers")

		err = w.Store.DeleteSubscription(ctx, t.SubscriptionID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			log.Error("Failed to delete gone subscription", "error", err)
		}
	default:
		deliveriesTotal.WithLabelValues(resultFailed).Inc()
		log.Error("Failed to deliver timer notification", "error", err)
	}
}
