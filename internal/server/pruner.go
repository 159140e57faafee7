package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/circa10a/push-timer/internal/server/database"
	"github.com/robfig/cron/v3"
)

const defaultPruneSchedule = "@hourly"

// cronParser accepts standard five field expressions and descriptors such as @hourly.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Pruner removes notified timers once they fall outside the retention window.
type Pruner struct {
	Store     database.Store
	Retention time.Duration
	Schedule  string
	Logger    *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Start runs the prune job on its cron schedule until ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) error {
	c := cron.New(cron.WithParser(cronParser))

	_, err := c.AddFunc(p.Schedule, func() { p.prune(ctx) })
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.Schedule, err)
	}

	p.Logger.Info("Starting timer pruner", "schedule", p.Schedule, "retention", p.Retention.String())
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	p.Logger.Info("Stopping timer pruner")

	return nil
}

func (p *Pruner) prune(ctx context.Context) {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	n, err := p.Store.PruneNotified(ctx, now.Add(-p.Retention))
	if err != nil {
		p.Logger.Error("Failed to prune notified timers", "error", err)
		return
	}

	prunedTimersTotal.Add(float64(n))
	if n > 0 {
		p.Logger.Info("Pruned notified timers", "count", n)
	}
}
