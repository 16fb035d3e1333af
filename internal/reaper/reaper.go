// Package reaper periodically removes attempt records left behind by
// deleted exams.
package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pavelanni/examhall/internal/metrics"
)

const runTimeout = 2 * time.Minute

// Purger deletes orphaned attempts and reports how many were removed.
type Purger interface {
	PurgeOrphanedAttempts(ctx context.Context) (int64, error)
}

// Start schedules purges on the given cron spec and starts the scheduler.
// Stop the returned cron to end it; a run still in progress is never
// overlapped by the next tick.
func Start(p Purger, schedule string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(schedule, func() { RunOnce(context.Background(), p) }); err != nil {
		return nil, fmt.Errorf("schedule reaper %q: %w", schedule, err)
	}
	c.Start()
	slog.Info("orphan reaper started", "schedule", schedule)
	return c, nil
}

// RunOnce performs a single purge.
func RunOnce(ctx context.Context, p Purger) int64 {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	n, err := p.PurgeOrphanedAttempts(ctx)
	if err != nil {
		slog.Error("orphan reaper failed", "error", err)
		return 0
	}
	metrics.OrphansPurged.Add(float64(n))
	if n > 0 {
		slog.Info("purged orphaned attempts", "count", n)
	}
	return n
}
