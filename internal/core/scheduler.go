package core

// scheduler.go keeps the served dataset fresh in the background.
//
// Refreshes follow a cron expression ("@every 5m", "*/10 * * * *"). A run
// that is still going when the next one fires is skipped. A failed refresh
// is logged and the previous dataset keeps being served.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseRefreshSchedule validates a standard cron expression or descriptor.
func ParseRefreshSchedule(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", expr, err)
	}
	return sched, nil
}

// StartRefreshScheduler refetches the dataset on schedule until ctx is
// cancelled, then waits for a running refresh to finish. It does not
// refresh immediately; callers load the first dataset themselves so
// startup can fall back to a snapshot. An empty schedule returns at once.
func (s *Service) StartRefreshScheduler(ctx context.Context, schedule string) error {
	if schedule == "" {
		slog.Info("refresh scheduler disabled")
		return nil
	}
	sched, err := ParseRefreshSchedule(schedule)
	if err != nil {
		return err
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(sched, cron.FuncJob(func() { s.runRefreshJob(ctx) }))
	c.Start()
	slog.Info("refresh scheduler started", "schedule", schedule, "schema", s.opts.Schema.Name)

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("refresh scheduler stopped")
	return nil
}

// runRefreshJob performs one refresh cycle.
func (s *Service) runRefreshJob(ctx context.Context) {
	start := time.Now()
	info, err := s.Refresh(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("scheduled refresh failed", "error", err)
		}
		return
	}
	slog.Debug("scheduled refresh completed",
		"records", info.RecordCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
