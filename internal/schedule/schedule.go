// Package schedule drives the recomputation and notification jobs on fixed
// KST calendar cadences. All scheduled work runs inside this process; each
// invocation retries transient store failures with exponential backoff and
// otherwise waits for the next firing — the jobs are idempotent overwrites,
// so a missed or doubled run is harmless.
package schedule

import (
	"context"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"

	"github.com/cafeondo/cafeondo-server/internal/kst"
	"github.com/cafeondo/cafeondo-server/internal/store"
)

const retriesPerRun = 3

// Jobs are the four scheduled entry points.
type Jobs struct {
	HourlyRebuild  func(ctx context.Context) error
	WeeklyRankings func(ctx context.Context) error
	ReminderSweep  func(ctx context.Context) error
	RankingNotify  func(ctx context.Context) error
}

// Config holds the cron expressions, evaluated in KST. Defaults carry the
// original deployment cadences.
type Config struct {
	HourlySpec   string // daily hourly-bucket rebuild
	RankingsSpec string // weekly ranking rebuild
	ReminderSpec string // daily reminder sweep
	NotifySpec   string // weekly ranking multicast
}

// DefaultConfig returns the production cadences.
func DefaultConfig() Config {
	return Config{
		HourlySpec:   "0 3 * * *",  // 03:00 KST daily
		RankingsSpec: "0 6 * * 1",  // Monday 06:00 KST
		ReminderSpec: "0 12 * * *", // 12:00 KST daily
		NotifySpec:   "0 7 * * 1",  // Monday 07:00 KST
	}
}

// Start registers all jobs and starts the scheduler. It returns immediately;
// the scheduler stops when ctx is cancelled.
func Start(ctx context.Context, cfg Config, jobs Jobs, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(kst.Location))

	entries := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"hourly_rebuild", cfg.HourlySpec, jobs.HourlyRebuild},
		{"weekly_rankings", cfg.RankingsSpec, jobs.WeeklyRankings},
		{"reminder_sweep", cfg.ReminderSpec, jobs.ReminderSweep},
		{"ranking_notify", cfg.NotifySpec, jobs.RankingNotify},
	}

	for _, e := range entries {
		if e.run == nil {
			continue
		}
		name, run := e.name, e.run
		if _, err := c.AddFunc(e.spec, func() {
			runJob(ctx, name, run, logger)
		}); err != nil {
			return nil, err
		}
		logger.Info("Job scheduled", "job", name, "spec", e.spec)
	}

	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		logger.Info("Scheduler stopped")
	}()
	return c, nil
}

// runJob executes one invocation, retrying transient store failures a few
// times before giving up until the next firing.
func runJob(ctx context.Context, name string, run func(ctx context.Context) error, logger *slog.Logger) {
	operation := func() error {
		err := run(ctx)
		if err == nil {
			return nil
		}
		if store.IsTransient(err) {
			logger.Warn("Job attempt failed, retrying", "job", name, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retriesPerRun), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		logger.Error("Job failed; waiting for next firing", "job", name, "error", err)
	}
}
