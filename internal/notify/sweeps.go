package notify

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ReminderSweep sends a measurement reminder to every user whose last
// measurement is older than three days or who has never measured, skipping
// opted-out users. Sends run in parallel with bounded concurrency; a
// failing target never affects the others. Returns the number delivered.
func (d *Dispatcher) ReminderSweep(ctx context.Context) (int, error) {
	threshold := d.now().Add(-reminderAfter)

	targets, err := d.users.ReminderTargets(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("reminder sweep: %w", err)
	}

	d.logger.Info("Reminder sweep started", "targets", len(targets), "threshold", threshold)

	var delivered atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)

	for _, target := range targets {
		if !target.WantsNotifications() {
			continue
		}
		userID := target.ID
		g.Go(func() error {
			if d.SendToUser(ctx, userID, appTitle, reminderBody, map[string]string{
				"type": "measurement_reminder",
			}) {
				delivered.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait() // sends never return errors; failures are counted per target

	sent := int(delivered.Load())
	d.logger.Info("Reminder sweep complete", "delivered", sent)
	return sent, nil
}

// WeeklyRankingSweep multicasts the ranking-refresh notification to every
// opted-in user holding a delivery token.
func (d *Dispatcher) WeeklyRankingSweep(ctx context.Context) (Result, error) {
	users, err := d.users.UsersWithToken(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("weekly ranking sweep: %w", err)
	}

	var tokens []string
	for i := range users {
		if users[i].WantsNotifications() && users[i].FCMToken != "" {
			tokens = append(tokens, users[i].FCMToken)
		}
	}
	if len(tokens) == 0 {
		d.logger.Info("Weekly ranking sweep: no targets")
		return Result{}, nil
	}

	d.logger.Info("Weekly ranking sweep started", "tokens", len(tokens))

	result := d.sendToTokens(ctx, tokens, appTitle, weeklyBody, map[string]string{
		"type": "weekly_ranking",
	})

	d.logger.Info("Weekly ranking sweep complete",
		"success", result.SuccessCount, "failure", result.FailureCount)
	return result, nil
}
