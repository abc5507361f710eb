// Command jobs runs one scheduled engine job to completion and exits.
// Useful for backfills and for re-running a failed invocation by hand.
//
// Usage:
//
//	cafeondo-jobs hourly
//	cafeondo-jobs rankings
//	cafeondo-jobs reminder
//	cafeondo-jobs weekly-notify
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/cafeondo/cafeondo-server/internal/config"
	"github.com/cafeondo/cafeondo-server/internal/model"
	"github.com/cafeondo/cafeondo-server/internal/notify"
	"github.com/cafeondo/cafeondo-server/internal/recompute"
	"github.com/cafeondo/cafeondo-server/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "cafeondo-jobs",
		Short: "CafeOndo engine job runner",
	}

	root.AddCommand(hourlyCmd())
	root.AddCommand(rankingsCmd())
	root.AddCommand(reminderCmd())
	root.AddCommand(weeklyNotifyCmd())
	root.AddCommand(seedCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

func hourlyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hourly",
		Short: "Rebuild per-hour noise buckets from the trailing 30-day window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, deps *deps) error {
				return deps.engine.RebuildHourly(ctx)
			})
		},
	}
}

func rankingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rankings",
		Short: "Rebuild the three weekly leaderboards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, deps *deps) error {
				return deps.engine.RebuildRankings(ctx)
			})
		},
	}
}

func reminderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reminder",
		Short: "Send measurement reminders to inactive users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, deps *deps) error {
				sent, err := deps.dispatcher.ReminderSweep(ctx)
				if err != nil {
					return err
				}
				logger.Info("Reminder sweep finished", "delivered", sent)
				return nil
			})
		},
	}
}

func weeklyNotifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weekly-notify",
		Short: "Multicast the weekly ranking notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, deps *deps) error {
				result, err := deps.dispatcher.WeeklyRankingSweep(ctx)
				if err != nil {
					return err
				}
				logger.Info("Weekly multicast finished",
					"success", result.SuccessCount, "failure", result.FailureCount)
				return nil
			})
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo cafes into an empty environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			docs, err := store.New(ctx, cfg.ProjectID, cfg.CredentialsFile)
			if err != nil {
				return err
			}
			defer docs.Close()

			created := 0
			for _, cafe := range demoCafes() {
				if err := docs.CreateCafe(ctx, &cafe); err != nil {
					logger.Warn("Skipping cafe", "cafe_id", cafe.ID, "error", err)
					continue
				}
				created++
			}
			logger.Info("Seed complete", "created", created)
			return nil
		},
	}
}

func demoCafes() []model.Cafe {
	return []model.Cafe{
		{
			ID:          "demo-hongdae-draft",
			Name:        "Draft Coffee Hongdae",
			Address:     "Seoul, Mapo-gu, Wausan-ro 29",
			Coordinates: model.Coordinates{Latitude: 37.5563, Longitude: 126.9237},
			Tags:        []string{"wifi", "outlets"},
		},
		{
			ID:          "demo-seongsu-onion",
			Name:        "Onion Seongsu",
			Address:     "Seoul, Seongdong-gu, Achasan-ro 9-gil 8",
			Coordinates: model.Coordinates{Latitude: 37.5446, Longitude: 127.0585},
			Tags:        []string{"bakery", "spacious"},
		},
		{
			ID:          "demo-yeonnam-lounge",
			Name:        "Yeonnam Study Lounge",
			Address:     "Seoul, Mapo-gu, Donggyo-ro 248",
			Coordinates: model.Coordinates{Latitude: 37.5632, Longitude: 126.9256},
			Tags:        []string{"quiet", "study"},
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

type deps struct {
	engine     *recompute.Engine
	dispatcher *notify.Dispatcher
}

func run(fn func(ctx context.Context, deps *deps) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	docs, err := store.New(ctx, cfg.ProjectID, cfg.CredentialsFile)
	if err != nil {
		return err
	}
	defer docs.Close()

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return err
	}
	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return err
	}

	d := &deps{
		engine:     recompute.New(docs, logger),
		dispatcher: notify.New(docs, notify.NewFCMTransport(messagingClient), logger),
	}

	start := time.Now()
	if err := fn(ctx, d); err != nil {
		return err
	}
	logger.Info("Job complete", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}
