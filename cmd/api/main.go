// Command api is the CafeOndo aggregation-and-ranking engine server.
//
// Usage:
//
//	cafeondo-api
//	API_PORT=8080 cafeondo-api
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"github.com/cafeondo/cafeondo-server/internal/aggregate"
	"github.com/cafeondo/cafeondo-server/internal/api"
	"github.com/cafeondo/cafeondo-server/internal/api/handler"
	"github.com/cafeondo/cafeondo-server/internal/auth"
	"github.com/cafeondo/cafeondo-server/internal/config"
	"github.com/cafeondo/cafeondo-server/internal/notify"
	"github.com/cafeondo/cafeondo-server/internal/recompute"
	"github.com/cafeondo/cafeondo-server/internal/schedule"
	"github.com/cafeondo/cafeondo-server/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Firebase app: Firestore, Cloud Messaging, ID token verification
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		logger.Error("Failed to initialize Firebase app", "error", err)
		os.Exit(1)
	}

	logger.Info("Connecting to document store...", "project", cfg.ProjectID)
	docs, err := store.New(ctx, cfg.ProjectID, cfg.CredentialsFile)
	if err != nil {
		logger.Error("Failed to connect to document store", "error", err)
		os.Exit(1)
	}
	defer docs.Close()

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		logger.Error("Failed to create messaging client", "error", err)
		os.Exit(1)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		logger.Error("Failed to create auth client", "error", err)
		os.Exit(1)
	}

	// Core components
	aggregator := aggregate.New(docs, logger)
	engine := recompute.New(docs, logger)
	dispatcher := notify.New(docs, notify.NewFCMTransport(messagingClient), logger)
	verifier := auth.NewFirebaseVerifier(authClient)

	// Scheduled jobs: default cadences, overridable per job from env
	scheduleCfg := schedule.DefaultConfig()
	if cfg.HourlyRebuildCron != "" {
		scheduleCfg.HourlySpec = cfg.HourlyRebuildCron
	}
	if cfg.WeeklyRankingsCron != "" {
		scheduleCfg.RankingsSpec = cfg.WeeklyRankingsCron
	}
	if cfg.ReminderCron != "" {
		scheduleCfg.ReminderSpec = cfg.ReminderCron
	}
	if cfg.RankingNotifyCron != "" {
		scheduleCfg.NotifySpec = cfg.RankingNotifyCron
	}
	jobs := schedule.Jobs{
		HourlyRebuild:  engine.RebuildHourly,
		WeeklyRankings: engine.RebuildRankings,
		ReminderSweep: func(ctx context.Context) error {
			_, err := dispatcher.ReminderSweep(ctx)
			return err
		},
		RankingNotify: func(ctx context.Context) error {
			_, err := dispatcher.WeeklyRankingSweep(ctx)
			return err
		},
	}
	if _, err := schedule.Start(ctx, scheduleCfg, jobs, logger); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// Create router
	h := handler.New(docs, aggregator, dispatcher, logger)
	router := api.NewRouter(h, verifier, cfg, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting CafeOndo engine", "addr", addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
