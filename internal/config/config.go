// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/jobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config struct — populated from environment variables.
type Config struct {
	// Firebase project
	ProjectID       string
	CredentialsFile string

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Scheduled job cadence overrides (cron expressions, evaluated in
	// KST). Empty means the scheduler's default cadence.
	HourlyRebuildCron  string
	WeeklyRankingsCron string
	ReminderCron       string
	RankingNotifyCron  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	projectID := envOr("FIREBASE_PROJECT_ID", envOr("GOOGLE_CLOUD_PROJECT", ""))
	if projectID == "" {
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID or GOOGLE_CLOUD_PROJECT must be set")
	}

	return &Config{
		ProjectID:       projectID,
		CredentialsFile: envOr("FIREBASE_CREDENTIALS_FILE", envOr("GOOGLE_APPLICATION_CREDENTIALS", "")),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8080)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		HourlyRebuildCron:  envOr("CRON_HOURLY_REBUILD", ""),
		WeeklyRankingsCron: envOr("CRON_WEEKLY_RANKINGS", ""),
		ReminderCron:       envOr("CRON_REMINDER_SWEEP", ""),
		RankingNotifyCron:  envOr("CRON_RANKING_NOTIFY", ""),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
