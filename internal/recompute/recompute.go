// Package recompute rebuilds derived statistics from the raw measurement
// history on a schedule: per-hour noise buckets over a trailing 30-day
// window, and the three weekly leaderboards. Both jobs re-derive ground
// truth from the window and overwrite, so a rerun with unchanged data is a
// no-op and accidental concurrent runs are tolerated.
package recompute

import (
	"context"
	"log/slog"
	"time"

	"github.com/cafeondo/cafeondo-server/internal/model"
)

// Trailing window for the hourly bucket rebuild.
const hourlyWindowDays = 30

// Store is the slice of the document store the recomputation jobs need.
type Store interface {
	CafeIDs(ctx context.Context) ([]string, error)
	MeasurementsForCafes(ctx context.Context, cafeIDs []string, since time.Time) ([]model.Measurement, error)
	SetHourlyNoise(ctx context.Context, updates map[string]model.HourlyNoise) error

	RankedCafes(ctx context.Context) ([]model.Cafe, error)
	MeasurementsSince(ctx context.Context, since time.Time) ([]model.Measurement, error)
	CafesByID(ctx context.Context, ids []string) ([]model.Cafe, error)
	UsersByID(ctx context.Context, ids []string) ([]model.User, error)
	ReplaceRankings(ctx context.Context, snapshots map[string]*model.RankingSnapshot) error
	ResetWeeklyCounts(ctx context.Context, counts map[string]int64) error
}

// Engine runs the scheduled recomputation jobs.
type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Engine.
func New(s Store, logger *slog.Logger) *Engine {
	return &Engine{store: s, logger: logger, now: time.Now}
}
