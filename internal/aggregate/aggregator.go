// Package aggregate folds newly created measurements into the running cafe
// statistics and the owning user's progression state. One Apply call per
// measurement event; each document is updated in its own optimistic
// transaction so concurrent events for the same cafe or user serialize
// through store-level conflict retry rather than in-process locking.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cafeondo/cafeondo-server/internal/kst"
	"github.com/cafeondo/cafeondo-server/internal/model"
	"github.com/cafeondo/cafeondo-server/internal/store"
)

// Store is the slice of the document store the aggregator needs. The mutate
// callbacks run inside a transaction and may be retried; they must stay free
// of external side effects.
type Store interface {
	UpdateCafe(ctx context.Context, cafeID string, mutate func(*model.Cafe)) error
	UpdateUser(ctx context.Context, userID string, mutate func(*model.User)) error
}

// Aggregator applies measurement events.
type Aggregator struct {
	store  Store
	logger *slog.Logger
}

// New creates an Aggregator.
func New(s Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: s, logger: logger}
}

// Apply folds one measurement into the cafe and user documents.
//
// A malformed measurement is dropped with a *model.ValidationError. A
// dangling cafe or user reference is dropped with a warning and no error —
// retrying cannot fix it, so the event counts as processed. A transaction
// that cannot commit is returned wrapped so the trigger layer retries the
// event. The cafe and user updates are independent side effects of the same
// event: both are always attempted, and either may fail alone.
func (a *Aggregator) Apply(ctx context.Context, m *model.Measurement) error {
	if err := m.Validate(); err != nil {
		a.logger.Warn("Dropping invalid measurement", "measurement_id", m.ID, "error", err)
		return err
	}

	cafeErr := a.applyToCafe(ctx, m)
	userErr := a.applyToUser(ctx, m)
	if cafeErr != nil || userErr != nil {
		return errors.Join(cafeErr, userErr)
	}

	a.logger.Info("Measurement applied",
		"measurement_id", m.ID, "cafe_id", m.CafeID, "user_id", m.UserID)
	return nil
}

func (a *Aggregator) applyToCafe(ctx context.Context, m *model.Measurement) error {
	err := a.store.UpdateCafe(ctx, m.CafeID, func(cafe *model.Cafe) {
		foldCafe(cafe, m)
	})
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Warn("Measurement references missing cafe",
			"measurement_id", m.ID, "cafe_id", m.CafeID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply measurement %s to cafe: %w", m.ID, err)
	}
	return nil
}

func (a *Aggregator) applyToUser(ctx context.Context, m *model.Measurement) error {
	var leveledUp bool
	var newLevel model.Level

	err := a.store.UpdateUser(ctx, m.UserID, func(user *model.User) {
		leveledUp, newLevel = foldUser(user, m)
	})
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Warn("Measurement references missing user",
			"measurement_id", m.ID, "user_id", m.UserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply measurement %s to user: %w", m.ID, err)
	}

	if leveledUp {
		a.logger.Info("User leveled up", "user_id", m.UserID, "level", int(newLevel))
	}
	return nil
}

// foldCafe updates the running average, category, recent list, and the
// single hourly bucket matching the measurement's local hour.
func foldCafe(cafe *model.Cafe, m *model.Measurement) {
	newTotal := cafe.TotalMeasurements + 1
	newAvg := (cafe.AverageNoiseLevel*float64(cafe.TotalMeasurements) + m.DecibelLevel) / float64(newTotal)

	cafe.TotalMeasurements = newTotal
	cafe.AverageNoiseLevel = newAvg
	cafe.NoiseCategory = model.CategoryForLevel(newAvg)

	recent := make([]model.RecentMeasurement, 0, model.RecentMeasurementsKept)
	recent = append(recent, model.RecentMeasurement{
		MeasurementID: m.ID,
		DecibelLevel:  m.DecibelLevel,
		NoiseCategory: m.NoiseCategory,
		Timestamp:     m.Timestamp,
	})
	recent = append(recent, cafe.RecentMeasurements...)
	if len(recent) > model.RecentMeasurementsKept {
		recent = recent[:model.RecentMeasurementsKept]
	}
	cafe.RecentMeasurements = recent

	if cafe.HourlyNoise == nil {
		cafe.HourlyNoise = model.HourlyNoise{}
	}
	key := model.HourKey(kst.Hour(m.Timestamp))
	slot := cafe.HourlyNoise[key]
	slot.Avg = (slot.Avg*float64(slot.Count) + m.DecibelLevel) / float64(slot.Count+1)
	slot.Count++
	cafe.HourlyNoise[key] = slot
}

// foldUser advances the progression counters: lifetime count, points from
// the tier table keyed by the post-increment count, level with a single +50
// bonus per crossing, and the weekly counter.
func foldUser(user *model.User, m *model.Measurement) (leveledUp bool, newLevel model.Level) {
	prevLevel := model.LevelForCount(user.TotalMeasurements)
	user.TotalMeasurements++
	newLevel = model.LevelForCount(user.TotalMeasurements)

	user.Points += model.PointsForCount(user.TotalMeasurements)
	if newLevel > prevLevel {
		leveledUp = true
		user.Points += model.LevelUpBonus
		user.PendingLevelUp = &model.PendingLevelUp{
			Level:    newLevel,
			LevelKey: newLevel.Key(),
			RaisedAt: time.Now().UTC(),
		}
	}
	user.LevelKey = newLevel.Key()
	user.WeeklyMeasurements++
	user.LastMeasurementAt = m.Timestamp
	return leveledUp, newLevel
}
