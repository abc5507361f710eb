package recompute

import (
	"context"
	"fmt"
	"math"

	"github.com/cafeondo/cafeondo-server/internal/kst"
	"github.com/cafeondo/cafeondo-server/internal/model"
	"github.com/cafeondo/cafeondo-server/internal/store"
)

// RebuildHourly recomputes every cafe's hourlyNoise map from the trailing
// 30-day measurement window and overwrites it. Cafes are processed in
// groups bounded by the store's in-query limit; a store error aborts the
// remaining groups and propagates, but committed groups stand — the next
// run re-derives everything anyway.
func (e *Engine) RebuildHourly(ctx context.Context) error {
	since := e.now().AddDate(0, 0, -hourlyWindowDays)

	cafeIDs, err := e.store.CafeIDs(ctx)
	if err != nil {
		return fmt.Errorf("hourly rebuild: %w", err)
	}
	if len(cafeIDs) == 0 {
		e.logger.Info("Hourly rebuild: no cafes")
		return nil
	}

	e.logger.Info("Hourly rebuild started", "cafes", len(cafeIDs), "since", since)

	rebuilt := 0
	for _, group := range store.Chunk(cafeIDs, store.MaxInQuery) {
		measurements, err := e.store.MeasurementsForCafes(ctx, group, since)
		if err != nil {
			return fmt.Errorf("hourly rebuild: %w", err)
		}

		updates := hourlyBuckets(measurements)
		if len(updates) == 0 {
			continue
		}
		if err := e.store.SetHourlyNoise(ctx, updates); err != nil {
			return fmt.Errorf("hourly rebuild: %w", err)
		}
		rebuilt += len(updates)
	}

	e.logger.Info("Hourly rebuild complete", "cafes_updated", rebuilt)
	return nil
}

// hourlyBuckets groups measurements by cafe and local hour-of-day, and
// computes each slot's mean (rounded to one decimal) and count. Cafes and
// hours with zero observations are absent from the result.
func hourlyBuckets(measurements []model.Measurement) map[string]model.HourlyNoise {
	type bucket struct {
		sum   float64
		count int64
	}
	perCafe := make(map[string]map[string]*bucket)

	for i := range measurements {
		m := &measurements[i]
		if m.CafeID == "" {
			continue
		}
		hours := perCafe[m.CafeID]
		if hours == nil {
			hours = make(map[string]*bucket)
			perCafe[m.CafeID] = hours
		}
		key := model.HourKey(kst.Hour(m.Timestamp))
		b := hours[key]
		if b == nil {
			b = &bucket{}
			hours[key] = b
		}
		b.sum += m.DecibelLevel
		b.count++
	}

	updates := make(map[string]model.HourlyNoise, len(perCafe))
	for cafeID, hours := range perCafe {
		noise := make(model.HourlyNoise, len(hours))
		for key, b := range hours {
			noise[key] = model.HourlyStat{
				Avg:   math.Round(b.sum/float64(b.count)*10) / 10,
				Count: b.count,
			}
		}
		updates[cafeID] = noise
	}
	return updates
}
