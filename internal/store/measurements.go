package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cafeondo/cafeondo-server/internal/model"
)

// CreateMeasurement persists a new immutable measurement event. The write
// fails if a document with the same id already exists, which keeps ingestion
// at-most-once-successful per measurement id.
func (c *Client) CreateMeasurement(ctx context.Context, m *model.Measurement) error {
	_, err := c.fs.Collection(MeasurementsCollection).Doc(m.ID).Create(ctx, m)
	if err != nil {
		return fmt.Errorf("create measurement %s: %w", m.ID, err)
	}
	return nil
}

// MeasurementsSince returns all measurements with timestamp >= since.
func (c *Client) MeasurementsSince(ctx context.Context, since time.Time) ([]model.Measurement, error) {
	it := c.fs.Collection(MeasurementsCollection).
		Where("timestamp", ">=", since).
		Documents(ctx)
	defer it.Stop()

	var out []model.Measurement
	for {
		snap, err := it.Next()
		if isIteratorDone(err) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("measurements since %s: %w", since.Format(time.RFC3339), err)
		}
		var m model.Measurement
		if err := snap.DataTo(&m); err != nil {
			return nil, fmt.Errorf("decode measurement %s: %w", snap.Ref.ID, err)
		}
		m.ID = snap.Ref.ID
		out = append(out, m)
	}
	return out, nil
}

// MeasurementsForCafes returns measurements for the given cafes with
// timestamp >= since. cafeIDs must not exceed the in-query limit; callers
// iterating all cafes chunk their id list first.
func (c *Client) MeasurementsForCafes(ctx context.Context, cafeIDs []string, since time.Time) ([]model.Measurement, error) {
	if len(cafeIDs) == 0 {
		return nil, nil
	}
	if len(cafeIDs) > MaxInQuery {
		return nil, fmt.Errorf("measurements query: %d cafe ids exceeds in-query limit of %d", len(cafeIDs), MaxInQuery)
	}

	it := c.fs.Collection(MeasurementsCollection).
		Where("cafeId", "in", cafeIDs).
		Where("timestamp", ">=", since).
		Documents(ctx)
	defer it.Stop()

	var out []model.Measurement
	for {
		snap, err := it.Next()
		if isIteratorDone(err) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("measurements for cafes: %w", err)
		}
		var m model.Measurement
		if err := snap.DataTo(&m); err != nil {
			return nil, fmt.Errorf("decode measurement %s: %w", snap.Ref.ID, err)
		}
		m.ID = snap.Ref.ID
		out = append(out, m)
	}
	return out, nil
}
