package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/cafeondo/cafeondo-server/internal/model"
	"github.com/cafeondo/cafeondo-server/internal/store"
)

// fakeStore holds in-memory cafe and user documents and applies mutate
// callbacks directly, the way the real store does inside a transaction.
type fakeStore struct {
	cafes map[string]*model.Cafe
	users map[string]*model.User

	updateErr error // returned from every update when set
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cafes: map[string]*model.Cafe{},
		users: map[string]*model.User{},
	}
}

func (f *fakeStore) UpdateCafe(ctx context.Context, cafeID string, mutate func(*model.Cafe)) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	cafe, ok := f.cafes[cafeID]
	if !ok {
		return store.ErrNotFound
	}
	mutate(cafe)
	return nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, userID string, mutate func(*model.User)) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	user, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	mutate(user)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func measurement(id string, db float64, ts time.Time) *model.Measurement {
	return &model.Measurement{
		ID:              id,
		CafeID:          "cafe-1",
		UserID:          "user-1",
		DecibelLevel:    db,
		NoiseCategory:   model.CategoryForLevel(db),
		DurationSeconds: 30,
		Timestamp:       ts,
	}
}

func TestApplyUpdatesCafeRunningStats(t *testing.T) {
	fs := newFakeStore()
	fs.cafes["cafe-1"] = &model.Cafe{ID: "cafe-1", Name: "Test Cafe"}
	fs.users["user-1"] = &model.User{ID: "user-1"}
	agg := New(fs, discardLogger())

	ts := time.Date(2026, 3, 9, 1, 0, 0, 0, time.UTC) // hour 10 local
	steps := []struct {
		db           float64
		wantAvg      float64
		wantCategory model.NoiseCategory
	}{
		{db: 30, wantAvg: 30, wantCategory: model.CategoryQuiet},
		{db: 50, wantAvg: 40, wantCategory: model.CategoryModerate},
		{db: 70, wantAvg: 50, wantCategory: model.CategoryModerate},
	}

	for i, step := range steps {
		m := measurement(fmt.Sprintf("m%d", i+1), step.db, ts)
		if err := agg.Apply(context.Background(), m); err != nil {
			t.Fatalf("Apply(m%d) = %v, want nil", i+1, err)
		}
		cafe := fs.cafes["cafe-1"]
		if math.Abs(cafe.AverageNoiseLevel-step.wantAvg) > 1e-9 {
			t.Errorf("after m%d: AverageNoiseLevel = %v, want %v", i+1, cafe.AverageNoiseLevel, step.wantAvg)
		}
		if cafe.NoiseCategory != step.wantCategory {
			t.Errorf("after m%d: NoiseCategory = %q, want %q", i+1, cafe.NoiseCategory, step.wantCategory)
		}
		if cafe.TotalMeasurements != int64(i+1) {
			t.Errorf("after m%d: TotalMeasurements = %d, want %d", i+1, cafe.TotalMeasurements, i+1)
		}
	}

	cafe := fs.cafes["cafe-1"]
	slot, ok := cafe.HourlyNoise["10"]
	if !ok {
		t.Fatalf("HourlyNoise missing slot 10, got %v", cafe.HourlyNoise)
	}
	if slot.Count != 3 || math.Abs(slot.Avg-50) > 1e-9 {
		t.Errorf("HourlyNoise[10] = %+v, want {Avg:50 Count:3}", slot)
	}
}

func TestApplyKeepsRecentMeasurementsBounded(t *testing.T) {
	fs := newFakeStore()
	fs.cafes["cafe-1"] = &model.Cafe{ID: "cafe-1"}
	fs.users["user-1"] = &model.User{ID: "user-1"}
	agg := New(fs, discardLogger())

	base := time.Date(2026, 3, 9, 1, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		m := measurement(fmt.Sprintf("m%d", i+1), 50, base.Add(time.Duration(i)*time.Minute))
		if err := agg.Apply(context.Background(), m); err != nil {
			t.Fatalf("Apply(m%d) = %v, want nil", i+1, err)
		}
	}

	recent := fs.cafes["cafe-1"].RecentMeasurements
	if len(recent) != model.RecentMeasurementsKept {
		t.Fatalf("len(RecentMeasurements) = %d, want %d", len(recent), model.RecentMeasurementsKept)
	}
	want := []string{"m7", "m6", "m5", "m4", "m3"}
	for i, w := range want {
		if recent[i].MeasurementID != w {
			t.Errorf("RecentMeasurements[%d] = %q, want %q", i, recent[i].MeasurementID, w)
		}
	}
}

func TestApplyAdvancesUserProgression(t *testing.T) {
	fs := newFakeStore()
	fs.cafes["cafe-1"] = &model.Cafe{ID: "cafe-1"}
	fs.users["user-1"] = &model.User{
		ID:                "user-1",
		TotalMeasurements: 9,
		Points:            90,
		LevelKey:          "beginner",
	}
	agg := New(fs, discardLogger())

	ts := time.Date(2026, 3, 9, 4, 0, 0, 0, time.UTC)
	if err := agg.Apply(context.Background(), measurement("m10", 50, ts)); err != nil {
		t.Fatalf("Apply() = %v, want nil", err)
	}

	user := fs.users["user-1"]
	if user.TotalMeasurements != 10 {
		t.Errorf("TotalMeasurements = %d, want 10", user.TotalMeasurements)
	}
	// 90 + 15 for the tenth measurement + 50 level-up bonus
	if user.Points != 155 {
		t.Errorf("Points = %d, want 155", user.Points)
	}
	if user.LevelKey != "intermediate" {
		t.Errorf("LevelKey = %q, want %q", user.LevelKey, "intermediate")
	}
	if user.PendingLevelUp == nil {
		t.Fatal("PendingLevelUp = nil, want marker")
	}
	if user.PendingLevelUp.Level != model.LevelIntermediate {
		t.Errorf("PendingLevelUp.Level = %d, want %d", user.PendingLevelUp.Level, model.LevelIntermediate)
	}
	if !user.LastMeasurementAt.Equal(ts) {
		t.Errorf("LastMeasurementAt = %v, want %v", user.LastMeasurementAt, ts)
	}
	if user.WeeklyMeasurements != 1 {
		t.Errorf("WeeklyMeasurements = %d, want 1", user.WeeklyMeasurements)
	}
}

func TestApplyNoBonusWithinLevel(t *testing.T) {
	fs := newFakeStore()
	fs.cafes["cafe-1"] = &model.Cafe{ID: "cafe-1"}
	fs.users["user-1"] = &model.User{
		ID:                "user-1",
		TotalMeasurements: 10,
		Points:            155,
		LevelKey:          "intermediate",
	}
	agg := New(fs, discardLogger())

	ts := time.Date(2026, 3, 9, 4, 0, 0, 0, time.UTC)
	if err := agg.Apply(context.Background(), measurement("m11", 50, ts)); err != nil {
		t.Fatalf("Apply() = %v, want nil", err)
	}

	user := fs.users["user-1"]
	if user.Points != 170 {
		t.Errorf("Points = %d, want 170", user.Points)
	}
	if user.PendingLevelUp != nil {
		t.Errorf("PendingLevelUp = %+v, want nil", user.PendingLevelUp)
	}
}

func TestApplyRejectsInvalidMeasurement(t *testing.T) {
	fs := newFakeStore()
	fs.cafes["cafe-1"] = &model.Cafe{ID: "cafe-1"}
	fs.users["user-1"] = &model.User{ID: "user-1"}
	agg := New(fs, discardLogger())

	m := measurement("bad", 50, time.Time{}) // missing timestamp
	err := agg.Apply(context.Background(), m)
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Apply() error type %T, want *model.ValidationError", err)
	}
	if fs.cafes["cafe-1"].TotalMeasurements != 0 {
		t.Error("invalid measurement mutated the cafe document")
	}
}

func TestApplyDropsDanglingReferences(t *testing.T) {
	fs := newFakeStore()
	// neither document exists
	agg := New(fs, discardLogger())

	ts := time.Date(2026, 3, 9, 4, 0, 0, 0, time.UTC)
	if err := agg.Apply(context.Background(), measurement("m1", 50, ts)); err != nil {
		t.Errorf("Apply() with dangling refs = %v, want nil", err)
	}
}

func TestApplyReturnsTransientErrors(t *testing.T) {
	fs := newFakeStore()
	fs.updateErr = errors.New("deadline exceeded")
	agg := New(fs, discardLogger())

	ts := time.Date(2026, 3, 9, 4, 0, 0, 0, time.UTC)
	err := agg.Apply(context.Background(), measurement("m1", 50, ts))
	if err == nil {
		t.Fatal("Apply() = nil, want error")
	}
	if !errors.Is(err, fs.updateErr) {
		t.Errorf("Apply() error %v does not wrap the store error", err)
	}
}
