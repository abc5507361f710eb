package recompute

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cafeondo/cafeondo-server/internal/kst"
	"github.com/cafeondo/cafeondo-server/internal/model"
)

// RebuildRankings recomputes the three leaderboards over the current week
// window [most recent Monday 00:00 KST, +7d), replaces all three snapshot
// documents in one atomic batch, and then resets the per-user weekly
// counters to the window-derived counts.
func (e *Engine) RebuildRankings(ctx context.Context) error {
	weekStart := kst.WeekStart(e.now())
	weekEnd := weekStart.Add(7 * 24 * time.Hour)
	period := model.RankingPeriod{Start: weekStart, End: weekEnd}

	e.logger.Info("Ranking rebuild started", "week_start", weekStart, "week_end", weekEnd)

	cafes, err := e.store.RankedCafes(ctx)
	if err != nil {
		return fmt.Errorf("ranking rebuild: %w", err)
	}
	quiet := quietCafes(cafes)

	measurements, err := e.store.MeasurementsSince(ctx, weekStart)
	if err != nil {
		return fmt.Errorf("ranking rebuild: %w", err)
	}
	// Guard against observations past the window boundary.
	inWindow := measurements[:0]
	for _, m := range measurements {
		if m.Timestamp.Before(weekEnd) {
			inWindow = append(inWindow, m)
		}
	}

	userOrder, userCounts := countByFirstSeen(inWindow, func(m *model.Measurement) string { return m.UserID })
	cafeOrder, cafeCounts := countByFirstSeen(inWindow, func(m *model.Measurement) string { return m.CafeID })

	topUsers, err := e.topMeasurers(ctx, userOrder, userCounts)
	if err != nil {
		return fmt.Errorf("ranking rebuild: %w", err)
	}
	topCafes, err := e.activeCafes(ctx, cafeOrder, cafeCounts)
	if err != nil {
		return fmt.Errorf("ranking rebuild: %w", err)
	}

	snapshots := map[string]*model.RankingSnapshot{
		model.BoardQuietCafes:   {Items: quiet, Period: period},
		model.BoardTopMeasurers: {Items: topUsers, Period: period},
		model.BoardActiveCafes:  {Items: topCafes, Period: period},
	}
	if err := e.store.ReplaceRankings(ctx, snapshots); err != nil {
		return fmt.Errorf("ranking rebuild: %w", err)
	}

	if err := e.store.ResetWeeklyCounts(ctx, userCounts); err != nil {
		return fmt.Errorf("ranking rebuild: weekly counter reset: %w", err)
	}

	e.logger.Info("Ranking rebuild complete",
		"quiet_cafes", len(quiet),
		"top_measurers", len(topUsers),
		"active_cafes", len(topCafes))
	return nil
}

// quietCafes ranks cafes with at least one measurement ascending by average
// noise level, top 20.
func quietCafes(cafes []model.Cafe) []model.RankingEntry {
	sorted := make([]model.Cafe, len(cafes))
	copy(sorted, cafes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AverageNoiseLevel < sorted[j].AverageNoiseLevel
	})
	if len(sorted) > model.RankingSize {
		sorted = sorted[:model.RankingSize]
	}

	entries := make([]model.RankingEntry, len(sorted))
	for i, cafe := range sorted {
		entries[i] = model.RankingEntry{
			Rank: i + 1,
			Cafe: &model.CafeRankingInfo{
				CafeID:            cafe.ID,
				Name:              cafe.Name,
				Address:           cafe.Address,
				AverageNoiseLevel: cafe.AverageNoiseLevel,
				NoiseCategory:     cafe.NoiseCategory,
				TotalMeasurements: cafe.TotalMeasurements,
			},
		}
	}
	return entries
}

func (e *Engine) topMeasurers(ctx context.Context, order []string, counts map[string]int64) ([]model.RankingEntry, error) {
	top := topIDs(order, counts)
	if len(top) == 0 {
		return nil, nil
	}

	users, err := e.store.UsersByID(ctx, top)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	entries := make([]model.RankingEntry, 0, len(top))
	for _, id := range top {
		info := &model.UserRankingInfo{
			UserID:             id,
			DisplayName:        "Cafe Explorer",
			LevelKey:           model.LevelBeginner.Key(),
			WeeklyMeasurements: counts[id],
		}
		if u := byID[id]; u != nil {
			if u.DisplayName != "" {
				info.DisplayName = u.DisplayName
			}
			info.PhotoURL = u.PhotoURL
			info.LevelKey = u.Level().Key()
			info.TotalMeasurements = u.TotalMeasurements
		}
		entries = append(entries, model.RankingEntry{Rank: len(entries) + 1, User: info})
	}
	return entries, nil
}

func (e *Engine) activeCafes(ctx context.Context, order []string, counts map[string]int64) ([]model.RankingEntry, error) {
	top := topIDs(order, counts)
	if len(top) == 0 {
		return nil, nil
	}

	cafes, err := e.store.CafesByID(ctx, top)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Cafe, len(cafes))
	for i := range cafes {
		byID[cafes[i].ID] = &cafes[i]
	}

	entries := make([]model.RankingEntry, 0, len(top))
	for _, id := range top {
		info := &model.CafeRankingInfo{
			CafeID:             id,
			NoiseCategory:      model.CategoryModerate,
			WeeklyMeasurements: counts[id],
		}
		if c := byID[id]; c != nil {
			info.Name = c.Name
			info.Address = c.Address
			info.AverageNoiseLevel = c.AverageNoiseLevel
			info.NoiseCategory = c.NoiseCategory
			info.TotalMeasurements = c.TotalMeasurements
		}
		entries = append(entries, model.RankingEntry{Rank: len(entries) + 1, Cafe: info})
	}
	return entries, nil
}

// countByFirstSeen counts window events per key and returns the keys in
// first-appearance order, which makes downstream tie-breaking stable.
func countByFirstSeen(measurements []model.Measurement, key func(*model.Measurement) string) ([]string, map[string]int64) {
	counts := make(map[string]int64)
	var order []string
	for i := range measurements {
		k := key(&measurements[i])
		if k == "" {
			continue
		}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	return order, counts
}

// topIDs ranks keys descending by count, ties broken by first-appearance
// order, and keeps the leaderboard size.
func topIDs(order []string, counts map[string]int64) []string {
	top := make([]string, len(order))
	copy(top, order)
	sort.SliceStable(top, func(i, j int) bool {
		return counts[top[i]] > counts[top[j]]
	})
	if len(top) > model.RankingSize {
		top = top[:model.RankingSize]
	}
	return top
}
