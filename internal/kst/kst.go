// Package kst provides calendar helpers for the fixed UTC+9 zone all
// scheduled jobs and hour bucketing operate in.
package kst

import "time"

// Location is the fixed UTC+9 offset. A fixed zone is used instead of the
// IANA database entry so the hour math cannot change under tzdata updates.
var Location = time.FixedZone("KST", 9*60*60)

// Hour returns the local hour-of-day (0–23) of t.
func Hour(t time.Time) int {
	return (t.UTC().Hour() + 9) % 24
}

// DayStart returns local midnight of t's day as a UTC instant.
func DayStart(t time.Time) time.Time {
	local := t.In(Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Location).UTC()
}

// WeekStart returns the most recent local Monday 00:00 at or before t as a
// UTC instant. Monday itself maps to its own midnight.
func WeekStart(t time.Time) time.Time {
	start := DayStart(t)
	weekday := start.In(Location).Weekday()
	daysFromMonday := (int(weekday) + 6) % 7
	return start.AddDate(0, 0, -daysFromMonday)
}
