package model

// Level is a user progression level derived from lifetime measurement count.
type Level int

const (
	LevelBeginner     Level = 1 // 0+
	LevelIntermediate Level = 2 // 10+
	LevelAdvanced     Level = 3 // 50+
	LevelExpert       Level = 4 // 200+
	LevelGrandmaster  Level = 5 // 1000+
)

// levelThresholds is the single authoritative tier table. The measurement
// count thresholds, the per-measurement point values, and the level keys
// must stay in step; every level/points computation goes through it.
var levelThresholds = []struct {
	MinCount int64
	Level    Level
	Key      string
	Label    string
	Points   int64
}{
	{0, LevelBeginner, "beginner", "Cafe Explorer", 10},
	{10, LevelIntermediate, "intermediate", "Noise Scout", 15},
	{50, LevelAdvanced, "advanced", "Cafe Connoisseur", 20},
	{200, LevelExpert, "expert", "Cafe Master", 30},
	{1000, LevelGrandmaster, "grandmaster", "CafeOndo Legend", 50},
}

// LevelUpBonus is awarded once per threshold crossing.
const LevelUpBonus int64 = 50

// LevelForCount returns the progression level for a lifetime measurement
// count. Monotone non-decreasing in count.
func LevelForCount(count int64) Level {
	lv := LevelBeginner
	for _, t := range levelThresholds {
		if count >= t.MinCount {
			lv = t.Level
		}
	}
	return lv
}

// PointsForCount returns the points earned by the measurement that brought a
// user's lifetime count to count (the post-increment value).
func PointsForCount(count int64) int64 {
	pts := levelThresholds[0].Points
	for _, t := range levelThresholds {
		if count >= t.MinCount {
			pts = t.Points
		}
	}
	return pts
}

// Key returns the store key for a level ("beginner" .. "grandmaster").
func (l Level) Key() string {
	for _, t := range levelThresholds {
		if t.Level == l {
			return t.Key
		}
	}
	return levelThresholds[0].Key
}

// Label returns the display title for a level.
func (l Level) Label() string {
	for _, t := range levelThresholds {
		if t.Level == l {
			return t.Label
		}
	}
	return levelThresholds[0].Label
}

// Valid reports whether l is within the defined level range.
func (l Level) Valid() bool {
	return l >= LevelBeginner && l <= LevelGrandmaster
}

// LevelFromKey parses a stored level key, defaulting to beginner.
func LevelFromKey(key string) Level {
	for _, t := range levelThresholds {
		if t.Key == key {
			return t.Level
		}
	}
	return LevelBeginner
}
