package model

import "time"

// Ranking board document ids. Each board is a single document that is fully
// replaced on every weekly recomputation — there is no incremental path.
const (
	BoardQuietCafes   = "quiet_cafes"
	BoardTopMeasurers = "top_measurers"
	BoardActiveCafes  = "active_cafes"
)

// RankingSize bounds every leaderboard.
const RankingSize = 20

// Boards lists all ranking document ids.
func Boards() []string {
	return []string{BoardQuietCafes, BoardTopMeasurers, BoardActiveCafes}
}

// ValidBoard reports whether id names a known ranking board.
func ValidBoard(id string) bool {
	for _, board := range Boards() {
		if board == id {
			return true
		}
	}
	return false
}

// CafeRankingInfo is the cafe payload of a ranking entry.
type CafeRankingInfo struct {
	CafeID             string        `firestore:"cafeId" json:"cafeId"`
	Name               string        `firestore:"name" json:"name"`
	Address            string        `firestore:"address" json:"address"`
	AverageNoiseLevel  float64       `firestore:"averageNoiseLevel" json:"averageNoiseLevel"`
	NoiseCategory      NoiseCategory `firestore:"noiseCategory" json:"noiseCategory"`
	WeeklyMeasurements int64         `firestore:"weeklyMeasurements" json:"weeklyMeasurements"`
	TotalMeasurements  int64         `firestore:"totalMeasurements" json:"totalMeasurements"`
}

// UserRankingInfo is the user payload of a ranking entry.
type UserRankingInfo struct {
	UserID             string `firestore:"userId" json:"userId"`
	DisplayName        string `firestore:"displayName" json:"displayName"`
	PhotoURL           string `firestore:"photoUrl" json:"photoUrl"`
	LevelKey           string `firestore:"level" json:"level"`
	WeeklyMeasurements int64  `firestore:"weeklyMeasurements" json:"weeklyMeasurements"`
	TotalMeasurements  int64  `firestore:"totalMeasurements" json:"totalMeasurements"`
}

// RankingEntry is one ranked row. It is a tagged union: exactly one of Cafe
// or User is set, and Rank is 1-based within the board.
type RankingEntry struct {
	Rank int              `firestore:"rank" json:"rank"`
	Cafe *CafeRankingInfo `firestore:"cafe,omitempty" json:"cafe,omitempty"`
	User *UserRankingInfo `firestore:"user,omitempty" json:"user,omitempty"`
}

// RankingPeriod is the closed-open week window a snapshot was computed over.
type RankingPeriod struct {
	Start time.Time `firestore:"start" json:"start"`
	End   time.Time `firestore:"end" json:"end"`
}

// RankingSnapshot is a fully-replaced top-N document for one board.
type RankingSnapshot struct {
	Items     []RankingEntry `firestore:"items" json:"items"`
	Period    RankingPeriod  `firestore:"period" json:"period"`
	UpdatedAt time.Time      `firestore:"updatedAt,serverTimestamp" json:"updatedAt"`
}
