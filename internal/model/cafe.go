package model

import (
	"strconv"
	"time"
)

// RecentMeasurementsKept bounds the newest-first summary list on a cafe.
const RecentMeasurementsKept = 5

// Coordinates is a cafe's geographic position.
type Coordinates struct {
	Latitude  float64 `firestore:"latitude" json:"latitude"`
	Longitude float64 `firestore:"longitude" json:"longitude"`
}

// RecentMeasurement is the summary of one measurement kept on the cafe
// document, newest first, at most RecentMeasurementsKept entries.
type RecentMeasurement struct {
	MeasurementID string        `firestore:"measurementId" json:"measurementId"`
	DecibelLevel  float64       `firestore:"decibelLevel" json:"decibelLevel"`
	NoiseCategory NoiseCategory `firestore:"noiseCategory" json:"noiseCategory"`
	Timestamp     time.Time     `firestore:"timestamp" json:"timestamp"`
}

// HourlyStat is the running mean and count for one hour-of-day slot.
type HourlyStat struct {
	Avg   float64 `firestore:"avg" json:"avg"`
	Count int64   `firestore:"count" json:"count"`
}

// HourlyNoise maps an hour-of-day key ("0".."23") to its stat. Hours with
// zero observations are absent, not zeroed.
type HourlyNoise map[string]HourlyStat

// HourKey converts an hour-of-day to its map key.
func HourKey(hour int) string {
	return strconv.Itoa(hour)
}

// Cafe is the running-statistics document for one venue.
//
// Field ownership: the incremental aggregator is the sole per-event writer
// of AverageNoiseLevel, NoiseCategory, TotalMeasurements, RecentMeasurements
// and the touched HourlyNoise slot; the recomputation engine periodically
// overwrites HourlyNoise wholesale from the trailing window.
type Cafe struct {
	ID                 string              `firestore:"-" json:"id"`
	Name               string              `firestore:"name" json:"name"`
	Address            string              `firestore:"address" json:"address"`
	Coordinates        Coordinates         `firestore:"coordinates" json:"coordinates"`
	AverageNoiseLevel  float64             `firestore:"averageNoiseLevel" json:"averageNoiseLevel"`
	NoiseCategory      NoiseCategory       `firestore:"noiseCategory" json:"noiseCategory"`
	TotalMeasurements  int64               `firestore:"totalMeasurements" json:"totalMeasurements"`
	RecentMeasurements []RecentMeasurement `firestore:"recentMeasurements" json:"recentMeasurements"`
	HourlyNoise        HourlyNoise         `firestore:"hourlyNoise" json:"hourlyNoise"`
	Tags               []string            `firestore:"tags" json:"tags"`
	Rating             float64             `firestore:"rating" json:"rating"`
	UpdatedAt          time.Time           `firestore:"updatedAt,serverTimestamp" json:"updatedAt"`
}
