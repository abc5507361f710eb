// Package model defines the document types shared by the aggregation,
// recomputation, and notification layers, together with the noise category
// and user progression tier tables. All mutation logic lives in the
// consuming packages; this package is pure data and table lookups.
package model

// NoiseCategory classifies an average decibel level.
type NoiseCategory string

const (
	CategoryQuiet    NoiseCategory = "quiet"    // < 40 dB
	CategoryModerate NoiseCategory = "moderate" // 40–60 dB
	CategoryNoisy    NoiseCategory = "noisy"    // 60–75 dB
	CategoryLoud     NoiseCategory = "loud"     // 75+ dB
)

// CategoryForLevel maps a decibel value to its noise category.
func CategoryForLevel(db float64) NoiseCategory {
	switch {
	case db < 40:
		return CategoryQuiet
	case db < 60:
		return CategoryModerate
	case db < 75:
		return CategoryNoisy
	default:
		return CategoryLoud
	}
}

// ValidCategory reports whether s is a recognized noise category key.
func ValidCategory(s string) bool {
	switch NoiseCategory(s) {
	case CategoryQuiet, CategoryModerate, CategoryNoisy, CategoryLoud:
		return true
	}
	return false
}
