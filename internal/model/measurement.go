package model

import (
	"fmt"
	"strings"
	"time"
)

// Measurement is one immutable noise observation. Created once by the
// ingestion path and never mutated afterwards.
type Measurement struct {
	ID              string        `firestore:"-" json:"id"`
	CafeID          string        `firestore:"cafeId" json:"cafeId"`
	UserID          string        `firestore:"userId" json:"userId"`
	DecibelLevel    float64       `firestore:"decibelLevel" json:"decibelLevel"`
	NoiseCategory   NoiseCategory `firestore:"noiseCategory" json:"noiseCategory"`
	DurationSeconds int           `firestore:"duration" json:"durationSeconds"`
	Timestamp       time.Time     `firestore:"timestamp" json:"timestamp"`
}

// ValidationError describes a malformed measurement payload. Events failing
// validation are dropped and logged, never retried.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid measurement: " + strings.Join(e.Problems, "; ")
}

// Validate checks the measurement invariants: ids present, decibel level in
// [0, 200], positive duration, category consistent with the decibel value.
func (m *Measurement) Validate() error {
	var problems []string

	if strings.TrimSpace(m.CafeID) == "" {
		problems = append(problems, "cafeId is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		problems = append(problems, "userId is required")
	}
	if m.DecibelLevel < 0 || m.DecibelLevel > 200 {
		problems = append(problems, fmt.Sprintf("decibelLevel %.1f outside [0, 200]", m.DecibelLevel))
	}
	if m.DurationSeconds <= 0 {
		problems = append(problems, "duration must be a positive number of seconds")
	}
	if !ValidCategory(string(m.NoiseCategory)) {
		problems = append(problems, fmt.Sprintf("unknown noiseCategory %q", m.NoiseCategory))
	} else if CategoryForLevel(m.DecibelLevel) != m.NoiseCategory {
		problems = append(problems, fmt.Sprintf("noiseCategory %q inconsistent with %.1f dB", m.NoiseCategory, m.DecibelLevel))
	}
	if m.Timestamp.IsZero() {
		problems = append(problems, "timestamp is required")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
