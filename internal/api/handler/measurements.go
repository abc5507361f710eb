package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/cafeondo/cafeondo-server/internal/api/respond"
	"github.com/cafeondo/cafeondo-server/internal/model"
	"github.com/cafeondo/cafeondo-server/internal/store"
)

// In-request retry budget for folding a durable measurement into the
// aggregates. The event must not be re-posted, so transient transaction
// failures are retried here rather than surfaced to the client.
const applyRetries = 2

// createMeasurementRequest is the ingestion payload. The user id always
// comes from the verified caller, never the body.
type createMeasurementRequest struct {
	CafeID          string     `json:"cafeId"`
	DecibelLevel    float64    `json:"decibelLevel"`
	NoiseCategory   string     `json:"noiseCategory"`
	DurationSeconds int        `json:"durationSeconds"`
	Timestamp       *time.Time `json:"timestamp"`
}

// CreateMeasurement persists one immutable measurement event and folds it
// into the cafe and user aggregates.
func (h *Handler) CreateMeasurement(w http.ResponseWriter, r *http.Request) {
	var req createMeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed JSON body")
		return
	}

	m := &model.Measurement{
		ID:              uuid.NewString(),
		CafeID:          req.CafeID,
		UserID:          CallerID(r.Context()),
		DecibelLevel:    req.DecibelLevel,
		NoiseCategory:   model.NoiseCategory(req.NoiseCategory),
		DurationSeconds: req.DurationSeconds,
		Timestamp:       time.Now().UTC(),
	}
	if req.Timestamp != nil {
		m.Timestamp = req.Timestamp.UTC()
	}
	if req.NoiseCategory == "" {
		m.NoiseCategory = model.CategoryForLevel(req.DecibelLevel)
	}

	if err := m.Validate(); err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_MEASUREMENT",
				"Measurement failed validation", verr.Error())
			return
		}
		respond.WriteError(w, http.StatusBadRequest, "INVALID_MEASUREMENT", "Measurement failed validation")
		return
	}

	if err := h.store.CreateMeasurement(r.Context(), m); err != nil {
		h.logger.Error("Measurement create failed", "measurement_id", m.ID, "error", err)
		if store.IsTransient(err) {
			respond.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Try again shortly")
			return
		}
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Could not store measurement")
		return
	}

	// The measurement is durable at this point; a re-post would mint a new
	// id and double-count the event. Transient fold failures retry in-place
	// instead, and only after the budget is spent is the event reported
	// unapplied. Hourly buckets still self-heal on the next window rebuild.
	applied := true
	if err := h.applyWithRetry(r.Context(), m); err != nil {
		h.logger.Error("Aggregation failed for stored measurement",
			"measurement_id", m.ID, "error", err)
		applied = false
	}

	respond.WriteJSONObject(w, http.StatusCreated, map[string]interface{}{
		"id":      m.ID,
		"applied": applied,
	})
}

// applyWithRetry folds the measurement into the aggregates, retrying
// transient store failures with exponential backoff. Anything else fails
// immediately.
func (h *Handler) applyWithRetry(ctx context.Context, m *model.Measurement) error {
	operation := func() error {
		err := h.agg.Apply(ctx, m)
		if err == nil {
			return nil
		}
		if store.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	bo := backoff.WithContext(backoff.WithMaxRetries(policy, applyRetries), ctx)
	return backoff.Retry(operation, bo)
}
