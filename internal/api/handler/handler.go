// Package handler provides HTTP handlers for the engine's thin surface:
// measurement ingestion, the level-up callable, ranking reads, and health.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cafeondo/cafeondo-server/internal/api/respond"
	"github.com/cafeondo/cafeondo-server/internal/model"
)

// Store is the document-store slice the handlers need.
type Store interface {
	CreateMeasurement(ctx context.Context, m *model.Measurement) error
	Ranking(ctx context.Context, board string) (*model.RankingSnapshot, error)
	Healthy(ctx context.Context) error
}

// Aggregator folds a created measurement into the aggregate documents.
type Aggregator interface {
	Apply(ctx context.Context, m *model.Measurement) error
}

// Notifier serves the level-up callable.
type Notifier interface {
	NotifyLevelUp(ctx context.Context, userID string, level int) (bool, error)
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store    Store
	agg      Aggregator
	notifier Notifier
	logger   *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(store Store, agg Aggregator, notifier Notifier, logger *slog.Logger) *Handler {
	return &Handler{store: store, agg: agg, notifier: notifier, logger: logger}
}

// --------------------------------------------------------------------------
// Caller identity
// --------------------------------------------------------------------------

type callerKey struct{}

// WithCaller stores a verified user id on the context.
func WithCaller(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerKey{}, userID)
}

// CallerID returns the verified user id, or "" for unauthenticated requests.
func CallerID(ctx context.Context) string {
	id, _ := ctx.Value(callerKey{}).(string)
	return id
}

// --------------------------------------------------------------------------
// Meta endpoints
// --------------------------------------------------------------------------

// Root serves API info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "CafeOndo Engine",
		"version": "1.0.0",
		"status":  "running",
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckStore verifies document store connectivity.
func (h *Handler) HealthCheckStore(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Healthy(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"store":     "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"store":     "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
