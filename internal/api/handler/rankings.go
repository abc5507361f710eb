package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cafeondo/cafeondo-server/internal/api/respond"
	"github.com/cafeondo/cafeondo-server/internal/model"
	"github.com/cafeondo/cafeondo-server/internal/store"
)

// GetRanking serves one leaderboard snapshot.
func (h *Handler) GetRanking(w http.ResponseWriter, r *http.Request) {
	board := chi.URLParam(r, "board")
	if !model.ValidBoard(board) {
		respond.WriteError(w, http.StatusNotFound, "UNKNOWN_BOARD", "Unknown ranking board")
		return
	}

	snapshot, err := h.store.Ranking(r.Context(), board)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respond.WriteError(w, http.StatusNotFound, "NOT_COMPUTED", "Ranking has not been computed yet")
			return
		}
		h.logger.Error("Ranking read failed", "board", board, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Could not read ranking")
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, snapshot)
}
