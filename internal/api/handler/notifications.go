package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cafeondo/cafeondo-server/internal/api/respond"
	"github.com/cafeondo/cafeondo-server/internal/notify"
)

type levelUpRequest struct {
	Level int `json:"level"`
}

// LevelUp is the callable path: the authenticated caller reports a reached
// level and receives a congratulation push. The caller sees only a
// structured rejection or `{delivered}` — store detail never leaks out.
func (h *Handler) LevelUp(w http.ResponseWriter, r *http.Request) {
	userID := CallerID(r.Context())

	var req levelUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed JSON body")
		return
	}

	delivered, err := h.notifier.NotifyLevelUp(r.Context(), userID, req.Level)
	if err != nil {
		if errors.Is(err, notify.ErrInvalidLevel) {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "Provide a level between 1 and 5")
			return
		}
		h.logger.Error("Level-up notification failed", "user_id", userID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Could not send notification")
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"delivered": delivered,
	})
}
