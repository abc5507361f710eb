package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cafeondo/cafeondo-server/internal/model"
)

// ErrInvalidLevel rejects a level-up request outside [1, 5].
var ErrInvalidLevel = errors.New("level must be between 1 and 5")

// NotifyLevelUp sends the level-up congratulation to the user who reached
// the given level, then clears the pendingLevelUp marker the aggregator set.
// This is the sole consumer of that marker. Marker cleanup is best-effort.
func (d *Dispatcher) NotifyLevelUp(ctx context.Context, userID string, level int) (bool, error) {
	lv := model.Level(level)
	if !lv.Valid() {
		return false, ErrInvalidLevel
	}

	body := fmt.Sprintf("Congratulations! You reached %s (level %d)! 🎉", lv.Label(), level)
	delivered := d.SendToUser(ctx, userID, levelUpTitle, body, map[string]string{
		"type":     "level_up",
		"level":    strconv.Itoa(level),
		"levelKey": lv.Key(),
	})

	if err := d.users.ClearPendingLevelUp(ctx, userID); err != nil {
		d.logger.Warn("Pending level-up cleanup failed", "user_id", userID, "error", err)
	}
	return delivered, nil
}
