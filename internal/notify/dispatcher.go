package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cafeondo/cafeondo-server/internal/model"
	"github.com/cafeondo/cafeondo-server/internal/store"
)

// UserStore is the slice of the document store the dispatcher needs.
type UserStore interface {
	User(ctx context.Context, userID string) (*model.User, error)
	ClearToken(ctx context.Context, userID string) error
	ClearPendingLevelUp(ctx context.Context, userID string) error
	UserIDByToken(ctx context.Context, token string) (string, error)
	ReminderTargets(ctx context.Context, before time.Time) ([]model.User, error)
	UsersWithToken(ctx context.Context) ([]model.User, error)
}

// Dispatcher resolves delivery endpoints from user documents and sends
// through the transport.
type Dispatcher struct {
	users     UserStore
	transport Transport
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Dispatcher.
func New(users UserStore, transport Transport, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{users: users, transport: transport, logger: logger, now: time.Now}
}

// SendToUser delivers one push to a user, reporting whether delivery
// happened. A missing user, absent token, or disabled notifications is an
// intentional skip, not an error. A dead endpoint clears the stored token
// best-effort. No failure is ever raised to the caller.
func (d *Dispatcher) SendToUser(ctx context.Context, userID, title, body string, data map[string]string) bool {
	user, err := d.users.User(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.logger.Warn("Notification target missing", "user_id", userID)
		} else {
			d.logger.Warn("Notification target lookup failed", "user_id", userID, "error", err)
		}
		return false
	}

	if user.FCMToken == "" || !user.WantsNotifications() {
		return false
	}

	if err := d.transport.Send(ctx, user.FCMToken, title, body, d.payload(data)); err != nil {
		if deadEndpoint(err) {
			d.logger.Warn("Dead endpoint token, clearing", "user_id", userID)
			if clearErr := d.users.ClearToken(ctx, userID); clearErr != nil {
				d.logger.Warn("Token cleanup failed", "user_id", userID, "error", clearErr)
			}
		} else {
			d.logger.Warn("Push delivery failed", "user_id", userID, "error", err)
		}
		return false
	}
	return true
}

// SendToMany delivers one push to each user, multicasting in chunks bounded
// by the transport limit. Success and failure counts are aggregated across
// chunks; a failing chunk never aborts the rest. Tokens reported dead are
// cleared from their owning users via reverse lookup.
func (d *Dispatcher) SendToMany(ctx context.Context, userIDs []string, title, body string, data map[string]string) Result {
	var tokens []string
	for _, id := range userIDs {
		user, err := d.users.User(ctx, id)
		if err != nil {
			d.logger.Warn("Multicast target lookup failed", "user_id", id, "error", err)
			continue
		}
		if user.FCMToken == "" || !user.WantsNotifications() {
			continue
		}
		tokens = append(tokens, user.FCMToken)
	}
	return d.sendToTokens(ctx, tokens, title, body, data)
}

func (d *Dispatcher) sendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) Result {
	var total Result
	payload := d.payload(data)

	for _, chunk := range store.Chunk(tokens, maxMulticastTokens) {
		results, err := d.transport.SendMulticast(ctx, chunk, title, body, payload)
		if err != nil {
			d.logger.Warn("Multicast chunk failed", "tokens", len(chunk), "error", err)
			total.FailureCount += len(chunk)
			continue
		}

		for _, r := range results {
			if r.Err == nil {
				total.SuccessCount++
				continue
			}
			total.FailureCount++
			if deadEndpoint(r.Err) {
				d.clearTokenOwner(ctx, r.Token)
			}
		}
	}
	return total
}

// clearTokenOwner finds the user storing a dead token and clears it.
// Every step is best-effort; cleanup failures are swallowed.
func (d *Dispatcher) clearTokenOwner(ctx context.Context, token string) {
	userID, err := d.users.UserIDByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			d.logger.Warn("Dead token owner lookup failed", "error", err)
		}
		return
	}
	if err := d.users.ClearToken(ctx, userID); err != nil {
		d.logger.Warn("Token cleanup failed", "user_id", userID, "error", err)
		return
	}
	d.logger.Info("Cleared dead endpoint token", "user_id", userID)
}

// payload copies the attribute bag and stamps the send time. All values are
// strings already by construction.
func (d *Dispatcher) payload(data map[string]string) map[string]string {
	out := make(map[string]string, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out[defaultNowKey] = d.now().UTC().Format(time.RFC3339)
	return out
}
