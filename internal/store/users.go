package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/cafeondo/cafeondo-server/internal/model"
)

// User fetches one user document. Returns ErrNotFound if absent.
func (c *Client) User(ctx context.Context, userID string) (*model.User, error) {
	snap, err := c.fs.Collection(UsersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}

	var user model.User
	if err := snap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", userID, err)
	}
	user.ID = userID
	return &user, nil
}

// UpdateUser runs mutate against the user document inside an optimistic
// transaction. Same contract as UpdateCafe: mutate may run more than once.
func (c *Client) UpdateUser(ctx context.Context, userID string, mutate func(*model.User)) error {
	ref := c.fs.Collection(UsersCollection).Doc(userID)

	err := c.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}
			return err
		}

		var user model.User
		if err := snap.DataTo(&user); err != nil {
			return fmt.Errorf("decode user %s: %w", userID, err)
		}
		user.ID = userID

		mutate(&user)
		return tx.Set(ref, &user)
	})
	if err != nil {
		if err == ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("user transaction %s: %w", userID, err)
	}
	return nil
}

// UsersByID fetches user documents for ids, in input order, chunked to the
// in-query limit. Absent ids are skipped.
func (c *Client) UsersByID(ctx context.Context, ids []string) ([]model.User, error) {
	byID := make(map[string]model.User, len(ids))

	for _, chunk := range Chunk(ids, MaxInQuery) {
		it := c.fs.Collection(UsersCollection).
			Where(firestore.DocumentID, "in", c.docRefs(UsersCollection, chunk)).
			Documents(ctx)

		for {
			snap, err := it.Next()
			if isIteratorDone(err) {
				break
			}
			if err != nil {
				it.Stop()
				return nil, fmt.Errorf("users by id: %w", err)
			}
			var user model.User
			if err := snap.DataTo(&user); err != nil {
				it.Stop()
				return nil, fmt.Errorf("decode user %s: %w", snap.Ref.ID, err)
			}
			user.ID = snap.Ref.ID
			byID[user.ID] = user
		}
		it.Stop()
	}

	users := make([]model.User, 0, len(byID))
	for _, id := range ids {
		if user, ok := byID[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

// ClearToken removes the delivery endpoint token from a user document.
// Used when the transport reports the token unregistered or invalid.
func (c *Client) ClearToken(ctx context.Context, userID string) error {
	_, err := c.fs.Collection(UsersCollection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "fcmToken", Value: firestore.Delete},
	})
	if err != nil {
		return fmt.Errorf("clear token for %s: %w", userID, err)
	}
	return nil
}

// ClearPendingLevelUp removes the level-up marker from a user document.
func (c *Client) ClearPendingLevelUp(ctx context.Context, userID string) error {
	_, err := c.fs.Collection(UsersCollection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "pendingLevelUp", Value: firestore.Delete},
	})
	if err != nil {
		return fmt.Errorf("clear pending level-up for %s: %w", userID, err)
	}
	return nil
}

// UserIDByToken finds the user owning a delivery token. Returns ErrNotFound
// if no user stores it.
func (c *Client) UserIDByToken(ctx context.Context, token string) (string, error) {
	it := c.fs.Collection(UsersCollection).
		Where("fcmToken", "==", token).
		Limit(1).
		Documents(ctx)
	defer it.Stop()

	snap, err := it.Next()
	if isIteratorDone(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("user by token: %w", err)
	}
	return snap.Ref.ID, nil
}

// ReminderTargets returns users whose last measurement predates before, or
// who have never measured, and who hold a delivery token. Two queries are
// needed because users without a lastMeasurementAt field never match the
// first one; results are deduplicated by id.
func (c *Client) ReminderTargets(ctx context.Context, before time.Time) ([]model.User, error) {
	stale := c.fs.Collection(UsersCollection).
		Where("fcmToken", "!=", "").
		Where("lastMeasurementAt", "<", before)
	never := c.fs.Collection(UsersCollection).
		Where("fcmToken", "!=", "").
		Where("totalMeasurements", "==", 0)

	seen := make(map[string]bool)
	var targets []model.User

	for _, q := range []firestore.Query{stale, never} {
		it := q.Documents(ctx)
		for {
			snap, err := it.Next()
			if isIteratorDone(err) {
				break
			}
			if err != nil {
				it.Stop()
				return nil, fmt.Errorf("reminder targets: %w", err)
			}
			if seen[snap.Ref.ID] {
				continue
			}
			var user model.User
			if err := snap.DataTo(&user); err != nil {
				it.Stop()
				return nil, fmt.Errorf("decode user %s: %w", snap.Ref.ID, err)
			}
			user.ID = snap.Ref.ID
			seen[user.ID] = true
			targets = append(targets, user)
		}
		it.Stop()
	}
	return targets, nil
}

// UsersWithToken returns every user holding a delivery token.
func (c *Client) UsersWithToken(ctx context.Context) ([]model.User, error) {
	it := c.fs.Collection(UsersCollection).
		Where("fcmToken", "!=", "").
		Documents(ctx)
	defer it.Stop()

	var users []model.User
	for {
		snap, err := it.Next()
		if isIteratorDone(err) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("users with token: %w", err)
		}
		var user model.User
		if err := snap.DataTo(&user); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", snap.Ref.ID, err)
		}
		user.ID = snap.Ref.ID
		users = append(users, user)
	}
	return users, nil
}

// ResetWeeklyCounts sets weeklyMeasurements to the window-derived value in
// counts. Targets are every user currently carrying a non-zero counter
// (reset to zero unless the window says otherwise) plus every user keyed in
// counts, so a user whose stored counter missed increments still gets the
// derived value. Committed in atomic batches of at most MaxBatchWrites.
func (c *Client) ResetWeeklyCounts(ctx context.Context, counts map[string]int64) error {
	it := c.fs.Collection(UsersCollection).
		Where("weeklyMeasurements", ">", 0).
		Select().
		Documents(ctx)
	defer it.Stop()

	var ids []string
	for {
		snap, err := it.Next()
		if isIteratorDone(err) {
			break
		}
		if err != nil {
			return fmt.Errorf("weekly counter reset query: %w", err)
		}
		ids = append(ids, snap.Ref.ID)
	}

	for _, chunk := range Chunk(resetTargets(ids, counts), MaxBatchWrites) {
		batch := c.fs.Batch()
		for _, id := range chunk {
			ref := c.fs.Collection(UsersCollection).Doc(id)
			batch.Update(ref, []firestore.Update{
				{Path: "weeklyMeasurements", Value: counts[id]},
			})
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("commit weekly counter reset: %w", err)
		}
	}
	return nil
}

// resetTargets unions the users holding a stale non-zero counter with the
// users owed a fresh window count, deduplicated, queried ids first.
func resetTargets(withCounter []string, counts map[string]int64) []string {
	seen := make(map[string]bool, len(withCounter))
	ids := make([]string, 0, len(withCounter)+len(counts))
	for _, id := range withCounter {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for id := range counts {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	return ids
}
