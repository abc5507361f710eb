package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/cafeondo/cafeondo-server/internal/model"
)

// UpdateCafe runs mutate against the cafe document inside an optimistic
// transaction and writes the result back. Concurrent writers to the same
// document serialize through Firestore's conflict detection; mutate may run
// more than once and must be free of external side effects.
// Returns ErrNotFound if the cafe does not exist.
func (c *Client) UpdateCafe(ctx context.Context, cafeID string, mutate func(*model.Cafe)) error {
	ref := c.fs.Collection(CafesCollection).Doc(cafeID)

	err := c.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}
			return err
		}

		var cafe model.Cafe
		if err := snap.DataTo(&cafe); err != nil {
			return fmt.Errorf("decode cafe %s: %w", cafeID, err)
		}
		cafe.ID = cafeID

		mutate(&cafe)
		return tx.Set(ref, &cafe)
	})
	if err != nil {
		if err == ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("cafe transaction %s: %w", cafeID, err)
	}
	return nil
}

// CreateCafe writes a cafe document, failing if the id already exists.
func (c *Client) CreateCafe(ctx context.Context, cafe *model.Cafe) error {
	if _, err := c.fs.Collection(CafesCollection).Doc(cafe.ID).Create(ctx, cafe); err != nil {
		return fmt.Errorf("create cafe %s: %w", cafe.ID, err)
	}
	return nil
}

// CafeIDs returns the ids of every cafe document.
func (c *Client) CafeIDs(ctx context.Context) ([]string, error) {
	it := c.fs.Collection(CafesCollection).Select().Documents(ctx)
	defer it.Stop()

	var ids []string
	for {
		snap, err := it.Next()
		if isIteratorDone(err) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list cafe ids: %w", err)
		}
		ids = append(ids, snap.Ref.ID)
	}
	return ids, nil
}

// CafesByID fetches cafe documents for ids, in input order. Absent ids are
// silently skipped. The lookup is chunked to respect the in-query limit.
func (c *Client) CafesByID(ctx context.Context, ids []string) ([]model.Cafe, error) {
	byID := make(map[string]model.Cafe, len(ids))

	for _, chunk := range Chunk(ids, MaxInQuery) {
		it := c.fs.Collection(CafesCollection).
			Where(firestore.DocumentID, "in", c.docRefs(CafesCollection, chunk)).
			Documents(ctx)

		for {
			snap, err := it.Next()
			if isIteratorDone(err) {
				break
			}
			if err != nil {
				it.Stop()
				return nil, fmt.Errorf("cafes by id: %w", err)
			}
			var cafe model.Cafe
			if err := snap.DataTo(&cafe); err != nil {
				it.Stop()
				return nil, fmt.Errorf("decode cafe %s: %w", snap.Ref.ID, err)
			}
			cafe.ID = snap.Ref.ID
			byID[cafe.ID] = cafe
		}
		it.Stop()
	}

	cafes := make([]model.Cafe, 0, len(byID))
	for _, id := range ids {
		if cafe, ok := byID[id]; ok {
			cafes = append(cafes, cafe)
		}
	}
	return cafes, nil
}

// RankedCafes returns every cafe with at least one applied measurement.
func (c *Client) RankedCafes(ctx context.Context) ([]model.Cafe, error) {
	it := c.fs.Collection(CafesCollection).
		Where("totalMeasurements", ">", 0).
		Documents(ctx)
	defer it.Stop()

	var cafes []model.Cafe
	for {
		snap, err := it.Next()
		if isIteratorDone(err) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ranked cafes: %w", err)
		}
		var cafe model.Cafe
		if err := snap.DataTo(&cafe); err != nil {
			return nil, fmt.Errorf("decode cafe %s: %w", snap.Ref.ID, err)
		}
		cafe.ID = snap.Ref.ID
		cafes = append(cafes, cafe)
	}
	return cafes, nil
}

// SetHourlyNoise overwrites the hourlyNoise map of each listed cafe.
// Mutations are committed in atomic batches of at most MaxBatchWrites;
// an error aborts the remaining batches but already-committed ones stand.
func (c *Client) SetHourlyNoise(ctx context.Context, updates map[string]model.HourlyNoise) error {
	ids := make([]string, 0, len(updates))
	for id := range updates {
		ids = append(ids, id)
	}

	for _, chunk := range Chunk(ids, MaxBatchWrites) {
		batch := c.fs.Batch()
		for _, id := range chunk {
			ref := c.fs.Collection(CafesCollection).Doc(id)
			batch.Update(ref, []firestore.Update{
				{Path: "hourlyNoise", Value: updates[id]},
				{Path: "updatedAt", Value: firestore.ServerTimestamp},
			})
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("commit hourly noise batch: %w", err)
		}
	}
	return nil
}

func (c *Client) docRefs(collection string, ids []string) []*firestore.DocumentRef {
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = c.fs.Collection(collection).Doc(id)
	}
	return refs
}
