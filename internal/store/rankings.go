package store

import (
	"context"
	"fmt"

	"github.com/cafeondo/cafeondo-server/internal/model"
)

// Ranking fetches one leaderboard snapshot. Returns ErrNotFound before the
// first weekly recomputation has run.
func (c *Client) Ranking(ctx context.Context, board string) (*model.RankingSnapshot, error) {
	snap, err := c.fs.Collection(RankingsCollection).Doc(board).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ranking %s: %w", board, err)
	}

	var snapshot model.RankingSnapshot
	if err := snap.DataTo(&snapshot); err != nil {
		return nil, fmt.Errorf("decode ranking %s: %w", board, err)
	}
	return &snapshot, nil
}

// ReplaceRankings overwrites all given leaderboard documents in one atomic
// batch. Set, not merge: the previous snapshot contents are gone entirely.
func (c *Client) ReplaceRankings(ctx context.Context, snapshots map[string]*model.RankingSnapshot) error {
	batch := c.fs.Batch()
	for board, snapshot := range snapshots {
		batch.Set(c.fs.Collection(RankingsCollection).Doc(board), snapshot)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit ranking snapshots: %w", err)
	}
	return nil
}
