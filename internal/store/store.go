// Package store provides the Firestore-backed document client the engine
// runs against: point gets, transactional read-modify-write with automatic
// conflict retry, bounded in-queries, and bounded atomic batch writes.
//
// Consumers (aggregate, recompute, notify) declare their own narrow
// interfaces; *Client satisfies all of them.
package store

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Collection names — single source of truth.
const (
	CafesCollection        = "cafes"
	UsersCollection        = "users"
	MeasurementsCollection = "measurements"
	RankingsCollection     = "rankings"
)

// Store cardinality limits. In-queries accept at most 30 values; a write
// batch commits at most 500 mutations atomically.
const (
	MaxInQuery     = 30
	MaxBatchWrites = 500
)

// ErrNotFound is returned for point reads of absent documents.
var ErrNotFound = errors.New("document not found")

// Client wraps a Firestore client with application-specific operations.
type Client struct {
	fs *firestore.Client
}

// New connects to Firestore for the given project. credentialsFile may be
// empty, in which case application default credentials are used.
func New(ctx context.Context, projectID, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	fs, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Client{fs: fs}, nil
}

// NewWithClient wraps an existing Firestore client (tests, emulators).
func NewWithClient(fs *firestore.Client) *Client {
	return &Client{fs: fs}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.fs.Close()
}

// Healthy runs a trivial read to verify the store is reachable.
func (c *Client) Healthy(ctx context.Context) error {
	it := c.fs.Collection(CafesCollection).Limit(1).Documents(ctx)
	defer it.Stop()
	if _, err := it.Next(); err != nil && !isIteratorDone(err) {
		return fmt.Errorf("store health check: %w", err)
	}
	return nil
}

// IsTransient reports whether err is a store failure worth retrying: a
// transaction that could not commit, an unavailable backend, or a timeout.
func IsTransient(err error) bool {
	switch status.Code(err) {
	case codes.Aborted, codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	}
	return false
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isIteratorDone(err error) bool {
	return errors.Is(err, iterator.Done)
}

// Chunk splits items into groups of at most size elements, preserving order.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[:size])
	}
	return append(chunks, items)
}
