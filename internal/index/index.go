// Package index defines the vector-search abstraction used to find merchants
// whose stored messages are semantically close to a query embedding.
// Concrete backends (in-process flat scan, Qdrant, Postgres/pgvector) satisfy
// the Index interface so the matching layer never depends on a specific one.
package index

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by backends whose remote store cannot be
// reached. Callers treat it as a signal to degrade rather than fail hard.
var ErrUnavailable = errors.New("index: backend unavailable")

// Index stores merchant embeddings keyed by merchant id and answers
// nearest-neighbour queries. Implementations must be safe to call from
// multiple goroutines.
type Index interface {
	// Upsert stores or replaces the embedding for the given merchant id.
	Upsert(ctx context.Context, id string, vector []float32) error

	// Search returns the ids of the k merchants whose embeddings are
	// closest to the query, nearest first. When exclude is non-empty the
	// merchant with that id is never returned; this keeps a requester out
	// of its own results. Fewer than k ids are returned when the index
	// holds fewer entries.
	Search(ctx context.Context, query []float32, k int, exclude string) ([]string, error)

	// Close releases any resources held by the backend.
	Close() error
}
