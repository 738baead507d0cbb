// Package vector provides the evidence store port: semantic insert, k-NN
// retrieval, and deduplication within named per-run collections.
package vector

import (
	"context"
	"errors"

	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

// ErrStore wraps backend failures. Callers drop the single affected item and
// continue; a store error is never fatal to a research run.
var ErrStore = errors.New("vector: store error")

// Store is the narrow evidence-store port. Insert must be safe for
// concurrent callers within one collection.
type Store interface {
	// Ensure creates the collection if absent. Idempotent.
	Ensure(ctx context.Context, collection string) error

	// Insert stores ev and reports whether it was accepted. A duplicate
	// (same ID, or same ContentHash as an earlier item) returns false, nil.
	Insert(ctx context.Context, collection string, ev types.Evidence) (bool, error)

	// Similar returns up to k stored items ordered by descending similarity
	// to text.
	Similar(ctx context.Context, collection, text string, k int) ([]types.Evidence, error)

	// Drop removes the collection and its contents.
	Drop(ctx context.Context, collection string) error
}

// CollectionFor derives the per-run collection name from the main query.
func CollectionFor(mainQuery string) string {
	return "research_" + types.Fingerprint(mainQuery)
}
