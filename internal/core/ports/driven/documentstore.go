package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// DocumentStore persists document identity and pair attribution.
type DocumentStore interface {
	// UpsertAttribution ensures the document row and the attribution row exist.
	// Both inserts are insert-or-ignore, so repeated calls are no-ops.
	// Returns domain.ErrDocumentPurging if the document exists but no pair
	// attributes it, meaning its chunks are still awaiting deletion.
	UpsertAttribution(ctx context.Context, documentID string, key domain.PairKey) error

	// RemoveAttribution deletes the attribution row if present, then deletes
	// the document iff no attribution rows and no chunk rows remain.
	// Returns whether the document row was deleted. Atomic.
	RemoveAttribution(ctx context.Context, documentID string, key domain.PairKey) (bool, error)

	// Detach is RemoveAttribution that also reports, from the same
	// transaction, how many pairs still attribute the document.
	Detach(ctx context.Context, documentID string, key domain.PairKey) (domain.Detachment, error)

	// ListUnattributed returns the IDs of documents no pair attributes,
	// sorted. Each still has chunk rows whose physical chunks need deleting.
	ListUnattributed(ctx context.Context) ([]string, error)

	// Prune deletes the document if it has no attributions and no chunks.
	// Returns whether it was deleted.
	Prune(ctx context.Context, documentID string) (bool, error)

	// ListAttributedPairs returns every pair that attributes the document.
	ListAttributedPairs(ctx context.Context, documentID string) ([]domain.PairKey, error)

	// Get retrieves a document.
	// Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// ListForPair returns the IDs of documents the pair attributes, sorted.
	ListForPair(ctx context.Context, key domain.PairKey) ([]string, error)

	// CountForPair returns how many documents the pair attributes.
	CountForPair(ctx context.Context, key domain.PairKey) (int, error)
}
