package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// AttributionService manages document identity and pair attribution.
type AttributionService interface {
	// UpsertAttribution records that the pair produced the document. Idempotent.
	UpsertAttribution(ctx context.Context, documentID string, key domain.PairKey) error

	// RemoveAttribution removes the pair's attribution and deletes the
	// document when nothing else refers to it. Returns whether it was deleted.
	RemoveAttribution(ctx context.Context, documentID string, key domain.PairKey) (bool, error)

	// ListAttributedPairs returns the pairs attributing a document.
	ListAttributedPairs(ctx context.Context, documentID string) ([]domain.PairKey, error)

	// Get retrieves a document.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// ListForPair returns the documents attributed to a pair.
	ListForPair(ctx context.Context, key domain.PairKey) ([]string, error)

	// CountForPair returns how many documents the pair attributes.
	CountForPair(ctx context.Context, key domain.PairKey) (int, error)
}

// ChunkService manages chunk bookkeeping rows.
type ChunkService interface {
	// Put records one chunk. Returns domain.ErrOrphanChunk if the document is missing.
	Put(ctx context.Context, chunk domain.Chunk) error

	// PutBatch records chunks all-or-nothing.
	PutBatch(ctx context.Context, chunks []domain.Chunk) error

	// DeleteForDocumentAndStore removes one document's rows for one store type.
	DeleteForDocumentAndStore(ctx context.Context, documentID string, storeType domain.StoreType) (int, error)

	// CountForDocument counts a document's rows across store types.
	CountForDocument(ctx context.Context, documentID string) (int, error)

	// ListForDocument returns a document's rows for one store type.
	ListForDocument(ctx context.Context, documentID string, storeType domain.StoreType) ([]domain.Chunk, error)

	// StoreTypesForDocument returns the store types holding rows for a document.
	StoreTypesForDocument(ctx context.Context, documentID string) ([]domain.StoreType, error)
}
