package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// ChunkStore persists chunk bookkeeping rows. Every operation is scoped to
// one store type; nothing is atomic across store types.
type ChunkStore interface {
	// Put upserts a chunk row.
	// Returns domain.ErrOrphanChunk if the document row does not exist.
	Put(ctx context.Context, chunk domain.Chunk) error

	// PutBatch upserts chunk rows in one transaction. If any chunk is an
	// orphan nothing is written.
	PutBatch(ctx context.Context, chunks []domain.Chunk) error

	// Delete removes the named chunk rows of one store type. A document left
	// with no attributions and no chunk rows is deleted in the same
	// transaction. Returns the number of chunk rows removed.
	Delete(ctx context.Context, storeType domain.StoreType, chunkIDs []string) (int, error)

	// DeleteForDocumentAndStore removes a document's chunk rows for one store
	// type, pruning the document the same way Delete does.
	// Returns the number of chunk rows removed.
	DeleteForDocumentAndStore(ctx context.Context, documentID string, storeType domain.StoreType) (int, error)

	// CountForDocument counts a document's chunk rows across all store types.
	CountForDocument(ctx context.Context, documentID string) (int, error)

	// ListForDocument returns a document's chunk rows for one store type, sorted by ID.
	ListForDocument(ctx context.Context, documentID string, storeType domain.StoreType) ([]domain.Chunk, error)

	// StoreTypesForDocument returns the store types a document has rows in.
	StoreTypesForDocument(ctx context.Context, documentID string) ([]domain.StoreType, error)
}
