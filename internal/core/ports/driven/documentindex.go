package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// DocumentIndex is a physical store driver. One driver serves one store type.
type DocumentIndex interface {
	// StoreType returns the store type this driver writes to.
	StoreType() domain.StoreType

	// Write stores or overwrites one chunk.
	Write(ctx context.Context, chunk domain.ChunkPayload) error

	// Delete removes one chunk. Deleting a missing chunk is not an error.
	Delete(ctx context.Context, chunkID string) error
}
