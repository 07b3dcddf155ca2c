package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// ChunkPipeline splits a source document into chunk payloads.
// Chunk IDs must be deterministic in (document ID, position) so that
// re-indexing a document overwrites its previous chunks.
type ChunkPipeline interface {
	Process(ctx context.Context, doc domain.SourceDocument) ([]domain.ChunkPayload, error)
}
