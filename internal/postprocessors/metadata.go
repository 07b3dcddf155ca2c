package postprocessors

import (
	"context"
	"strconv"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// MetadataProcessor copies document-level fields onto every chunk so that
// store drivers can render results without reading the source again.
// Keys already set on a chunk are kept.
type MetadataProcessor struct{}

// NewMetadataProcessor returns a MetadataProcessor.
func NewMetadataProcessor() *MetadataProcessor {
	return &MetadataProcessor{}
}

// Name returns the processor name.
func (m *MetadataProcessor) Name() string {
	return "metadata"
}

// Process annotates the chunks in place and returns them.
func (m *MetadataProcessor) Process(_ context.Context, doc domain.SourceDocument, chunks []domain.ChunkPayload) ([]domain.ChunkPayload, error) {
	total := strconv.Itoa(len(chunks))
	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]string, len(doc.Metadata)+4)
		}
		set := func(k, v string) {
			if v == "" {
				return
			}
			if _, ok := chunks[i].Metadata[k]; !ok {
				chunks[i].Metadata[k] = v
			}
		}
		for k, v := range doc.Metadata {
			set(k, v)
		}
		set("title", doc.Title)
		set("uri", doc.URI)
		set("chunk_count", total)
		if !doc.UpdatedAt.IsZero() {
			set("updated_at", doc.UpdatedAt.UTC().Format(time.RFC3339))
		}
	}
	return chunks, nil
}
