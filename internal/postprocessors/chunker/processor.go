// Package chunker provides a fixed-size text chunking processor.
package chunker

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 512

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 64

// Namespace seeds the name-based chunk IDs. Changing it orphans every
// chunk already written to a store.
var Namespace = uuid.MustParse("6f1c2a7e-3b54-4d8e-9a0f-5c2b8e71d4a3")

// ChunkID returns the deterministic ID of the chunk at position in a document.
func ChunkID(documentID string, position int) string {
	return uuid.NewSHA1(Namespace, []byte(documentID+"\x00"+strconv.Itoa(position))).String()
}

// Processor splits document content into fixed-size chunks.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Overlap must leave room for progress
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks. Input chunks are
// ignored; this processor creates new chunks from document content.
// Sizes count runes, so multi-byte text is never split mid-character.
func (p *Processor) Process(ctx context.Context, doc domain.SourceDocument, _ []domain.ChunkPayload) ([]domain.ChunkPayload, error) {
	if doc.Content == "" {
		return nil, nil
	}

	runes := []rune(doc.Content)
	step := p.chunkSize - p.overlap
	chunks := make([]domain.ChunkPayload, 0, len(runes)/step+1)

	for start, position := 0, 0; start < len(runes); start, position = start+step, position+1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + p.chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, domain.ChunkPayload{
			ID:         ChunkID(doc.ID, position),
			DocumentID: doc.ID,
			Position:   position,
			Content:    string(runes[start:end]),
			Metadata:   make(map[string]string),
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}
