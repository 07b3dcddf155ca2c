package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.ChunkStore = (*chunkStore)(nil)

type chunkStore struct {
	store *Store
}

func (c *chunkStore) Put(ctx context.Context, chunk domain.Chunk) error {
	return c.PutBatch(ctx, []domain.Chunk{chunk})
}

func (c *chunkStore) PutBatch(_ context.Context, chunks []domain.Chunk) error {
	for _, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return err
		}
	}
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		if _, ok := s.documents[chunk.DocumentID]; !ok {
			return fmt.Errorf("chunk %s: %w", chunk.ID, domain.ErrOrphanChunk)
		}
	}
	for _, chunk := range chunks {
		s.chunks[chunkKey{id: chunk.ID, storeType: chunk.StoreType}] = chunk
	}
	return nil
}

func (c *chunkStore) Delete(_ context.Context, storeType domain.StoreType, chunkIDs []string) (int, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	touched := make(map[string]bool)
	for _, id := range chunkIDs {
		key := chunkKey{id: id, storeType: storeType}
		if chunk, ok := s.chunks[key]; ok {
			delete(s.chunks, key)
			touched[chunk.DocumentID] = true
			removed++
		}
	}
	for documentID := range touched {
		s.pruneDocument(documentID)
	}
	return removed, nil
}

func (c *chunkStore) DeleteForDocumentAndStore(_ context.Context, documentID string, storeType domain.StoreType) (int, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, chunk := range s.chunks {
		if chunk.DocumentID == documentID && key.storeType == storeType {
			delete(s.chunks, key)
			removed++
		}
	}
	if removed > 0 {
		s.pruneDocument(documentID)
	}
	return removed, nil
}

func (c *chunkStore) CountForDocument(_ context.Context, documentID string) (int, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, chunk := range s.chunks {
		if chunk.DocumentID == documentID {
			count++
		}
	}
	return count, nil
}

func (c *chunkStore) ListForDocument(_ context.Context, documentID string, storeType domain.StoreType) ([]domain.Chunk, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:prealloc // size unknown until scanned
	var out []domain.Chunk
	for _, chunk := range s.chunks {
		if chunk.DocumentID == documentID && chunk.StoreType == storeType {
			out = append(out, chunk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *chunkStore) StoreTypesForDocument(_ context.Context, documentID string) ([]domain.StoreType, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[domain.StoreType]bool)
	for _, chunk := range s.chunks {
		if chunk.DocumentID == documentID {
			seen[chunk.StoreType] = true
		}
	}
	out := make([]domain.StoreType, 0, len(seen))
	for st := range seen {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
