package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Ensure the registries implement their interfaces.
var (
	_ driving.AttributionService = (*AttributionService)(nil)
	_ driving.ChunkService       = (*ChunkService)(nil)
)

// AttributionService manages document identity and pair attribution.
type AttributionService struct {
	store driven.DocumentStore
}

// NewAttributionService creates a new attribution service.
func NewAttributionService(store driven.DocumentStore) *AttributionService {
	return &AttributionService{store: store}
}

// UpsertAttribution records that the pair produced the document.
func (s *AttributionService) UpsertAttribution(ctx context.Context, documentID string, key domain.PairKey) error {
	if err := domain.ValidateDocumentID(documentID); err != nil {
		return err
	}
	if err := s.store.UpsertAttribution(ctx, documentID, key); err != nil {
		return fmt.Errorf("attribute %s to %s: %w", documentID, key, err)
	}
	return nil
}

// RemoveAttribution removes the pair's attribution and reports whether the
// document itself was deleted.
func (s *AttributionService) RemoveAttribution(ctx context.Context, documentID string, key domain.PairKey) (bool, error) {
	if err := domain.ValidateDocumentID(documentID); err != nil {
		return false, err
	}
	return s.store.RemoveAttribution(ctx, documentID, key)
}

// ListAttributedPairs returns the pairs attributing a document.
func (s *AttributionService) ListAttributedPairs(ctx context.Context, documentID string) ([]domain.PairKey, error) {
	return s.store.ListAttributedPairs(ctx, documentID)
}

// Get retrieves a document.
func (s *AttributionService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.store.Get(ctx, documentID)
}

// ListForPair returns the documents attributed to a pair.
func (s *AttributionService) ListForPair(ctx context.Context, key domain.PairKey) ([]string, error) {
	return s.store.ListForPair(ctx, key)
}

// CountForPair counts the documents attributed to a pair.
func (s *AttributionService) CountForPair(ctx context.Context, key domain.PairKey) (int, error) {
	return s.store.CountForPair(ctx, key)
}

// ChunkService manages chunk bookkeeping rows.
type ChunkService struct {
	store driven.ChunkStore
}

// NewChunkService creates a new chunk service.
func NewChunkService(store driven.ChunkStore) *ChunkService {
	return &ChunkService{store: store}
}

// Put records one chunk.
func (s *ChunkService) Put(ctx context.Context, chunk domain.Chunk) error {
	return s.store.Put(ctx, chunk)
}

// PutBatch records chunks all-or-nothing.
func (s *ChunkService) PutBatch(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return s.store.PutBatch(ctx, chunks)
}

// DeleteForDocumentAndStore removes one document's rows for one store type.
func (s *ChunkService) DeleteForDocumentAndStore(ctx context.Context, documentID string, storeType domain.StoreType) (int, error) {
	if !storeType.Valid() {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownStoreType, storeType)
	}
	return s.store.DeleteForDocumentAndStore(ctx, documentID, storeType)
}

// CountForDocument counts a document's rows across store types.
func (s *ChunkService) CountForDocument(ctx context.Context, documentID string) (int, error) {
	return s.store.CountForDocument(ctx, documentID)
}

// ListForDocument returns a document's rows for one store type.
func (s *ChunkService) ListForDocument(ctx context.Context, documentID string, storeType domain.StoreType) ([]domain.Chunk, error) {
	if !storeType.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStoreType, storeType)
	}
	return s.store.ListForDocument(ctx, documentID, storeType)
}

// StoreTypesForDocument returns the store types holding rows for a document.
func (s *ChunkService) StoreTypesForDocument(ctx context.Context, documentID string) ([]domain.StoreType, error) {
	return s.store.StoreTypesForDocument(ctx, documentID)
}
