package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func TestAttributionService_SharedDocumentLifetime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	docs := NewAttributionService(h.store.DocumentStore())
	first := h.bind(t, nil)
	second := h.bind(t, &domain.Connector{Name: "other"})

	require.NoError(t, docs.UpsertAttribution(ctx, "doc-1", first))
	require.NoError(t, docs.UpsertAttribution(ctx, "doc-1", first))
	require.NoError(t, docs.UpsertAttribution(ctx, "doc-1", second))

	pairs, err := docs.ListAttributedPairs(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, pairs, 2)
	count, err := docs.CountForPair(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	deleted, err := docs.RemoveAttribution(ctx, "doc-1", first)
	require.NoError(t, err)
	assert.False(t, deleted)
	_, err = docs.Get(ctx, "doc-1")
	require.NoError(t, err)

	ids, err := docs.ListForPair(ctx, first)
	require.NoError(t, err)
	assert.Empty(t, ids)
	count, err = docs.CountForPair(ctx, first)
	require.NoError(t, err)
	assert.Zero(t, count)

	deleted, err = docs.RemoveAttribution(ctx, "doc-1", second)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = docs.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAttributionService_RejectsEmptyID(t *testing.T) {
	h := newHarness(t)
	docs := NewAttributionService(h.store.DocumentStore())
	key := h.bind(t, nil)

	assert.ErrorIs(t, docs.UpsertAttribution(context.Background(), " ", key), domain.ErrInvalidInput)
	_, err := docs.RemoveAttribution(context.Background(), "", key)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChunkService_OrphanChunk(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	chunks := NewChunkService(h.store.ChunkStore())

	// Chunks written before their document was attributed are refused.
	err := chunks.PutBatch(ctx, []domain.Chunk{
		{ID: "c1", StoreType: domain.StoreVector, DocumentID: "doc-2"},
		{ID: "c2", StoreType: domain.StoreVector, DocumentID: "doc-2"},
	})
	require.ErrorIs(t, err, domain.ErrOrphanChunk)
	assert.True(t, domain.IsIntegrity(err))

	err = chunks.Put(ctx, domain.Chunk{ID: "c1", StoreType: domain.StoreVector, DocumentID: "doc-2"})
	assert.ErrorIs(t, err, domain.ErrOrphanChunk)

	count, err := chunks.CountForDocument(ctx, "doc-2")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestChunkService_PerStoreOperations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	docs := NewAttributionService(h.store.DocumentStore())
	chunks := NewChunkService(h.store.ChunkStore())
	key := h.bind(t, nil)

	require.NoError(t, docs.UpsertAttribution(ctx, "doc-1", key))
	require.NoError(t, chunks.PutBatch(ctx, []domain.Chunk{
		{ID: "c1", StoreType: domain.StoreVector, DocumentID: "doc-1"},
		{ID: "c1", StoreType: domain.StoreKeyword, DocumentID: "doc-1"},
		{ID: "c2", StoreType: domain.StoreVector, DocumentID: "doc-1"},
	}))
	require.NoError(t, chunks.PutBatch(ctx, nil))

	types, err := chunks.StoreTypesForDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.StoreType{domain.StoreVector, domain.StoreKeyword}, types)

	vector, err := chunks.ListForDocument(ctx, "doc-1", domain.StoreVector)
	require.NoError(t, err)
	assert.Len(t, vector, 2)

	n, err := chunks.DeleteForDocumentAndStore(ctx, "doc-1", domain.StoreVector)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Chunk rows keep the document alive.
	deleted, err := docs.RemoveAttribution(ctx, "doc-1", key)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = chunks.DeleteForDocumentAndStore(ctx, "doc-1", "graph")
	assert.ErrorIs(t, err, domain.ErrUnknownStoreType)
	_, err = chunks.ListForDocument(ctx, "doc-1", "graph")
	assert.ErrorIs(t, err, domain.ErrUnknownStoreType)
}
