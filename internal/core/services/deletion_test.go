package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors/chunker"
)

func TestDeletionRunner_Run_PurgesSoleDocuments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)
	h.driver.setDocs(doc("doc-1", "0123456789abcdef"), doc("doc-2", "short"))
	_, err := h.indexer.Run(ctx, key)
	require.NoError(t, err)

	res, err := h.deleter.Run(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, res.Attempt.Status)
	assert.Equal(t, 2, res.Attempt.NumDocsDeleted)
	assert.Equal(t, 2, res.DocsPurged)
	assert.Zero(t, res.DocsDetached)
	assert.Equal(t, 6, res.ChunksDeleted)
	assert.Empty(t, res.FailedDocs)

	assert.Zero(t, h.vector.Len())
	assert.Zero(t, h.keyword.Len())
	for _, id := range []string{"doc-1", "doc-2"} {
		_, err := h.store.DocumentStore().Get(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound, id)
	}

	// Deletion leaves the pair's index status alone.
	pair, err := h.pairs.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, *pair.LastAttemptStatus)

	require.NoError(t, h.pairs.Unbind(ctx, key))
}

func TestDeletionRunner_Run_DetachesSharedDocuments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.bind(t, nil)
	second := h.bindSecond(t, first.ConnectorID)
	h.driver.setDocs(doc("doc-1", "shared content"))

	_, err := h.indexer.Run(ctx, first)
	require.NoError(t, err)
	_, err = h.indexer.Run(ctx, second)
	require.NoError(t, err)
	chunks := h.vector.Len()

	res, err := h.deleter.Run(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DocsDetached)
	assert.Zero(t, res.DocsPurged)
	assert.Zero(t, res.ChunksDeleted)
	assert.Equal(t, 1, res.Attempt.NumDocsDeleted)
	assert.Equal(t, chunks, h.vector.Len())

	pairs, err := h.store.DocumentStore().ListAttributedPairs(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.PairKey{second}, pairs)

	res, err = h.deleter.Run(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DocsPurged)
	_, err = h.store.DocumentStore().Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeletionRunner_Run_FailureLeavesDocumentForNextRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)
	h.driver.setDocs(doc("doc-1", "0123456789abcdef"), doc("doc-2", "short"))
	_, err := h.indexer.Run(ctx, key)
	require.NoError(t, err)

	stuck := chunker.ChunkID("doc-1", 1)
	h.keyword.FailDeletes(stuck)

	res, err := h.deleter.Run(ctx, key)
	require.Error(t, err)
	assert.Equal(t, domain.StatusFailed, res.Attempt.Status)
	assert.Contains(t, res.Attempt.ErrorMsg, stuck)
	assert.Equal(t, []string{"doc-1"}, res.FailedDocs)
	assert.Equal(t, 1, res.DocsPurged)
	assert.Equal(t, 1, res.Attempt.NumDocsDeleted)

	// Only the chunk whose physical delete failed keeps its row.
	rows, err := h.store.ChunkStore().ListForDocument(ctx, "doc-1", domain.StoreKeyword)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stuck, rows[0].ID)
	count, err := h.store.ChunkStore().CountForDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	docs := h.store.DocumentStore()
	pairs, err := docs.ListAttributedPairs(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, pairs)
	leftovers, err := docs.ListUnattributed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, leftovers)
	assert.ErrorIs(t, docs.UpsertAttribution(ctx, "doc-1", key), domain.ErrDocumentPurging)

	_, err = h.attempts.Holder(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	h.keyword.Heal()
	res, err = h.deleter.Run(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DocsPurged)
	assert.Equal(t, 1, res.ChunksDeleted)
	_, err = docs.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, h.keyword.Len())

	leftovers, err = docs.ListUnattributed(ctx)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDeletionRunner_Run_PurgesLeftoversOfOtherPairs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.bind(t, nil)
	h.driver.setDocs(doc("doc-1", "0123456789abcdef"))
	_, err := h.indexer.Run(ctx, first)
	require.NoError(t, err)

	h.vector.FailDeletes(chunker.ChunkID("doc-1", 0))
	_, err = h.deleter.Run(ctx, first)
	require.Error(t, err)
	h.vector.Heal()

	second := h.bindSecond(t, first.ConnectorID)
	res, err := h.deleter.Run(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DocsPurged)
	assert.Equal(t, 1, res.ChunksDeleted)
	assert.Zero(t, res.DocsDetached)
	assert.Zero(t, res.Attempt.NumDocsDeleted, "leftovers are not this pair's documents")

	_, err = h.store.DocumentStore().Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, h.vector.Len())
}

func TestDeletionRunner_Run_MissingDriverKeepsDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)
	h.driver.setDocs(doc("doc-1", "a"))
	_, err := h.indexer.Run(ctx, key)
	require.NoError(t, err)

	deleter := NewDeletionRunner(DeletionDeps{
		Attempts:  h.store.AttemptStore(),
		Documents: h.store.DocumentStore(),
		Chunks:    h.store.ChunkStore(),
		Indexes:   []driven.DocumentIndex{h.vector},
		Limiter:   rate.NewLimiter(rate.Inf, 1),
	})
	res, err := deleter.Run(ctx, key)
	require.ErrorIs(t, err, domain.ErrUnknownStoreType)
	assert.Equal(t, []string{"doc-1"}, res.FailedDocs)

	types, err := h.store.ChunkStore().StoreTypesForDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.StoreType{domain.StoreKeyword}, types)
}

func TestDeletionRunner_Run_Conflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)

	held, err := h.attempts.Begin(ctx, domain.KindIndex, key)
	require.NoError(t, err)

	res, err := h.deleter.Run(ctx, key)
	assert.ErrorIs(t, err, domain.ErrConcurrentAttemptExists)
	assert.Nil(t, res)

	_, err = h.attempts.Succeed(ctx, domain.KindIndex, held.ID, 0)
	require.NoError(t, err)

	res, err = h.deleter.Run(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, res.Attempt.NumDocsDeleted)

	_, err = h.deleter.Run(ctx, domain.PairKey{ConnectorID: 42, CredentialID: 42})
	assert.ErrorIs(t, err, domain.ErrNotBound)
}

// gatedDocuments runs hooks around Detach so tests can interleave runners.
type gatedDocuments struct {
	driven.DocumentStore
	beforeDetach func()
	afterDetach  func()
}

func (g *gatedDocuments) Detach(ctx context.Context, documentID string, key domain.PairKey) (domain.Detachment, error) {
	if g.beforeDetach != nil {
		g.beforeDetach()
	}
	detached, err := g.DocumentStore.Detach(ctx, documentID, key)
	if g.afterDetach != nil {
		g.afterDetach()
	}
	return detached, err
}

func (h *harness) gatedDeleter(docs *gatedDocuments) *DeletionRunner {
	return NewDeletionRunner(DeletionDeps{
		Attempts:  h.store.AttemptStore(),
		Documents: docs,
		Chunks:    h.store.ChunkStore(),
		Indexes:   []driven.DocumentIndex{h.vector, h.keyword},
	})
}

func TestDeletionRunner_Run_ConcurrentPairsSharingDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.bind(t, nil)
	second := h.bindSecond(t, first.ConnectorID)
	h.driver.setDocs(doc("doc-1", "shared content"))
	_, err := h.indexer.Run(ctx, first)
	require.NoError(t, err)
	_, err = h.indexer.Run(ctx, second)
	require.NoError(t, err)
	rows, err := h.store.ChunkStore().CountForDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Positive(t, rows)

	// Both runners reach Detach before either removes its attribution.
	var arrived sync.WaitGroup
	arrived.Add(2)
	deleter := h.gatedDeleter(&gatedDocuments{
		DocumentStore: h.store.DocumentStore(),
		beforeDetach: func() {
			arrived.Done()
			arrived.Wait()
		},
	})

	keys := []domain.PairKey{first, second}
	results := make([]*runOutcome, len(keys))
	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := deleter.Run(ctx, key)
			results[i] = &runOutcome{res: res, err: err}
		}()
	}
	wg.Wait()

	detached, chunks := 0, 0
	for i, r := range results {
		require.NoError(t, r.err, "pair %v", keys[i])
		detached += r.res.DocsDetached
		chunks += r.res.ChunksDeleted
	}
	assert.Equal(t, 1, detached)
	assert.Equal(t, rows, chunks)

	_, err = h.store.DocumentStore().Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	count, err := h.store.ChunkStore().CountForDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, h.vector.Len())
	assert.Zero(t, h.keyword.Len())
	leftovers, err := h.store.DocumentStore().ListUnattributed(ctx)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

// runOutcome pairs a deletion result with its error.
type runOutcome struct {
	res *driving.DeletionResult
	err error
}

func TestDeletionRunner_Run_IndexOtherPairDuringDeletion(t *testing.T) {
	setup := func(t *testing.T) (*harness, domain.PairKey, domain.PairKey) {
		h := newHarness(t)
		owner := h.bind(t, nil)
		other := h.bindSecond(t, owner.ConnectorID)
		h.driver.setDocs(doc("doc-1", "shared content"))
		_, err := h.indexer.Run(context.Background(), owner)
		require.NoError(t, err)
		return h, owner, other
	}

	t.Run("index after detach waits for purge", func(t *testing.T) {
		h, owner, other := setup(t)
		ctx := context.Background()

		detached := make(chan struct{})
		release := make(chan struct{})
		deleter := h.gatedDeleter(&gatedDocuments{
			DocumentStore: h.store.DocumentStore(),
			afterDetach: func() {
				close(detached)
				<-release
			},
		})
		done := make(chan runOutcome, 1)
		go func() {
			res, err := deleter.Run(ctx, owner)
			done <- runOutcome{res: res, err: err}
		}()
		<-detached

		_, err := h.indexer.Run(ctx, other)
		require.ErrorIs(t, err, domain.ErrDocumentPurging)
		assert.True(t, domain.IsConflict(err))
		pair, err := h.pairs.Get(ctx, other)
		require.NoError(t, err)
		assert.Nil(t, pair.LastSuccessfulIndexTime)

		close(release)
		r := <-done
		require.NoError(t, r.err)
		assert.Equal(t, 1, r.res.DocsPurged)
		assert.Zero(t, h.vector.Len())
		assert.Zero(t, h.keyword.Len())

		_, err = h.indexer.Run(ctx, other)
		require.NoError(t, err)
		pairs, err := h.store.DocumentStore().ListAttributedPairs(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, []domain.PairKey{other}, pairs)
		count, err := h.store.ChunkStore().CountForDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, h.vector.Len()+h.keyword.Len(), count)
		assert.Positive(t, count)
	})

	t.Run("index before detach keeps chunks", func(t *testing.T) {
		h, owner, other := setup(t)
		ctx := context.Background()

		arrived := make(chan struct{})
		release := make(chan struct{})
		deleter := h.gatedDeleter(&gatedDocuments{
			DocumentStore: h.store.DocumentStore(),
			beforeDetach: func() {
				close(arrived)
				<-release
			},
		})
		done := make(chan runOutcome, 1)
		go func() {
			res, err := deleter.Run(ctx, owner)
			done <- runOutcome{res: res, err: err}
		}()
		<-arrived

		_, err := h.indexer.Run(ctx, other)
		require.NoError(t, err)

		close(release)
		r := <-done
		require.NoError(t, r.err)
		assert.Equal(t, 1, r.res.DocsDetached)
		assert.Zero(t, r.res.DocsPurged)
		assert.Zero(t, r.res.ChunksDeleted)

		pairs, err := h.store.DocumentStore().ListAttributedPairs(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, []domain.PairKey{other}, pairs)
		count, err := h.store.ChunkStore().CountForDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, h.vector.Len()+h.keyword.Len(), count)
		assert.Positive(t, count)
	})
}
