package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors/chunker"
)

func TestIndexingRunner_Run_Success(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)
	h.driver.setDocs(doc("doc-1", "0123456789abcdef"), doc("doc-2", "short"))

	res, err := h.indexer.Run(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, domain.StatusSuccess, res.Attempt.Status)
	assert.Equal(t, 2, res.DocsIndexed)
	assert.Equal(t, 6, res.ChunksWritten)
	assert.Zero(t, res.StaleChunksRemoved)

	assert.Equal(t, 3, h.vector.Len())
	assert.Equal(t, 3, h.keyword.Len())

	count, err := h.store.ChunkStore().CountForDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	pairs, err := h.store.DocumentStore().ListAttributedPairs(ctx, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, []domain.PairKey{key}, pairs)

	pair, err := h.pairs.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, pair.TotalDocsIndexed)
	require.NotNil(t, pair.LastAttemptStatus)
	assert.Equal(t, domain.StatusSuccess, *pair.LastAttemptStatus)
	require.NotNil(t, pair.LastSuccessfulIndexTime)
	assert.True(t, res.Attempt.UpdatedAt.Equal(*pair.LastSuccessfulIndexTime))

	_, err = h.attempts.Holder(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.JSONEq(t, `{"token":"x"}`, string(h.driver.lastCrd))
	assert.JSONEq(t, `{"root":"/tmp"}`, string(h.driver.lastCfg))
}

func TestIndexingRunner_Run_PollUsesWatermark(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)
	h.driver.setDocs(doc("doc-1", "a"))

	first, err := h.indexer.Run(ctx, key)
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	_, err = h.indexer.Run(ctx, key)
	require.NoError(t, err)

	require.Len(t, h.driver.since, 2)
	assert.Nil(t, h.driver.since[0])
	require.NotNil(t, h.driver.since[1])
	assert.True(t, first.Attempt.UpdatedAt.Equal(*h.driver.since[1]))

	pair, err := h.pairs.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, pair.TotalDocsIndexed)
	assert.True(t, first.Attempt.UpdatedAt.Add(time.Minute).Equal(*pair.LastSuccessfulIndexTime))
}

func TestIndexingRunner_Run_LoadStateIgnoresWatermark(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, &domain.Connector{InputType: domain.InputLoadState})
	h.driver.setDocs(doc("doc-1", "a"))

	for range 2 {
		_, err := h.indexer.Run(ctx, key)
		require.NoError(t, err)
	}
	require.Len(t, h.driver.since, 2)
	assert.Nil(t, h.driver.since[0])
	assert.Nil(t, h.driver.since[1])
}

func TestIndexingRunner_Run_RemovesStaleChunks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)

	h.driver.setDocs(doc("doc-1", "0123456789abcdefXYZ"))
	_, err := h.indexer.Run(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, h.vector.Len())

	h.driver.setDocs(doc("doc-1", "tiny"))
	res, err := h.indexer.Run(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 4, res.StaleChunksRemoved)
	assert.Equal(t, []string{chunker.ChunkID("doc-1", 0)}, h.vector.IDs())
	assert.Equal(t, []string{chunker.ChunkID("doc-1", 0)}, h.keyword.IDs())

	got, ok := h.vector.Get(chunker.ChunkID("doc-1", 0))
	require.True(t, ok)
	assert.Equal(t, "tiny", got.Content)

	count, err := h.store.ChunkStore().CountForDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIndexingRunner_Run_StaleDeleteFailureKeepsRow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)

	h.driver.setDocs(doc("doc-1", "0123456789abcdef"))
	first, err := h.indexer.Run(ctx, key)
	require.NoError(t, err)

	stale := chunker.ChunkID("doc-1", 1)
	h.vector.FailDeletes(stale)
	h.clock.Advance(time.Minute)
	h.driver.setDocs(doc("doc-1", "tiny"))

	res, err := h.indexer.Run(ctx, key)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, domain.StatusFailed, res.Attempt.Status)
	assert.Contains(t, res.Attempt.ErrorMsg, stale)

	rows, err := h.store.ChunkStore().ListForDocument(ctx, "doc-1", domain.StoreVector)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	pair, err := h.pairs.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, *pair.LastAttemptStatus)
	assert.True(t, first.Attempt.UpdatedAt.Equal(*pair.LastSuccessfulIndexTime))
	assert.Equal(t, 1, pair.TotalDocsIndexed)

	h.vector.Heal()
	res, err = h.indexer.Run(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, res.StaleChunksRemoved)
	assert.Equal(t, 1, h.vector.Len())
	assert.Equal(t, 1, h.keyword.Len())
}

func TestIndexingRunner_Run_ConnectorErrorKeepsCommittedWork(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)
	boom := errors.New("source unavailable")
	h.driver.setDocs(doc("doc-1", "a"))
	h.driver.err = boom

	res, err := h.indexer.Run(ctx, key)
	require.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.DocsIndexed)
	assert.Equal(t, domain.StatusFailed, res.Attempt.Status)
	assert.Contains(t, res.Attempt.ErrorMsg, "source unavailable")

	_, err = h.store.DocumentStore().Get(ctx, "doc-1")
	assert.NoError(t, err)

	pair, err := h.pairs.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, pair.LastSuccessfulIndexTime)
	assert.Equal(t, domain.StatusFailed, *pair.LastAttemptStatus)
	assert.Zero(t, pair.TotalDocsIndexed)

	_, err = h.attempts.Holder(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexingRunner_Run_WriteFailureRecordsNoRows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)
	h.driver.setDocs(doc("doc-1", "0123456789"))
	h.keyword.FailWrites(chunker.ChunkID("doc-1", 1))

	_, err := h.indexer.Run(ctx, key)
	require.Error(t, err)

	vectorRows, err := h.store.ChunkStore().ListForDocument(ctx, "doc-1", domain.StoreVector)
	require.NoError(t, err)
	assert.Len(t, vectorRows, 2)

	keywordRows, err := h.store.ChunkStore().ListForDocument(ctx, "doc-1", domain.StoreKeyword)
	require.NoError(t, err)
	assert.Empty(t, keywordRows)
}

func TestIndexingRunner_Run_Cancelled(t *testing.T) {
	h := newHarness(t)
	key := h.bind(t, nil)
	h.driver.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var (
		res *driving.IndexResult
		err error
	)
	go func() {
		defer close(done)
		res, err = h.indexer.Run(ctx, key)
	}()

	require.Eventually(t, func() bool { return h.driver.pullCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, domain.StatusFailed, res.Attempt.Status)

	_, err = h.attempts.Holder(context.Background(), key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexingRunner_Run_Refusals(t *testing.T) {
	ctx := context.Background()

	t.Run("not bound", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.indexer.Run(ctx, domain.PairKey{ConnectorID: 9, CredentialID: 9})
		assert.ErrorIs(t, err, domain.ErrNotBound)
	})

	t.Run("disabled connector", func(t *testing.T) {
		h := newHarness(t)
		key := h.bind(t, &domain.Connector{Disabled: true})
		res, err := h.indexer.Run(ctx, key)
		assert.ErrorIs(t, err, domain.ErrConnectorDisabled)
		assert.Nil(t, res)

		history, err := h.attempts.ListForPair(ctx, domain.KindIndex, key, 0)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("event connector", func(t *testing.T) {
		h := newHarness(t)
		key := h.bind(t, &domain.Connector{InputType: domain.InputEvent})
		_, err := h.indexer.Run(ctx, key)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("unsupported source", func(t *testing.T) {
		h := newHarness(t)
		key := h.bind(t, &domain.Connector{Source: domain.SourceSlack})
		_, err := h.indexer.Run(ctx, key)
		assert.ErrorIs(t, err, domain.ErrUnsupportedSource)
	})

	t.Run("pair held by deletion", func(t *testing.T) {
		h := newHarness(t)
		key := h.bind(t, nil)
		_, err := h.attempts.Begin(ctx, domain.KindDeletion, key)
		require.NoError(t, err)

		res, err := h.indexer.Run(ctx, key)
		assert.ErrorIs(t, err, domain.ErrConcurrentAttemptExists)
		assert.Nil(t, res)
		assert.Zero(t, h.driver.pullCount())
	})
}
