package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func TestAttemptService_ConcurrentStart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)

	first, err := h.attempts.Create(ctx, domain.KindIndex, key)
	require.NoError(t, err)
	second, err := h.attempts.Create(ctx, domain.KindIndex, key)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		conflict int
	)
	for _, id := range []int64{first.ID, second.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.attempts.Start(ctx, domain.KindIndex, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrConcurrentAttemptExists):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflict)

	running, err := h.attempts.ListInProgress(ctx, domain.KindIndex)
	require.NoError(t, err)
	assert.Len(t, running, 1)
}

func TestAttemptService_MarkFailed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)

	attempt, err := h.attempts.Begin(ctx, domain.KindDeletion, key)
	require.NoError(t, err)

	lease, err := h.attempts.Holder(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, lease.AttemptID)
	assert.Equal(t, domain.KindDeletion, lease.Kind)

	failed, err := h.attempts.MarkFailed(ctx, domain.KindDeletion, attempt.ID, "  ")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assert.Equal(t, "marked failed by operator", failed.ErrorMsg)

	_, err = h.attempts.Holder(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.attempts.MarkFailed(ctx, domain.KindDeletion, attempt.ID, "again")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAttemptService_Completion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)

	t.Run("fail without cause", func(t *testing.T) {
		a, err := h.attempts.Begin(ctx, domain.KindIndex, key)
		require.NoError(t, err)
		done, err := h.attempts.Fail(ctx, domain.KindIndex, a.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, "unknown error", done.ErrorMsg)
	})

	t.Run("succeed records deleted count", func(t *testing.T) {
		a, err := h.attempts.Begin(ctx, domain.KindDeletion, key)
		require.NoError(t, err)
		done, err := h.attempts.Succeed(ctx, domain.KindDeletion, a.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSuccess, done.Status)
		assert.Equal(t, 3, done.NumDocsDeleted)
		assert.Empty(t, done.ErrorMsg)

		got, err := h.attempts.Get(ctx, domain.KindDeletion, a.ID)
		require.NoError(t, err)
		assert.Equal(t, done.Status, got.Status)
	})

	t.Run("not started cannot complete", func(t *testing.T) {
		a, err := h.attempts.Create(ctx, domain.KindIndex, key)
		require.NoError(t, err)
		_, err = h.attempts.Succeed(ctx, domain.KindIndex, a.ID, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("history newest first", func(t *testing.T) {
		history, err := h.attempts.ListForPair(ctx, domain.KindIndex, key, 0)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Greater(t, history[0].ID, history[1].ID)

		limited, err := h.attempts.ListForPair(ctx, domain.KindIndex, key, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}

func TestAttemptService_RejectsUnknownKind(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)
	bogus := domain.AttemptKind("reindex")

	_, err := h.attempts.Create(ctx, bogus, key)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.attempts.Begin(ctx, bogus, key)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.attempts.Get(ctx, bogus, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.attempts.ListInProgress(ctx, bogus)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
