// Package storetest is a conformance suite run against every store adapter.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Stores bundles one adapter's implementations of every store port.
type Stores struct {
	Credentials driven.CredentialStore
	Connectors  driven.ConnectorStore
	Pairs       driven.PairStore
	Attempts    driven.AttemptStore
	Documents   driven.DocumentStore
	Chunks      driven.ChunkStore
}

// Factory returns fresh, empty stores for one test.
type Factory func(t *testing.T) Stores

// Run executes the whole suite.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	tests := map[string]func(t *testing.T, s Stores){
		"CredentialCRUD":               testCredentialCRUD,
		"ConnectorCRUD":                testConnectorCRUD,
		"BindUnbind":                   testBindUnbind,
		"BindRequiresParents":          testBindRequiresParents,
		"PairUpdate":                   testPairUpdate,
		"PairUpdateWatermarkMonotonic": testPairUpdateWatermarkMonotonic,
		"UnbindWithLiveAttempt":        testUnbindWithLiveAttempt,
		"AttemptLifecycle":             testAttemptLifecycle,
		"AttemptIllegalTransitions":    testAttemptIllegalTransitions,
		"AttemptCrossKindExclusion":    testAttemptCrossKindExclusion,
		"AttemptConcurrentBegin":       testAttemptConcurrentBegin,
		"AttemptConcurrentStart":       testAttemptConcurrentStart,
		"AttemptRequiresPair":          testAttemptRequiresPair,
		"AttemptListing":               testAttemptListing,
		"AttributionIdempotent":        testAttributionIdempotent,
		"AttributionRemovalShared":     testAttributionRemovalShared,
		"AttributionRemovalChunksHold": testAttributionRemovalChunksHold,
		"DetachCountsRemaining":        testDetachCountsRemaining,
		"DetachConcurrent":             testDetachConcurrent,
		"UnattributedRefusesUpsert":    testUnattributedRefusesUpsert,
		"ChunkDeletePrunesDocument":    testChunkDeletePrunesDocument,
		"OrphanChunk":                  testOrphanChunk,
		"ChunkPerStoreType":            testChunkPerStoreType,
		"ChunkBatchAllOrNothing":       testChunkBatchAllOrNothing,
		"ParentDeletionRules":          testParentDeletionRules,
	}

	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

// ==================== Fixtures ====================

func seedPair(t *testing.T, s Stores) domain.PairKey {
	t.Helper()
	ctx := context.Background()

	cred := &domain.Credential{Payload: json.RawMessage(`{"token":"abc"}`)}
	require.NoError(t, s.Credentials.Create(ctx, cred))

	conn := &domain.Connector{
		Name:      "wiki",
		Source:    domain.SourceWeb,
		InputType: domain.InputPoll,
		Config:    json.RawMessage(`{"base_url":"https://example.com"}`),
	}
	require.NoError(t, s.Connectors.Create(ctx, conn))

	key := domain.PairKey{ConnectorID: conn.ID, CredentialID: cred.ID}
	require.NoError(t, s.Pairs.Create(ctx, domain.NewPair(key, time.Now())))
	return key
}

func seedSecondPair(t *testing.T, s Stores, first domain.PairKey) domain.PairKey {
	t.Helper()
	ctx := context.Background()

	cred := &domain.Credential{Payload: json.RawMessage(`{"token":"def"}`)}
	require.NoError(t, s.Credentials.Create(ctx, cred))

	key := domain.PairKey{ConnectorID: first.ConnectorID, CredentialID: cred.ID}
	require.NoError(t, s.Pairs.Create(ctx, domain.NewPair(key, time.Now())))
	return key
}

// ==================== Credentials & Connectors ====================

func testCredentialCRUD(t *testing.T, s Stores) {
	ctx := context.Background()
	owner := "user-1"

	cred := &domain.Credential{Payload: json.RawMessage(`{"token":"abc"}`), UserID: &owner}
	require.NoError(t, s.Credentials.Create(ctx, cred))
	assert.NotZero(t, cred.ID)
	assert.False(t, cred.CreatedAt.IsZero())

	got, err := s.Credentials.Get(ctx, cred.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"abc"}`, string(got.Payload))
	require.NotNil(t, got.UserID)
	assert.Equal(t, owner, *got.UserID)
	assert.False(t, got.Public)

	got.Public = true
	got.Payload = json.RawMessage(`{"token":"xyz"}`)
	require.NoError(t, s.Credentials.Update(ctx, got))

	updated, err := s.Credentials.Get(ctx, cred.ID)
	require.NoError(t, err)
	assert.True(t, updated.Public)
	assert.JSONEq(t, `{"token":"xyz"}`, string(updated.Payload))
	assert.Equal(t, cred.CreatedAt.Unix(), updated.CreatedAt.Unix())

	list, err := s.Credentials.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Credentials.Delete(ctx, cred.ID))
	_, err = s.Credentials.Get(ctx, cred.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.Credentials.Delete(ctx, cred.ID), domain.ErrNotFound)
	assert.ErrorIs(t, s.Credentials.Update(ctx, cred), domain.ErrNotFound)
}

func testConnectorCRUD(t *testing.T, s Stores) {
	ctx := context.Background()
	freq := 10 * time.Minute

	conn := &domain.Connector{
		Name:        "drive",
		Source:      domain.SourceGoogleDrive,
		InputType:   domain.InputLoadState,
		Config:      json.RawMessage(`{"folder":"root"}`),
		RefreshFreq: &freq,
	}
	require.NoError(t, s.Connectors.Create(ctx, conn))
	assert.NotZero(t, conn.ID)

	got, err := s.Connectors.Get(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "drive", got.Name)
	assert.Equal(t, domain.SourceGoogleDrive, got.Source)
	assert.Equal(t, domain.InputLoadState, got.InputType)
	require.NotNil(t, got.RefreshFreq)
	assert.Equal(t, freq, *got.RefreshFreq)
	assert.False(t, got.Disabled)

	got.Disabled = true
	got.RefreshFreq = nil
	require.NoError(t, s.Connectors.Update(ctx, got))

	updated, err := s.Connectors.Get(ctx, conn.ID)
	require.NoError(t, err)
	assert.True(t, updated.Disabled)
	assert.Nil(t, updated.RefreshFreq)

	list, err := s.Connectors.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Connectors.Delete(ctx, conn.ID))
	_, err = s.Connectors.Get(ctx, conn.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ==================== Pairs ====================

func testBindUnbind(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)

	pair, err := s.Pairs.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, pair.PairKey)
	assert.Nil(t, pair.LastSuccessfulIndexTime)
	assert.Nil(t, pair.LastAttemptStatus)
	assert.Zero(t, pair.TotalDocsIndexed)

	err = s.Pairs.Create(ctx, domain.NewPair(key, time.Now()))
	assert.ErrorIs(t, err, domain.ErrAlreadyBound)

	list, err := s.Pairs.ListForConnector(ctx, key.ConnectorID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, s.Connectors.Delete(ctx, key.ConnectorID), domain.ErrConnectorInUse)
	assert.ErrorIs(t, s.Credentials.Delete(ctx, key.CredentialID), domain.ErrCredentialInUse)

	require.NoError(t, s.Pairs.Delete(ctx, key))
	_, err = s.Pairs.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotBound)
	assert.ErrorIs(t, s.Pairs.Delete(ctx, key), domain.ErrNotBound)
}

func testBindRequiresParents(t *testing.T, s Stores) {
	ctx := context.Background()
	err := s.Pairs.Create(ctx, domain.NewPair(domain.PairKey{ConnectorID: 404, CredentialID: 405}, time.Now()))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testPairUpdate(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)
	finished := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

	pair, err := s.Pairs.Update(ctx, key, func(p *domain.Pair) error {
		return p.ApplySuccess(finished, 4)
	})
	require.NoError(t, err)
	assert.Equal(t, 4, pair.TotalDocsIndexed)

	pair, err = s.Pairs.Update(ctx, key, func(p *domain.Pair) error {
		p.ApplyFailure()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, *pair.LastAttemptStatus)

	stored, err := s.Pairs.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, stored.LastSuccessfulIndexTime)
	assert.True(t, finished.Equal(*stored.LastSuccessfulIndexTime))
	assert.Equal(t, domain.StatusFailed, *stored.LastAttemptStatus)
	assert.Equal(t, 4, stored.TotalDocsIndexed)

	boom := errors.New("boom")
	_, err = s.Pairs.Update(ctx, key, func(p *domain.Pair) error {
		p.TotalDocsIndexed = 1000
		return boom
	})
	assert.ErrorIs(t, err, boom)
	stored, err = s.Pairs.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.TotalDocsIndexed, "failed update must not be written")

	_, err = s.Pairs.Update(ctx, domain.PairKey{ConnectorID: 77, CredentialID: 78}, func(*domain.Pair) error { return nil })
	assert.ErrorIs(t, err, domain.ErrNotBound)
}

func testPairUpdateWatermarkMonotonic(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)
	t1 := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	var wg sync.WaitGroup
	for _, ts := range []time.Time{t2, t1, t2.Add(-time.Minute), t1.Add(time.Second)} {
		wg.Add(1)
		go func(ts time.Time) {
			defer wg.Done()
			_, err := s.Pairs.Update(ctx, key, func(p *domain.Pair) error {
				return p.ApplySuccess(ts, 1)
			})
			assert.NoError(t, err)
		}(ts)
	}
	wg.Wait()

	stored, err := s.Pairs.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, t2.Equal(*stored.LastSuccessfulIndexTime))
	assert.Equal(t, 4, stored.TotalDocsIndexed)
}

func testUnbindWithLiveAttempt(t *testing.T, s Stores) {
	ctx := context.Background()
	for _, kind := range []domain.AttemptKind{domain.KindIndex, domain.KindDeletion} {
		t.Run(string(kind), func(t *testing.T) {
			key := seedPair(t, s)
			attempt, err := s.Attempts.Begin(ctx, kind, key)
			require.NoError(t, err)

			assert.ErrorIs(t, s.Pairs.Delete(ctx, key), domain.ErrHasLiveAttempt)

			_, err = s.Attempts.Complete(ctx, kind, attempt.ID, domain.Outcome{})
			require.NoError(t, err)
			require.NoError(t, s.Pairs.Delete(ctx, key))
		})
	}
}

// ==================== Attempts ====================

func testAttemptLifecycle(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)

	attempt, err := s.Attempts.Create(ctx, domain.KindIndex, key)
	require.NoError(t, err)
	assert.NotZero(t, attempt.ID)
	assert.Equal(t, domain.StatusNotStarted, attempt.Status)
	created := attempt.CreatedAt

	_, err = s.Attempts.Holder(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	attempt, err = s.Attempts.Start(ctx, domain.KindIndex, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, attempt.Status)

	lease, err := s.Attempts.Holder(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, lease.AttemptID)
	assert.Equal(t, domain.KindIndex, lease.Kind)

	inProgress, err := s.Attempts.ListInProgress(ctx, domain.KindIndex)
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, attempt.ID, inProgress[0].ID)

	attempt, err = s.Attempts.Complete(ctx, domain.KindIndex, attempt.ID, domain.Outcome{Err: errors.New("source unreachable")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, attempt.Status)
	assert.Equal(t, "source unreachable", attempt.ErrorMsg)
	assert.False(t, attempt.UpdatedAt.Before(attempt.CreatedAt))

	stored, err := s.Attempts.Get(ctx, domain.KindIndex, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Equal(t, "source unreachable", stored.ErrorMsg)
	assert.Equal(t, created.Unix(), stored.CreatedAt.Unix())

	_, err = s.Attempts.Holder(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deletion, err := s.Attempts.Begin(ctx, domain.KindDeletion, key)
	require.NoError(t, err)
	deletion, err = s.Attempts.Complete(ctx, domain.KindDeletion, deletion.ID, domain.Outcome{NumDocsDeleted: 3})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, deletion.Status)
	assert.Equal(t, 3, deletion.NumDocsDeleted)
	assert.Empty(t, deletion.ErrorMsg)

	_, err = s.Attempts.Get(ctx, domain.KindIndex, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testAttemptIllegalTransitions(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)

	notStarted, err := s.Attempts.Create(ctx, domain.KindIndex, key)
	require.NoError(t, err)
	_, err = s.Attempts.Complete(ctx, domain.KindIndex, notStarted.ID, domain.Outcome{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	done, err := s.Attempts.Start(ctx, domain.KindIndex, notStarted.ID)
	require.NoError(t, err)
	_, err = s.Attempts.Start(ctx, domain.KindIndex, done.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = s.Attempts.Complete(ctx, domain.KindIndex, done.ID, domain.Outcome{})
	require.NoError(t, err)

	_, err = s.Attempts.Complete(ctx, domain.KindIndex, done.ID, domain.Outcome{Err: errors.New("late")})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = s.Attempts.Start(ctx, domain.KindIndex, done.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := s.Attempts.Get(ctx, domain.KindIndex, done.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, stored.Status)
}

func testAttemptCrossKindExclusion(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)
	other := seedSecondPair(t, s, key)

	index, err := s.Attempts.Begin(ctx, domain.KindIndex, key)
	require.NoError(t, err)

	_, err = s.Attempts.Begin(ctx, domain.KindDeletion, key)
	assert.ErrorIs(t, err, domain.ErrConcurrentAttemptExists)
	_, err = s.Attempts.Begin(ctx, domain.KindIndex, key)
	assert.ErrorIs(t, err, domain.ErrConcurrentAttemptExists)

	queued, err := s.Attempts.Create(ctx, domain.KindDeletion, key)
	require.NoError(t, err)
	_, err = s.Attempts.Start(ctx, domain.KindDeletion, queued.ID)
	assert.ErrorIs(t, err, domain.ErrConcurrentAttemptExists)

	stillQueued, err := s.Attempts.Get(ctx, domain.KindDeletion, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotStarted, stillQueued.Status)

	_, err = s.Attempts.Begin(ctx, domain.KindDeletion, other)
	require.NoError(t, err, "a different pair is independent")

	_, err = s.Attempts.Complete(ctx, domain.KindIndex, index.ID, domain.Outcome{})
	require.NoError(t, err)

	started, err := s.Attempts.Start(ctx, domain.KindDeletion, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, started.Status)
}

func testAttemptConcurrentBegin(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		kind := domain.KindIndex
		if i%2 == 1 {
			kind = domain.KindDeletion
		}
		go func(kind domain.AttemptKind) {
			defer wg.Done()
			_, err := s.Attempts.Begin(ctx, kind, key)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrConcurrentAttemptExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(kind)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)

	index, err := s.Attempts.ListInProgress(ctx, domain.KindIndex)
	require.NoError(t, err)
	deletion, err := s.Attempts.ListInProgress(ctx, domain.KindDeletion)
	require.NoError(t, err)
	assert.Len(t, append(index, deletion...), 1)

	all, err := s.Attempts.ListForPair(ctx, domain.KindIndex, key, 0)
	require.NoError(t, err)
	allDeletes, err := s.Attempts.ListForPair(ctx, domain.KindDeletion, key, 0)
	require.NoError(t, err)
	assert.Len(t, append(all, allDeletes...), 1, "losing begins must not leave attempts behind")
}

func testAttemptConcurrentStart(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)

	first, err := s.Attempts.Create(ctx, domain.KindIndex, key)
	require.NoError(t, err)
	second, err := s.Attempts.Create(ctx, domain.KindIndex, key)
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, id := range []int64{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = s.Attempts.Start(ctx, domain.KindIndex, id)
		}(i, id)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrConcurrentAttemptExists)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	inProgress, err := s.Attempts.ListInProgress(ctx, domain.KindIndex)
	require.NoError(t, err)
	assert.Len(t, inProgress, 1)
}

func testAttemptRequiresPair(t *testing.T, s Stores) {
	ctx := context.Background()
	missing := domain.PairKey{ConnectorID: 500, CredentialID: 501}

	_, err := s.Attempts.Create(ctx, domain.KindIndex, missing)
	assert.ErrorIs(t, err, domain.ErrNotBound)
	_, err = s.Attempts.Begin(ctx, domain.KindDeletion, missing)
	assert.ErrorIs(t, err, domain.ErrNotBound)

	key := seedPair(t, s)
	queued, err := s.Attempts.Create(ctx, domain.KindIndex, key)
	require.NoError(t, err)
	require.NoError(t, s.Pairs.Delete(ctx, key))

	_, err = s.Attempts.Start(ctx, domain.KindIndex, queued.ID)
	assert.ErrorIs(t, err, domain.ErrNotBound)
}

func testAttemptListing(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)

	var ids []int64
	for i := 0; i < 3; i++ {
		a, err := s.Attempts.Begin(ctx, domain.KindIndex, key)
		require.NoError(t, err)
		_, err = s.Attempts.Complete(ctx, domain.KindIndex, a.ID, domain.Outcome{})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	all, err := s.Attempts.ListForPair(ctx, domain.KindIndex, key, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")
	assert.Equal(t, ids[0], all[2].ID)

	limited, err := s.Attempts.ListForPair(ctx, domain.KindIndex, key, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := s.Attempts.ListForPair(ctx, domain.KindDeletion, key, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// ==================== Documents & Chunks ====================

func testAttributionIdempotent(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Documents.UpsertAttribution(ctx, "doc-1", key))
	}

	pairs, err := s.Documents.ListAttributedPairs(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.PairKey{key}, pairs)

	doc, err := s.Documents.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)

	count, err := s.Documents.CountForPair(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, s.Documents.UpsertAttribution(ctx, "", key), domain.ErrInvalidInput)
}

// Scenario A: a document shared by two pairs survives until both detach.
func testAttributionRemovalShared(t *testing.T, s Stores) {
	ctx := context.Background()
	p1 := seedPair(t, s)
	p2 := seedSecondPair(t, s, p1)

	require.NoError(t, s.Documents.UpsertAttribution(ctx, "d", p1))
	require.NoError(t, s.Documents.UpsertAttribution(ctx, "d", p2))

	deleted, err := s.Documents.RemoveAttribution(ctx, "d", p1)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.Documents.Get(ctx, "d")
	require.NoError(t, err)
	pairs, err := s.Documents.ListAttributedPairs(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, []domain.PairKey{p2}, pairs)

	deleted, err = s.Documents.RemoveAttribution(ctx, "d", p2)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.Documents.Get(ctx, "d")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err = s.Documents.RemoveAttribution(ctx, "d", p2)
	require.NoError(t, err)
	assert.False(t, deleted, "removing an absent attribution is a no-op")
}

func testAttributionRemovalChunksHold(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)

	require.NoError(t, s.Documents.UpsertAttribution(ctx, "d", key))
	require.NoError(t, s.Chunks.Put(ctx, domain.Chunk{ID: "c1", StoreType: domain.StoreKeyword, DocumentID: "d"}))

	deleted, err := s.Documents.RemoveAttribution(ctx, "d", key)
	require.NoError(t, err)
	assert.False(t, deleted, "remaining chunk rows keep the document")

	_, err = s.Documents.Get(ctx, "d")
	require.NoError(t, err)

	deleted, err = s.Documents.Prune(ctx, "d")
	require.NoError(t, err)
	assert.False(t, deleted)

	n, err := s.Chunks.DeleteForDocumentAndStore(ctx, "d", domain.StoreKeyword)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Removing the last chunk row deletes the unattributed document.
	_, err = s.Documents.Get(ctx, "d")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err = s.Documents.Prune(ctx, "d")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func testDetachCountsRemaining(t *testing.T, s Stores) {
	ctx := context.Background()
	p1 := seedPair(t, s)
	p2 := seedSecondPair(t, s, p1)

	require.NoError(t, s.Documents.UpsertAttribution(ctx, "d", p1))
	require.NoError(t, s.Documents.UpsertAttribution(ctx, "d", p2))
	require.NoError(t, s.Chunks.Put(ctx, domain.Chunk{ID: "c1", StoreType: domain.StoreVector, DocumentID: "d"}))

	detached, err := s.Documents.Detach(ctx, "d", p1)
	require.NoError(t, err)
	assert.Equal(t, domain.Detachment{Remaining: 1}, detached)

	leftovers, err := s.Documents.ListUnattributed(ctx)
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	detached, err = s.Documents.Detach(ctx, "d", p2)
	require.NoError(t, err)
	assert.Equal(t, domain.Detachment{}, detached, "chunk row keeps the document")

	leftovers, err = s.Documents.ListUnattributed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, leftovers)

	n, err := s.Chunks.Delete(ctx, domain.StoreVector, []string{"c1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	leftovers, err = s.Documents.ListUnattributed(ctx)
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	require.NoError(t, s.Documents.UpsertAttribution(ctx, "e", p1))
	detached, err = s.Documents.Detach(ctx, "e", p1)
	require.NoError(t, err)
	assert.Equal(t, domain.Detachment{Deleted: true}, detached)

	detached, err = s.Documents.Detach(ctx, "missing", p1)
	require.NoError(t, err)
	assert.Equal(t, domain.Detachment{}, detached)
}

// Pairs detaching a shared document at once see distinct remaining counts,
// so exactly one of them learns the document needs purging.
func testDetachConcurrent(t *testing.T, s Stores) {
	ctx := context.Background()
	p1 := seedPair(t, s)
	p2 := seedSecondPair(t, s, p1)

	require.NoError(t, s.Documents.UpsertAttribution(ctx, "d", p1))
	require.NoError(t, s.Documents.UpsertAttribution(ctx, "d", p2))
	require.NoError(t, s.Chunks.Put(ctx, domain.Chunk{ID: "c1", StoreType: domain.StoreKeyword, DocumentID: "d"}))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		remaining []int
	)
	for _, key := range []domain.PairKey{p1, p2} {
		wg.Add(1)
		go func(key domain.PairKey) {
			defer wg.Done()
			detached, err := s.Documents.Detach(ctx, "d", key)
			if err != nil {
				t.Errorf("detach %v: %v", key, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			remaining = append(remaining, detached.Remaining)
		}(key)
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{0, 1}, remaining)
	leftovers, err := s.Documents.ListUnattributed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, leftovers)
}

func testUnattributedRefusesUpsert(t *testing.T, s Stores) {
	ctx := context.Background()
	p1 := seedPair(t, s)
	p2 := seedSecondPair(t, s, p1)

	require.NoError(t, s.Documents.UpsertAttribution(ctx, "d", p1))
	require.NoError(t, s.Chunks.Put(ctx, domain.Chunk{ID: "c1", StoreType: domain.StoreVector, DocumentID: "d"}))
	_, err := s.Documents.RemoveAttribution(ctx, "d", p1)
	require.NoError(t, err)

	err = s.Documents.UpsertAttribution(ctx, "d", p2)
	require.ErrorIs(t, err, domain.ErrDocumentPurging)
	assert.True(t, domain.IsConflict(err))

	pairs, err := s.Documents.ListAttributedPairs(ctx, "d")
	require.NoError(t, err)
	assert.Empty(t, pairs)

	_, err = s.Chunks.DeleteForDocumentAndStore(ctx, "d", domain.StoreVector)
	require.NoError(t, err)
	require.NoError(t, s.Documents.UpsertAttribution(ctx, "d", p2))
	pairs, err = s.Documents.ListAttributedPairs(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, []domain.PairKey{p2}, pairs)
}

func testChunkDeletePrunesDocument(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)

	require.NoError(t, s.Documents.UpsertAttribution(ctx, "d", key))
	require.NoError(t, s.Documents.UpsertAttribution(ctx, "kept", key))
	require.NoError(t, s.Chunks.PutBatch(ctx, []domain.Chunk{
		{ID: "c1", StoreType: domain.StoreVector, DocumentID: "d"},
		{ID: "c1", StoreType: domain.StoreKeyword, DocumentID: "d"},
		{ID: "k1", StoreType: domain.StoreVector, DocumentID: "kept"},
	}))
	deleted, err := s.Documents.RemoveAttribution(ctx, "d", key)
	require.NoError(t, err)
	require.False(t, deleted)

	n, err := s.Chunks.Delete(ctx, domain.StoreVector, []string{"c1", "k1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Documents.Get(ctx, "d")
	require.NoError(t, err, "keyword row still holds the document")
	_, err = s.Documents.Get(ctx, "kept")
	require.NoError(t, err, "attributed documents are never pruned")

	n, err = s.Chunks.Delete(ctx, domain.StoreKeyword, []string{"c1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Documents.Get(ctx, "d")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Documents.Get(ctx, "kept")
	assert.NoError(t, err)
}

// Scenario B: chunks for an unknown document are rejected.
func testOrphanChunk(t *testing.T, s Stores) {
	ctx := context.Background()

	err := s.Chunks.Put(ctx, domain.Chunk{ID: "c1", StoreType: domain.StoreVector, DocumentID: "missing"})
	assert.ErrorIs(t, err, domain.ErrOrphanChunk)

	count, err := s.Chunks.CountForDocument(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, count)

	err = s.Chunks.Put(ctx, domain.Chunk{ID: "c1", StoreType: "graph", DocumentID: "missing"})
	assert.ErrorIs(t, err, domain.ErrUnknownStoreType)
}

func testChunkPerStoreType(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)
	require.NoError(t, s.Documents.UpsertAttribution(ctx, "d", key))

	chunks := []domain.Chunk{
		{ID: "c1", StoreType: domain.StoreVector, DocumentID: "d"},
		{ID: "c2", StoreType: domain.StoreVector, DocumentID: "d"},
		{ID: "c1", StoreType: domain.StoreKeyword, DocumentID: "d"},
	}
	require.NoError(t, s.Chunks.PutBatch(ctx, chunks))
	require.NoError(t, s.Chunks.Put(ctx, chunks[0]), "put is an upsert")

	count, err := s.Chunks.CountForDocument(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	types, err := s.Chunks.StoreTypesForDocument(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, []domain.StoreType{domain.StoreKeyword, domain.StoreVector}, types)

	vector, err := s.Chunks.ListForDocument(ctx, "d", domain.StoreVector)
	require.NoError(t, err)
	require.Len(t, vector, 2)
	assert.Equal(t, "c1", vector[0].ID)
	assert.Equal(t, "c2", vector[1].ID)

	n, err := s.Chunks.Delete(ctx, domain.StoreVector, []string{"c2", "nope"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Chunks.DeleteForDocumentAndStore(ctx, "d", domain.StoreVector)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err = s.Chunks.CountForDocument(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "keyword row untouched")

	n, err = s.Chunks.DeleteForDocumentAndStore(ctx, "d", domain.StoreVector)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testChunkBatchAllOrNothing(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)
	require.NoError(t, s.Documents.UpsertAttribution(ctx, "d", key))

	err := s.Chunks.PutBatch(ctx, []domain.Chunk{
		{ID: "c1", StoreType: domain.StoreVector, DocumentID: "d"},
		{ID: "c2", StoreType: domain.StoreVector, DocumentID: "ghost"},
	})
	assert.ErrorIs(t, err, domain.ErrOrphanChunk)

	count, err := s.Chunks.CountForDocument(ctx, "d")
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, s.Chunks.PutBatch(ctx, nil))
}

func testParentDeletionRules(t *testing.T, s Stores) {
	ctx := context.Background()
	key := seedPair(t, s)

	index, err := s.Attempts.Begin(ctx, domain.KindIndex, key)
	require.NoError(t, err)
	_, err = s.Attempts.Complete(ctx, domain.KindIndex, index.ID, domain.Outcome{})
	require.NoError(t, err)

	deletion, err := s.Attempts.Begin(ctx, domain.KindDeletion, key)
	require.NoError(t, err)
	_, err = s.Attempts.Complete(ctx, domain.KindDeletion, deletion.ID, domain.Outcome{})
	require.NoError(t, err)

	require.NoError(t, s.Documents.UpsertAttribution(ctx, "d", key))
	require.NoError(t, s.Pairs.Delete(ctx, key))

	assert.ErrorIs(t, s.Credentials.Delete(ctx, key.CredentialID), domain.ErrCredentialInUse,
		"attributions still reference the credential")

	_, err = s.Documents.RemoveAttribution(ctx, "d", key)
	require.NoError(t, err)

	require.NoError(t, s.Connectors.Delete(ctx, key.ConnectorID))
	require.NoError(t, s.Credentials.Delete(ctx, key.CredentialID))

	kept, err := s.Attempts.Get(ctx, domain.KindIndex, index.ID)
	require.NoError(t, err, "index history survives parent deletion")
	assert.Nil(t, kept.ConnectorID)
	assert.Nil(t, kept.CredentialID)
	assert.Equal(t, domain.StatusSuccess, kept.Status)

	_, err = s.Attempts.Get(ctx, domain.KindDeletion, deletion.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "deletion attempts cascade")
}
