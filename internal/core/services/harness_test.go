package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	indexmem "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/index/memory"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors"
)

// fakeDriver is a connector driver that serves a fixed document set.
type fakeDriver struct {
	mu      sync.Mutex
	docs    []domain.SourceDocument
	err     error
	block   chan struct{}
	pulls   int
	since   []*time.Time
	lastCfg json.RawMessage
	lastCrd json.RawMessage
}

func (f *fakeDriver) Source() domain.DocumentSource { return domain.SourceFile }

func (f *fakeDriver) Validate(_ context.Context, _, _ json.RawMessage) error { return nil }

func (f *fakeDriver) Pull(ctx context.Context, req driven.PullRequest) (<-chan domain.SourceDocument, <-chan error) {
	f.mu.Lock()
	f.pulls++
	f.since = append(f.since, req.Since)
	f.lastCfg, f.lastCrd = req.Config, req.Credential
	docs := append([]domain.SourceDocument(nil), f.docs...)
	pullErr, block := f.err, f.block
	f.mu.Unlock()

	out := make(chan domain.SourceDocument)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		if block != nil {
			select {
			case <-block:
			case <-ctx.Done():
				return
			}
		}
		for _, doc := range docs {
			select {
			case out <- doc:
			case <-ctx.Done():
				return
			}
		}
		if pullErr != nil {
			errs <- pullErr
		}
	}()
	return out, errs
}

func (f *fakeDriver) setDocs(docs ...domain.SourceDocument) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = docs
}

func (f *fakeDriver) pullCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulls
}

type fakeFactory struct {
	driver driven.Connector
}

func (f fakeFactory) Driver(source domain.DocumentSource) (driven.Connector, error) {
	if f.driver == nil || source != f.driver.Source() {
		return nil, domain.ErrUnsupportedSource
	}
	return f.driver, nil
}

func (f fakeFactory) Sources() []domain.DocumentSource {
	return []domain.DocumentSource{domain.SourceFile}
}

type harness struct {
	store    *memory.Store
	driver   *fakeDriver
	vector   *indexmem.Index
	keyword  *indexmem.Index
	creds    *CredentialService
	conns    *ConnectorService
	pairs    *PairService
	attempts *AttemptService
	indexer  *IndexingRunner
	deleter  *DeletionRunner
	clock    *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.NewStore(memory.WithClock(clock.Now))
	driver := &fakeDriver{}
	vector := indexmem.New(domain.StoreVector)
	keyword := indexmem.New(domain.StoreKeyword)

	pipeline, err := postprocessors.NewDefaultPipeline(8, 0)
	require.NoError(t, err)

	h := &harness{
		store:    store,
		driver:   driver,
		vector:   vector,
		keyword:  keyword,
		creds:    NewCredentialService(store.CredentialStore(), nil),
		conns:    NewConnectorService(store.ConnectorStore(), nil),
		pairs:    NewPairService(store.PairStore(), nil),
		attempts: NewAttemptService(store.AttemptStore(), nil),
		clock:    clock,
	}
	h.pairs.now = clock.Now
	h.indexer = NewIndexingRunner(IndexingDeps{
		Pairs:       store.PairStore(),
		Connectors:  store.ConnectorStore(),
		Attempts:    store.AttemptStore(),
		Documents:   store.DocumentStore(),
		Chunks:      store.ChunkStore(),
		Factory:     fakeFactory{driver: driver},
		Credentials: h.creds,
		Pipeline:    pipeline,
		Indexes:     []driven.DocumentIndex{vector, keyword},
		Workers:     2,
	})
	h.deleter = NewDeletionRunner(DeletionDeps{
		Attempts:  store.AttemptStore(),
		Documents: store.DocumentStore(),
		Chunks:    store.ChunkStore(),
		Indexes:   []driven.DocumentIndex{vector, keyword},
	})
	return h
}

// bind creates a poll connector, a credential and binds them.
func (h *harness) bind(t *testing.T, connector *domain.Connector) domain.PairKey {
	t.Helper()
	ctx := context.Background()

	if connector == nil {
		connector = &domain.Connector{}
	}
	if connector.Name == "" {
		connector.Name = "docs"
	}
	if connector.Source == "" {
		connector.Source = domain.SourceFile
	}
	if connector.InputType == "" {
		connector.InputType = domain.InputPoll
	}
	if connector.Config == nil {
		connector.Config = json.RawMessage(`{"root":"/tmp"}`)
	}
	_, err := h.conns.Create(ctx, connector)
	require.NoError(t, err)

	cred, err := h.creds.Create(ctx, domain.Actor{Admin: true}, json.RawMessage(`{"token":"x"}`), false)
	require.NoError(t, err)

	pair, err := h.pairs.Bind(ctx, connector.ID, cred.ID)
	require.NoError(t, err)
	return pair.PairKey
}

// bindSecond binds a new credential to an existing connector.
func (h *harness) bindSecond(t *testing.T, connectorID int64) domain.PairKey {
	t.Helper()
	ctx := context.Background()
	cred, err := h.creds.Create(ctx, domain.Actor{Admin: true}, json.RawMessage(`{}`), false)
	require.NoError(t, err)
	pair, err := h.pairs.Bind(ctx, connectorID, cred.ID)
	require.NoError(t, err)
	return pair.PairKey
}

func doc(id, content string) domain.SourceDocument {
	return domain.SourceDocument{ID: id, Content: content, Title: id}
}

func ptr[T any](v T) *T { return &v }
