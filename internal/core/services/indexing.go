package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure IndexingRunner implements the interface.
var _ driving.IndexingService = (*IndexingRunner)(nil)

// DefaultWorkers bounds parallel chunk writes per document and store.
const DefaultWorkers = 4

// IndexingDeps are the collaborators of an IndexingRunner.
type IndexingDeps struct {
	Pairs       driven.PairStore
	Connectors  driven.ConnectorStore
	Attempts    driven.AttemptStore
	Documents   driven.DocumentStore
	Chunks      driven.ChunkStore
	Factory     driven.ConnectorFactory
	Credentials driven.CredentialProvider
	Pipeline    driven.ChunkPipeline

	// Indexes are the physical stores every document is written to.
	Indexes []driven.DocumentIndex

	// Workers bounds parallel writes. Zero uses DefaultWorkers.
	Workers int

	Logger *logger.Logger
}

// IndexingRunner performs index attempts: pull from the connector, chunk,
// write to every store and record attribution and chunk rows.
type IndexingRunner struct {
	deps    IndexingDeps
	pairs   *PairService
	workers int
	log     *logger.Logger
}

// NewIndexingRunner creates an indexing runner.
func NewIndexingRunner(deps IndexingDeps) *IndexingRunner {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &IndexingRunner{
		deps:    deps,
		pairs:   NewPairService(deps.Pairs, log),
		workers: workers,
		log:     log,
	}
}

// Run performs one index attempt for the pair.
//
// Work committed before a failure is kept. A failed run leaves the
// watermark where it was so the next run pulls the same window again.
func (r *IndexingRunner) Run(ctx context.Context, key domain.PairKey) (*driving.IndexResult, error) {
	pair, err := r.deps.Pairs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	connector, err := r.deps.Connectors.Get(ctx, key.ConnectorID)
	if err != nil {
		return nil, fmt.Errorf("get connector %d: %w", key.ConnectorID, err)
	}
	if connector.Disabled {
		return nil, fmt.Errorf("%w: connector %d", domain.ErrConnectorDisabled, connector.ID)
	}
	if connector.InputType == domain.InputEvent {
		return nil, fmt.Errorf("%w: event connector %d cannot be pulled", domain.ErrInvalidInput, connector.ID)
	}
	driver, err := r.deps.Factory.Driver(connector.Source)
	if err != nil {
		return nil, err
	}

	attempt, err := r.deps.Attempts.Begin(ctx, domain.KindIndex, key)
	if err != nil {
		return nil, err
	}

	log := r.log.With(
		"run_id", uuid.NewString(),
		"attempt_id", attempt.ID,
		"connector_id", key.ConnectorID,
		"credential_id", key.CredentialID,
	)
	log.Info("index attempt started", "source", string(connector.Source))

	result := &driving.IndexResult{Attempt: attempt}
	runErr := r.pull(ctx, log, driver, connector, pair, result)

	// Completion must land even when the caller's context is gone, or the
	// pair stays held until an operator intervenes.
	finishCtx := context.WithoutCancel(ctx)
	completed, err := r.deps.Attempts.Complete(finishCtx, domain.KindIndex, attempt.ID, domain.Outcome{Err: runErr})
	if err != nil {
		return result, errors.Join(runErr, fmt.Errorf("complete attempt %d: %w", attempt.ID, err))
	}
	result.Attempt = completed

	if runErr != nil {
		if _, err := r.pairs.RecordFailure(finishCtx, key); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("record failure: %w", err))
		}
		log.Error("index attempt failed", "error", runErr, "docs_indexed", result.DocsIndexed)
		return result, runErr
	}

	if _, err := r.pairs.RecordSuccess(finishCtx, key, completed.UpdatedAt, result.DocsIndexed); err != nil {
		return result, fmt.Errorf("record success: %w", err)
	}
	log.Info("index attempt succeeded",
		"docs_indexed", result.DocsIndexed,
		"chunks_written", result.ChunksWritten,
		"stale_chunks_removed", result.StaleChunksRemoved,
	)
	return result, nil
}

func (r *IndexingRunner) pull(
	ctx context.Context,
	log *logger.Logger,
	driver driven.Connector,
	connector *domain.Connector,
	pair *domain.Pair,
	result *driving.IndexResult,
) error {
	credential, err := r.deps.Credentials.Resolve(ctx, pair.CredentialID)
	if err != nil {
		return fmt.Errorf("resolve credential: %w", err)
	}

	req := driven.PullRequest{Config: connector.Config, Credential: credential}
	if connector.InputType == domain.InputPoll && pair.LastSuccessfulIndexTime != nil {
		since := *pair.LastSuccessfulIndexTime
		req.Since = &since
	}

	pullCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	docs, errs := driver.Pull(pullCtx, req)

	for docs != nil || errs != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return fmt.Errorf("connector error: %w", err)
			}

		case doc, ok := <-docs:
			if !ok {
				docs = nil
				continue
			}
			log.Debug("indexing document", "document_id", doc.ID)
			if err := r.indexDocument(ctx, pair.PairKey, doc, result); err != nil {
				return fmt.Errorf("document %s: %w", doc.ID, err)
			}
			result.DocsIndexed++
		}
	}
	return nil
}

// indexDocument attributes one document to the pair and brings every
// store in line with its current chunks.
func (r *IndexingRunner) indexDocument(ctx context.Context, key domain.PairKey, doc domain.SourceDocument, result *driving.IndexResult) error {
	if err := domain.ValidateDocumentID(doc.ID); err != nil {
		return err
	}
	if err := r.deps.Documents.UpsertAttribution(ctx, doc.ID, key); err != nil {
		return fmt.Errorf("attribute: %w", err)
	}
	payloads, err := r.deps.Pipeline.Process(ctx, doc)
	if err != nil {
		return fmt.Errorf("chunk: %w", err)
	}

	for _, index := range r.deps.Indexes {
		written, removed, err := r.writeStore(ctx, index, doc.ID, payloads)
		result.ChunksWritten += written
		result.StaleChunksRemoved += removed
		if err != nil {
			return fmt.Errorf("store %s: %w", index.StoreType(), err)
		}
	}
	return nil
}

// writeStore writes payloads to one store, records their rows, then drops
// rows left over from a longer previous version of the document. A stale
// row is removed only after its physical delete succeeded.
func (r *IndexingRunner) writeStore(ctx context.Context, index driven.DocumentIndex, documentID string, payloads []domain.ChunkPayload) (int, int, error) {
	storeType := index.StoreType()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, payload := range payloads {
		g.Go(func() error {
			return index.Write(gctx, payload)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, fmt.Errorf("write chunks: %w", err)
	}

	rows := make([]domain.Chunk, 0, len(payloads))
	current := make(map[string]bool, len(payloads))
	for _, payload := range payloads {
		rows = append(rows, domain.Chunk{ID: payload.ID, StoreType: storeType, DocumentID: documentID})
		current[payload.ID] = true
	}
	if len(rows) > 0 {
		if err := r.deps.Chunks.PutBatch(ctx, rows); err != nil {
			return 0, 0, fmt.Errorf("record chunks: %w", err)
		}
	}

	existing, err := r.deps.Chunks.ListForDocument(ctx, documentID, storeType)
	if err != nil {
		return len(rows), 0, fmt.Errorf("list chunks: %w", err)
	}
	var stale []string
	for _, chunk := range existing {
		if !current[chunk.ID] {
			stale = append(stale, chunk.ID)
		}
	}
	if len(stale) == 0 {
		return len(rows), 0, nil
	}

	var errs []error
	deleted := make([]string, 0, len(stale))
	for _, id := range stale {
		if err := index.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("delete stale chunk %s: %w", id, err))
			continue
		}
		deleted = append(deleted, id)
	}
	removed, err := r.deps.Chunks.Delete(ctx, storeType, deleted)
	if err != nil {
		errs = append(errs, fmt.Errorf("remove stale chunk rows: %w", err))
	}
	return len(rows), removed, errors.Join(errs...)
}
