package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure DeletionRunner implements the interface.
var _ driving.DeletionService = (*DeletionRunner)(nil)

// DeletionDeps are the collaborators of a DeletionRunner.
type DeletionDeps struct {
	Attempts  driven.AttemptStore
	Documents driven.DocumentStore
	Chunks    driven.ChunkStore

	// Indexes are the physical stores chunks may live in.
	Indexes []driven.DocumentIndex

	// Limiter paces physical deletes. Nil means unlimited.
	Limiter *rate.Limiter

	Logger *logger.Logger
}

// DeletionRunner performs deletion attempts: every document the pair
// attributes is detached, and purged from every store when no other pair
// still attributes it. Each run also purges documents an earlier run left
// unattributed with chunks still in place.
type DeletionRunner struct {
	deps    DeletionDeps
	indexes map[domain.StoreType]driven.DocumentIndex
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewDeletionRunner creates a deletion runner.
func NewDeletionRunner(deps DeletionDeps) *DeletionRunner {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	indexes := make(map[domain.StoreType]driven.DocumentIndex, len(deps.Indexes))
	for _, index := range deps.Indexes {
		indexes[index.StoreType()] = index
	}
	return &DeletionRunner{deps: deps, indexes: indexes, limiter: limiter, log: log}
}

// Run performs one deletion attempt for the pair. Every document is tried
// even after an earlier one failed; the causes are joined.
func (r *DeletionRunner) Run(ctx context.Context, key domain.PairKey) (*driving.DeletionResult, error) {
	attempt, err := r.deps.Attempts.Begin(ctx, domain.KindDeletion, key)
	if err != nil {
		return nil, err
	}

	log := r.log.With(
		"run_id", uuid.NewString(),
		"attempt_id", attempt.ID,
		"connector_id", key.ConnectorID,
		"credential_id", key.CredentialID,
	)
	log.Info("deletion attempt started")

	result := &driving.DeletionResult{Attempt: attempt}
	var errs []error

	ids, err := r.deps.Documents.ListForPair(ctx, key)
	if err != nil {
		errs = append(errs, fmt.Errorf("list documents: %w", err))
	}
	tried := make(map[string]bool, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		tried[id] = true
		if err := r.deleteDocument(ctx, key, id, result); err != nil {
			log.Warn("document kept", "document_id", id, "error", err)
			errs = append(errs, fmt.Errorf("document %s: %w", id, err))
		}
	}
	// Leftovers swept below belong to no pair and are not counted.
	ownDeleted := result.DocsDetached + result.DocsPurged
	if ctx.Err() == nil {
		errs = append(errs, r.sweep(ctx, log, tried, result)...)
	}

	runErr := errors.Join(errs...)
	completed, err := r.deps.Attempts.Complete(context.WithoutCancel(ctx), domain.KindDeletion, attempt.ID, domain.Outcome{
		Err:            runErr,
		NumDocsDeleted: ownDeleted,
	})
	if err != nil {
		return result, errors.Join(runErr, fmt.Errorf("complete attempt %d: %w", attempt.ID, err))
	}
	result.Attempt = completed

	if runErr != nil {
		log.Error("deletion attempt failed", "error", runErr, "failed_docs", len(result.FailedDocs))
		return result, runErr
	}
	log.Info("deletion attempt succeeded",
		"docs_detached", result.DocsDetached,
		"docs_purged", result.DocsPurged,
		"chunks_deleted", result.ChunksDeleted,
	)
	return result, nil
}

func (r *DeletionRunner) deleteDocument(ctx context.Context, key domain.PairKey, documentID string, result *driving.DeletionResult) error {
	detached, err := r.deps.Documents.Detach(ctx, documentID, key)
	if err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	switch {
	case detached.Deleted:
		result.DocsPurged++
		return nil
	case detached.Remaining > 0:
		result.DocsDetached++
		return nil
	}
	return r.purgeDocument(ctx, documentID, result)
}

// sweep purges unattributed documents not already handled by this run.
func (r *DeletionRunner) sweep(ctx context.Context, log *logger.Logger, tried map[string]bool, result *driving.DeletionResult) []error {
	ids, err := r.deps.Documents.ListUnattributed(ctx)
	if err != nil {
		return []error{fmt.Errorf("list unattributed documents: %w", err)}
	}
	var errs []error
	for _, id := range ids {
		if tried[id] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}
		log.Info("purging leftover document", "document_id", id)
		if err := r.purgeDocument(ctx, id, result); err != nil {
			log.Warn("document kept", "document_id", id, "error", err)
			errs = append(errs, fmt.Errorf("document %s: %w", id, err))
		}
	}
	return errs
}

// purgeDocument removes the chunks of a document no pair attributes, then
// its row. Until then UpsertAttribution refuses the document, so no new
// chunk rows can appear underneath the purge.
func (r *DeletionRunner) purgeDocument(ctx context.Context, documentID string, result *driving.DeletionResult) error {
	removed, err := r.purgeChunks(ctx, documentID)
	result.ChunksDeleted += removed
	if err != nil {
		result.FailedDocs = append(result.FailedDocs, documentID)
		return err
	}
	if _, err := r.deps.Documents.Prune(ctx, documentID); err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	result.DocsPurged++
	return nil
}

// purgeChunks deletes a document's chunks from every store it has rows in.
// Rows are removed only for chunks whose physical delete succeeded.
func (r *DeletionRunner) purgeChunks(ctx context.Context, documentID string) (int, error) {
	storeTypes, err := r.deps.Chunks.StoreTypesForDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("list store types: %w", err)
	}

	var errs []error
	removed := 0
	for _, storeType := range storeTypes {
		n, err := r.purgeStore(ctx, documentID, storeType)
		removed += n
		if err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", storeType, err))
		}
	}
	return removed, errors.Join(errs...)
}

func (r *DeletionRunner) purgeStore(ctx context.Context, documentID string, storeType domain.StoreType) (int, error) {
	index, ok := r.indexes[storeType]
	if !ok {
		return 0, fmt.Errorf("%w: no driver configured", domain.ErrUnknownStoreType)
	}
	chunks, err := r.deps.Chunks.ListForDocument(ctx, documentID, storeType)
	if err != nil {
		return 0, fmt.Errorf("list chunks: %w", err)
	}

	var errs []error
	deleted := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if err := r.limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if err := index.Delete(ctx, chunk.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete chunk %s: %w", chunk.ID, err))
			continue
		}
		deleted = append(deleted, chunk.ID)
	}
	if len(deleted) == 0 {
		return 0, errors.Join(errs...)
	}
	removed, err := r.deps.Chunks.Delete(ctx, storeType, deleted)
	if err != nil {
		errs = append(errs, fmt.Errorf("remove chunk rows: %w", err))
	}
	return removed, errors.Join(errs...)
}
