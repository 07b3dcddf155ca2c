package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// AttemptService tracks index and deletion attempts.
type AttemptService interface {
	// Create records a NotStarted attempt for a bound pair.
	Create(ctx context.Context, kind domain.AttemptKind, key domain.PairKey) (*domain.Attempt, error)

	// Start moves an attempt to InProgress.
	// Returns domain.ErrConcurrentAttemptExists if the pair is held.
	Start(ctx context.Context, kind domain.AttemptKind, id int64) (*domain.Attempt, error)

	// Begin creates and starts an attempt atomically.
	Begin(ctx context.Context, kind domain.AttemptKind, key domain.PairKey) (*domain.Attempt, error)

	// Succeed completes an InProgress attempt as Success.
	Succeed(ctx context.Context, kind domain.AttemptKind, id int64, numDocsDeleted int) (*domain.Attempt, error)

	// Fail completes an InProgress attempt as Failed with cause.
	Fail(ctx context.Context, kind domain.AttemptKind, id int64, cause error) (*domain.Attempt, error)

	// MarkFailed is the administrative override for a stuck InProgress attempt.
	MarkFailed(ctx context.Context, kind domain.AttemptKind, id int64, reason string) (*domain.Attempt, error)

	// Get retrieves an attempt.
	Get(ctx context.Context, kind domain.AttemptKind, id int64) (*domain.Attempt, error)

	// ListForPair returns a pair's attempts newest first.
	ListForPair(ctx context.Context, kind domain.AttemptKind, key domain.PairKey, limit int) ([]domain.Attempt, error)

	// ListInProgress returns every InProgress attempt of a kind.
	ListInProgress(ctx context.Context, kind domain.AttemptKind) ([]domain.Attempt, error)

	// Holder returns the lease on a pair, or domain.ErrNotFound if it is free.
	Holder(ctx context.Context, key domain.PairKey) (*domain.PairLease, error)
}
