package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// AttemptStore persists index and deletion attempts and enforces
// per-pair mutual exclusion across both kinds.
//
// A pair is held by at most one InProgress attempt of either kind. The hold
// is taken in the same transaction that moves an attempt to InProgress and
// released in the transaction that completes it.
type AttemptStore interface {
	// Create inserts a NotStarted attempt.
	// Returns domain.ErrNotBound if the pair does not exist.
	Create(ctx context.Context, kind domain.AttemptKind, key domain.PairKey) (*domain.Attempt, error)

	// Begin creates an attempt and starts it in one transaction.
	// On domain.ErrConcurrentAttemptExists nothing is created.
	Begin(ctx context.Context, kind domain.AttemptKind, key domain.PairKey) (*domain.Attempt, error)

	// Start moves a NotStarted attempt to InProgress and takes the pair.
	// Returns domain.ErrInvalidTransition, domain.ErrConcurrentAttemptExists
	// or domain.ErrNotBound.
	Start(ctx context.Context, kind domain.AttemptKind, id int64) (*domain.Attempt, error)

	// Complete moves an InProgress attempt to Success or Failed and
	// releases the pair. Returns domain.ErrInvalidTransition otherwise.
	Complete(ctx context.Context, kind domain.AttemptKind, id int64, out domain.Outcome) (*domain.Attempt, error)

	// Get retrieves an attempt.
	// Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, kind domain.AttemptKind, id int64) (*domain.Attempt, error)

	// ListForPair returns the pair's attempts newest first.
	// A limit of zero or less returns all of them.
	ListForPair(ctx context.Context, kind domain.AttemptKind, key domain.PairKey, limit int) ([]domain.Attempt, error)

	// ListInProgress returns every InProgress attempt of a kind.
	ListInProgress(ctx context.Context, kind domain.AttemptKind) ([]domain.Attempt, error)

	// Holder returns the lease currently held on the pair.
	// Returns domain.ErrNotFound if the pair is free.
	Holder(ctx context.Context, key domain.PairKey) (*domain.PairLease, error)
}
