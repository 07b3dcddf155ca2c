package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// PairStore persists connector-credential pairs.
type PairStore interface {
	// Create inserts a new pair.
	// Returns domain.ErrAlreadyBound if the pair exists and
	// domain.ErrNotFound if the connector or credential is missing.
	Create(ctx context.Context, pair *domain.Pair) error

	// Get retrieves a pair.
	// Returns domain.ErrNotBound if absent.
	Get(ctx context.Context, key domain.PairKey) (*domain.Pair, error)

	// Update applies fn to the current pair and saves the result in one
	// transaction. Nothing is written if fn returns an error.
	Update(ctx context.Context, key domain.PairKey, fn func(*domain.Pair) error) (*domain.Pair, error)

	// Delete removes the pair row only.
	// Returns domain.ErrNotBound if absent and domain.ErrHasLiveAttempt while
	// any attempt holds the pair. The checks and the delete are atomic.
	Delete(ctx context.Context, key domain.PairKey) error

	// List returns all pairs ordered by connector then credential.
	List(ctx context.Context) ([]domain.Pair, error)

	// ListForConnector returns the pairs of one connector.
	ListForConnector(ctx context.Context, connectorID int64) ([]domain.Pair, error)
}
