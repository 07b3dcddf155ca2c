package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// PairService manages connector-credential pairs.
type PairService interface {
	// Bind pairs a connector with a credential.
	// Returns domain.ErrAlreadyBound if they are already paired.
	Bind(ctx context.Context, connectorID, credentialID int64) (*domain.Pair, error)

	// Unbind removes the pair row only. Documents, attributions, chunks
	// and attempt history are left alone.
	// Returns domain.ErrNotBound or domain.ErrHasLiveAttempt.
	Unbind(ctx context.Context, key domain.PairKey) error

	// RecordSuccess advances the watermark to finishedAt if it is newer,
	// adds docsIndexedDelta to the counter and sets the status to Success.
	RecordSuccess(ctx context.Context, key domain.PairKey, finishedAt time.Time, docsIndexedDelta int) (*domain.Pair, error)

	// RecordFailure sets the status to Failed. The watermark is untouched.
	RecordFailure(ctx context.Context, key domain.PairKey) (*domain.Pair, error)

	// Get retrieves a pair. Returns domain.ErrNotBound if absent.
	Get(ctx context.Context, key domain.PairKey) (*domain.Pair, error)

	// List returns all pairs.
	List(ctx context.Context) ([]domain.Pair, error)

	// ListForConnector returns the pairs of one connector.
	ListForConnector(ctx context.Context, connectorID int64) ([]domain.Pair, error)
}
