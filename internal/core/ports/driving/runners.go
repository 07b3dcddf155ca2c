package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// IndexResult summarises one index run.
type IndexResult struct {
	// Attempt is the completed attempt.
	Attempt *domain.Attempt

	// DocsIndexed is how many documents were fully written.
	DocsIndexed int

	// ChunksWritten counts chunk rows recorded across store types.
	ChunksWritten int

	// StaleChunksRemoved counts chunk rows dropped because a document shrank.
	StaleChunksRemoved int
}

// IndexingService runs index attempts.
type IndexingService interface {
	// Run performs one index attempt for the pair. The returned result is
	// non-nil whenever an attempt was started, including on failure.
	Run(ctx context.Context, key domain.PairKey) (*IndexResult, error)
}

// DeletionResult summarises one deletion run.
type DeletionResult struct {
	// Attempt is the completed attempt.
	Attempt *domain.Attempt

	// DocsDetached counts documents only detached because other pairs still attribute them.
	DocsDetached int

	// DocsPurged counts documents whose chunks and row were removed,
	// including unattributed leftovers of earlier runs.
	DocsPurged int

	// ChunksDeleted counts chunk rows removed across store types.
	ChunksDeleted int

	// FailedDocs lists documents kept because a physical delete failed.
	// They keep no attribution and are retried by the next deletion run.
	FailedDocs []string
}

// DeletionService runs deletion attempts.
type DeletionService interface {
	// Run performs one deletion attempt for the pair.
	Run(ctx context.Context, key domain.PairKey) (*DeletionResult, error)
}

// SchedulerService runs index attempts on connector refresh intervals.
type SchedulerService interface {
	// Start begins the background loop.
	Start(ctx context.Context) error

	// Stop halts the loop and waits for in-flight runs.
	Stop()

	// RunOnce performs a single scheduling pass and returns the pairs started.
	RunOnce(ctx context.Context) ([]domain.PairKey, error)

	// IsRunning reports whether the loop is active.
	IsRunning() bool
}
