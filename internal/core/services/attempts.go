package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure AttemptService implements the interface.
var _ driving.AttemptService = (*AttemptService)(nil)

// errUnknown stands in when a failure is reported without a cause.
var errUnknown = errors.New("unknown error")

// AttemptService tracks index and deletion attempts.
type AttemptService struct {
	store driven.AttemptStore
	log   *logger.Logger
}

// NewAttemptService creates a new attempt service.
func NewAttemptService(store driven.AttemptStore, log *logger.Logger) *AttemptService {
	if log == nil {
		log = logger.Nop()
	}
	return &AttemptService{store: store, log: log}
}

// Create records a NotStarted attempt.
func (s *AttemptService) Create(ctx context.Context, kind domain.AttemptKind, key domain.PairKey) (*domain.Attempt, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, kind, key)
}

// Start moves an attempt to InProgress.
func (s *AttemptService) Start(ctx context.Context, kind domain.AttemptKind, id int64) (*domain.Attempt, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	return s.store.Start(ctx, kind, id)
}

// Begin creates and starts an attempt atomically.
func (s *AttemptService) Begin(ctx context.Context, kind domain.AttemptKind, key domain.PairKey) (*domain.Attempt, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	return s.store.Begin(ctx, kind, key)
}

// Succeed completes an attempt as Success.
func (s *AttemptService) Succeed(ctx context.Context, kind domain.AttemptKind, id int64, numDocsDeleted int) (*domain.Attempt, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	return s.store.Complete(ctx, kind, id, domain.Outcome{NumDocsDeleted: numDocsDeleted})
}

// Fail completes an attempt as Failed.
func (s *AttemptService) Fail(ctx context.Context, kind domain.AttemptKind, id int64, cause error) (*domain.Attempt, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	if cause == nil {
		cause = errUnknown
	}
	return s.store.Complete(ctx, kind, id, domain.Outcome{Err: cause})
}

// MarkFailed fails a stuck InProgress attempt and releases its pair.
func (s *AttemptService) MarkFailed(ctx context.Context, kind domain.AttemptKind, id int64, reason string) (*domain.Attempt, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "marked failed by operator"
	}
	attempt, err := s.Fail(ctx, kind, id, errors.New(reason))
	if err != nil {
		return nil, err
	}
	s.log.Warn("attempt marked failed", "kind", string(kind), "attempt_id", id, "reason", reason)
	return attempt, nil
}

// Get retrieves an attempt.
func (s *AttemptService) Get(ctx context.Context, kind domain.AttemptKind, id int64) (*domain.Attempt, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, kind, id)
}

// ListForPair returns a pair's attempts newest first.
func (s *AttemptService) ListForPair(ctx context.Context, kind domain.AttemptKind, key domain.PairKey, limit int) ([]domain.Attempt, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	return s.store.ListForPair(ctx, kind, key, limit)
}

// ListInProgress returns every InProgress attempt of a kind.
func (s *AttemptService) ListInProgress(ctx context.Context, kind domain.AttemptKind) ([]domain.Attempt, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	return s.store.ListInProgress(ctx, kind)
}

// Holder returns the lease on a pair.
func (s *AttemptService) Holder(ctx context.Context, key domain.PairKey) (*domain.PairLease, error) {
	return s.store.Holder(ctx, key)
}

func validKind(kind domain.AttemptKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown attempt kind %q", domain.ErrInvalidInput, kind)
	}
	return nil
}
