package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure PairService implements the interface.
var _ driving.PairService = (*PairService)(nil)

// PairService manages connector-credential pairs.
type PairService struct {
	store driven.PairStore
	log   *logger.Logger
	now   func() time.Time
}

// NewPairService creates a new pair service.
func NewPairService(store driven.PairStore, log *logger.Logger) *PairService {
	if log == nil {
		log = logger.Nop()
	}
	return &PairService{store: store, log: log, now: time.Now}
}

// Bind pairs a connector with a credential.
func (s *PairService) Bind(ctx context.Context, connectorID, credentialID int64) (*domain.Pair, error) {
	key := domain.PairKey{ConnectorID: connectorID, CredentialID: credentialID}
	pair := domain.NewPair(key, s.now().UTC())
	if err := s.store.Create(ctx, pair); err != nil {
		return nil, fmt.Errorf("bind %s: %w", key, err)
	}
	s.log.Info("pair bound", "connector_id", connectorID, "credential_id", credentialID)
	return pair, nil
}

// Unbind removes the pair row only.
func (s *PairService) Unbind(ctx context.Context, key domain.PairKey) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("unbind %s: %w", key, err)
	}
	s.log.Info("pair unbound", "connector_id", key.ConnectorID, "credential_id", key.CredentialID)
	return nil
}

// RecordSuccess records a successful index attempt finished at finishedAt.
func (s *PairService) RecordSuccess(ctx context.Context, key domain.PairKey, finishedAt time.Time, docsIndexedDelta int) (*domain.Pair, error) {
	return s.store.Update(ctx, key, func(p *domain.Pair) error {
		return p.ApplySuccess(finishedAt, docsIndexedDelta)
	})
}

// RecordFailure records a failed index attempt.
func (s *PairService) RecordFailure(ctx context.Context, key domain.PairKey) (*domain.Pair, error) {
	return s.store.Update(ctx, key, func(p *domain.Pair) error {
		p.ApplyFailure()
		return nil
	})
}

// Get retrieves a pair.
func (s *PairService) Get(ctx context.Context, key domain.PairKey) (*domain.Pair, error) {
	return s.store.Get(ctx, key)
}

// List returns all pairs.
func (s *PairService) List(ctx context.Context) ([]domain.Pair, error) {
	return s.store.List(ctx)
}

// ListForConnector returns the pairs of one connector.
func (s *PairService) ListForConnector(ctx context.Context, connectorID int64) ([]domain.Pair, error) {
	return s.store.ListForConnector(ctx, connectorID)
}
