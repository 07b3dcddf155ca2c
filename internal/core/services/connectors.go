package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure ConnectorService implements the interface.
var _ driving.ConnectorService = (*ConnectorService)(nil)

// ConnectorService manages connector configuration.
type ConnectorService struct {
	store driven.ConnectorStore
	log   *logger.Logger
}

// NewConnectorService creates a new connector service.
func NewConnectorService(store driven.ConnectorStore, log *logger.Logger) *ConnectorService {
	if log == nil {
		log = logger.Nop()
	}
	return &ConnectorService{store: store, log: log}
}

// Create validates and stores a new connector.
func (s *ConnectorService) Create(ctx context.Context, connector *domain.Connector) (*domain.Connector, error) {
	if err := connector.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, connector); err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}
	s.log.Info("connector created", "connector_id", connector.ID, "source", string(connector.Source))
	return connector, nil
}

// Get retrieves a connector by ID.
func (s *ConnectorService) Get(ctx context.Context, id int64) (*domain.Connector, error) {
	return s.store.Get(ctx, id)
}

// List returns all connectors.
func (s *ConnectorService) List(ctx context.Context) ([]domain.Connector, error) {
	return s.store.List(ctx)
}

// Update validates and saves the connector.
func (s *ConnectorService) Update(ctx context.Context, connector *domain.Connector) (*domain.Connector, error) {
	if err := connector.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, connector); err != nil {
		return nil, fmt.Errorf("update connector %d: %w", connector.ID, err)
	}
	return connector, nil
}

// SetDisabled enables or disables a connector.
func (s *ConnectorService) SetDisabled(ctx context.Context, id int64, disabled bool) (*domain.Connector, error) {
	connector, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if connector.Disabled == disabled {
		return connector, nil
	}
	connector.Disabled = disabled
	if err := s.store.Update(ctx, connector); err != nil {
		return nil, fmt.Errorf("update connector %d: %w", id, err)
	}
	s.log.Info("connector toggled", "connector_id", id, "disabled", disabled)
	return connector, nil
}

// Delete removes a connector.
func (s *ConnectorService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete connector %d: %w", id, err)
	}
	s.log.Info("connector deleted", "connector_id", id)
	return nil
}
