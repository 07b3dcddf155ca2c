package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// ConnectorService manages connector configuration.
type ConnectorService interface {
	// Create validates and stores a new connector.
	Create(ctx context.Context, connector *domain.Connector) (*domain.Connector, error)

	// Get retrieves a connector by ID.
	Get(ctx context.Context, id int64) (*domain.Connector, error)

	// List returns all connectors.
	List(ctx context.Context) ([]domain.Connector, error)

	// Update validates and saves the connector.
	Update(ctx context.Context, connector *domain.Connector) (*domain.Connector, error)

	// SetDisabled enables or disables a connector.
	SetDisabled(ctx context.Context, id int64, disabled bool) (*domain.Connector, error)

	// Delete removes a connector. Returns domain.ErrConnectorInUse while pairs exist.
	Delete(ctx context.Context, id int64) error
}
