package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// ConnectorStore persists connector configuration.
type ConnectorStore interface {
	// Create inserts the connector and sets its ID and timestamps.
	Create(ctx context.Context, connector *domain.Connector) error

	// Get retrieves a connector by ID.
	// Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id int64) (*domain.Connector, error)

	// Update replaces every mutable field and stamps UpdatedAt.
	Update(ctx context.Context, connector *domain.Connector) error

	// Delete removes a connector.
	// Returns domain.ErrConnectorInUse while pairs or attributions reference it.
	Delete(ctx context.Context, id int64) error

	// List returns all connectors ordered by ID.
	List(ctx context.Context) ([]domain.Connector, error)
}
