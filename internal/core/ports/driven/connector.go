package driven

import (
	"context"
	"encoding/json"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// PullRequest carries everything a connector driver needs for one run.
type PullRequest struct {
	// Config is the connector's opaque configuration.
	Config json.RawMessage

	// Credential is the resolved credential payload.
	Credential json.RawMessage

	// Since is the pair watermark. Nil pulls everything.
	// Load-state connectors may ignore it.
	Since *time.Time
}

// Connector pulls documents from a data source.
// Each source type implements this interface.
type Connector interface {
	// Source returns the document source this driver handles.
	Source() domain.DocumentSource

	// Validate checks the configuration and credential without pulling.
	Validate(ctx context.Context, config, credential json.RawMessage) error

	// Pull streams documents changed since req.Since.
	// The driver closes both channels when done and sends at most one error.
	// Consumers cancel ctx to stop a pull early.
	Pull(ctx context.Context, req PullRequest) (<-chan domain.SourceDocument, <-chan error)
}

// ConnectorFactory selects a connector driver by source.
type ConnectorFactory interface {
	// Driver returns the driver for source.
	// Returns domain.ErrUnsupportedSource if none is registered.
	Driver(source domain.DocumentSource) (Connector, error)

	// Sources lists the sources with a registered driver.
	Sources() []domain.DocumentSource
}

// CredentialProvider resolves a credential ID to its opaque payload.
type CredentialProvider interface {
	Resolve(ctx context.Context, credentialID int64) (json.RawMessage, error)
}
