package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// CredentialStore persists credentials.
type CredentialStore interface {
	// Create inserts the credential and sets its ID and timestamps.
	Create(ctx context.Context, cred *domain.Credential) error

	// Get retrieves a credential by ID.
	// Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id int64) (*domain.Credential, error)

	// Update replaces payload, owner and visibility, and stamps UpdatedAt.
	// Returns domain.ErrNotFound if absent.
	Update(ctx context.Context, cred *domain.Credential) error

	// Delete removes a credential.
	// Returns domain.ErrCredentialInUse while pairs or attributions reference it.
	Delete(ctx context.Context, id int64) error

	// List returns all credentials ordered by ID.
	List(ctx context.Context) ([]domain.Credential, error)
}
