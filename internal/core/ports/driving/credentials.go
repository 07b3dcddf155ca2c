package driving

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// CredentialService manages credentials on behalf of an actor.
type CredentialService interface {
	// Create stores a new credential owned by the actor.
	Create(ctx context.Context, actor domain.Actor, payload json.RawMessage, public bool) (*domain.Credential, error)

	// Get retrieves a credential visible to the actor.
	Get(ctx context.Context, actor domain.Actor, id int64) (*domain.Credential, error)

	// List returns the credentials visible to the actor.
	List(ctx context.Context, actor domain.Actor) ([]domain.Credential, error)

	// Update changes the payload and/or visibility. Nil fields are left alone.
	// Returns domain.ErrForbidden unless the actor owns the credential or is an admin.
	Update(ctx context.Context, actor domain.Actor, id int64, payload json.RawMessage, public *bool) (*domain.Credential, error)

	// Delete removes a credential.
	// Returns domain.ErrForbidden or domain.ErrCredentialInUse.
	Delete(ctx context.Context, actor domain.Actor, id int64) error
}
