package domain

import (
	"encoding/json"
	"time"
)

// Credential is an opaque secret payload used by a connector to reach its source.
// The core never interprets Payload; it is handed to the connector driver as is.
type Credential struct {
	// ID is the store-assigned identifier.
	ID int64

	// Payload is the connector-specific secret material (tokens, keys).
	Payload json.RawMessage

	// UserID is the owning user. Nil for credentials created by an admin
	// without an owner. The owner is a weak reference; users live elsewhere.
	UserID *string

	// Public makes the credential visible to every user.
	Public bool

	// CreatedAt is when the credential was created.
	CreatedAt time.Time

	// UpdatedAt is when the credential was last updated.
	UpdatedAt time.Time
}

// Actor identifies who is performing a credential mutation.
type Actor struct {
	// UserID is the acting user. Nil for system callers.
	UserID *string

	// Admin bypasses ownership checks.
	Admin bool
}

// CanMutate reports whether the actor may update or delete the credential.
// Only the owner or an admin may mutate a credential.
func (c *Credential) CanMutate(actor Actor) bool {
	if actor.Admin {
		return true
	}
	if c.UserID == nil || actor.UserID == nil {
		return false
	}
	return *c.UserID == *actor.UserID
}

// VisibleTo reports whether the actor may see the credential.
func (c *Credential) VisibleTo(actor Actor) bool {
	return c.Public || c.CanMutate(actor)
}

// Validate checks the payload is a JSON object.
func (c *Credential) Validate() error {
	return validateJSONObject(c.Payload, "credential payload")
}
