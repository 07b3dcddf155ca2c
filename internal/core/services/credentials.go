package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure CredentialService implements the interfaces.
var (
	_ driving.CredentialService = (*CredentialService)(nil)
	_ driven.CredentialProvider = (*CredentialService)(nil)
)

// CredentialService manages credentials and resolves them for connector drivers.
type CredentialService struct {
	store driven.CredentialStore
	log   *logger.Logger
}

// NewCredentialService creates a new credential service.
func NewCredentialService(store driven.CredentialStore, log *logger.Logger) *CredentialService {
	if log == nil {
		log = logger.Nop()
	}
	return &CredentialService{store: store, log: log}
}

// Create stores a new credential owned by the actor.
func (s *CredentialService) Create(ctx context.Context, actor domain.Actor, payload json.RawMessage, public bool) (*domain.Credential, error) {
	cred := &domain.Credential{
		Payload: payload,
		UserID:  copyString(actor.UserID),
		Public:  public,
	}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, cred); err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}
	s.log.Info("credential created", "credential_id", cred.ID, "public", public)
	return cred, nil
}

// Get retrieves a credential visible to the actor. Credentials the actor
// cannot see are reported as not found.
func (s *CredentialService) Get(ctx context.Context, actor domain.Actor, id int64) (*domain.Credential, error) {
	cred, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cred.VisibleTo(actor) {
		return nil, domain.ErrNotFound
	}
	return cred, nil
}

// List returns the actor's own credentials plus public ones. Admins see all.
func (s *CredentialService) List(ctx context.Context, actor domain.Actor) ([]domain.Credential, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]domain.Credential, 0, len(all))
	for i := range all {
		if all[i].VisibleTo(actor) {
			visible = append(visible, all[i])
		}
	}
	return visible, nil
}

// Update changes the payload and/or visibility.
func (s *CredentialService) Update(ctx context.Context, actor domain.Actor, id int64, payload json.RawMessage, public *bool) (*domain.Credential, error) {
	cred, err := s.mutable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		cred.Payload = payload
	}
	if public != nil {
		cred.Public = *public
	}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, cred); err != nil {
		return nil, fmt.Errorf("update credential: %w", err)
	}
	s.log.Info("credential updated", "credential_id", id)
	return cred, nil
}

// Delete removes a credential that no pair or attribution references.
func (s *CredentialService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if _, err := s.mutable(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete credential %d: %w", id, err)
	}
	s.log.Info("credential deleted", "credential_id", id)
	return nil
}

// Resolve returns the opaque payload of a credential.
func (s *CredentialService) Resolve(ctx context.Context, credentialID int64) (json.RawMessage, error) {
	cred, err := s.store.Get(ctx, credentialID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("credential %d: %w", credentialID, err)
		}
		return nil, err
	}
	return cred.Payload, nil
}

func (s *CredentialService) mutable(ctx context.Context, actor domain.Actor, id int64) (*domain.Credential, error) {
	cred, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cred.CanMutate(actor) {
		if !cred.VisibleTo(actor) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: credential %d is not owned by the caller", domain.ErrForbidden, id)
	}
	return cred, nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
