package memory

import (
	"context"
	"sort"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.CredentialStore = (*credentialStore)(nil)

type credentialStore struct {
	store *Store
}

func cloneCredential(c domain.Credential) domain.Credential {
	c.Payload = cloneRaw(c.Payload)
	if c.UserID != nil {
		u := *c.UserID
		c.UserID = &u
	}
	return c
}

func (c *credentialStore) Create(_ context.Context, cred *domain.Credential) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCredentialID++
	now := s.clock()
	cred.ID = s.nextCredentialID
	cred.CreatedAt = now
	cred.UpdatedAt = now
	s.credentials[cred.ID] = cloneCredential(*cred)
	return nil
}

func (c *credentialStore) Get(_ context.Context, id int64) (*domain.Credential, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneCredential(cred)
	return &out, nil
}

func (c *credentialStore) Update(_ context.Context, cred *domain.Credential) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.credentials[cred.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cred.CreatedAt = existing.CreatedAt
	cred.UpdatedAt = s.clock()
	s.credentials[cred.ID] = cloneCredential(*cred)
	return nil
}

func (c *credentialStore) Delete(_ context.Context, id int64) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[id]; !ok {
		return domain.ErrNotFound
	}
	for key := range s.pairs {
		if key.CredentialID == id {
			return domain.ErrCredentialInUse
		}
	}
	for _, pairs := range s.attributions {
		for key := range pairs {
			if key.CredentialID == id {
				return domain.ErrCredentialInUse
			}
		}
	}

	delete(s.credentials, id)
	s.detachAttempts(func(a *domain.Attempt) bool {
		return a.CredentialID != nil && *a.CredentialID == id
	}, func(a *domain.Attempt) {
		a.CredentialID = nil
	})
	return nil
}

func (c *credentialStore) List(_ context.Context) ([]domain.Credential, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Credential, 0, len(s.credentials))
	for _, cred := range s.credentials {
		out = append(out, cloneCredential(cred))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// detachAttempts applies the parent-deletion rules: index attempts keep
// their history with the parent cleared, deletion attempts are removed.
// Caller holds s.mu.
func (s *Store) detachAttempts(match func(*domain.Attempt) bool, clear func(*domain.Attempt)) {
	for id, a := range s.attempts[domain.KindIndex] {
		if match(&a) {
			clear(&a)
			s.attempts[domain.KindIndex][id] = a
		}
	}
	for id, a := range s.attempts[domain.KindDeletion] {
		if match(&a) {
			delete(s.attempts[domain.KindDeletion], id)
		}
	}
}
