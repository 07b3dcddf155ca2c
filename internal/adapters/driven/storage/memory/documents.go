package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.DocumentStore = (*documentStore)(nil)

type documentStore struct {
	store *Store
}

func (d *documentStore) UpsertAttribution(_ context.Context, documentID string, key domain.PairKey) error {
	if err := domain.ValidateDocumentID(documentID); err != nil {
		return err
	}
	s := d.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connectors[key.ConnectorID]; !ok {
		return fmt.Errorf("connector %d: %w", key.ConnectorID, domain.ErrNotFound)
	}
	if _, ok := s.credentials[key.CredentialID]; !ok {
		return fmt.Errorf("credential %d: %w", key.CredentialID, domain.ErrNotFound)
	}
	if _, ok := s.documents[documentID]; ok && len(s.attributions[documentID]) == 0 {
		if !s.pruneDocument(documentID) {
			return fmt.Errorf("document %s: %w", documentID, domain.ErrDocumentPurging)
		}
	}
	if _, ok := s.documents[documentID]; !ok {
		s.documents[documentID] = domain.Document{ID: documentID, CreatedAt: s.clock()}
	}
	pairs, ok := s.attributions[documentID]
	if !ok {
		pairs = make(map[domain.PairKey]struct{})
		s.attributions[documentID] = pairs
	}
	pairs[key] = struct{}{}
	return nil
}

func (d *documentStore) RemoveAttribution(ctx context.Context, documentID string, key domain.PairKey) (bool, error) {
	detached, err := d.Detach(ctx, documentID, key)
	return detached.Deleted, err
}

func (d *documentStore) Detach(_ context.Context, documentID string, key domain.PairKey) (domain.Detachment, error) {
	s := d.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if pairs, ok := s.attributions[documentID]; ok {
		delete(pairs, key)
		if len(pairs) == 0 {
			delete(s.attributions, documentID)
		}
	}
	return domain.Detachment{
		Remaining: len(s.attributions[documentID]),
		Deleted:   s.pruneDocument(documentID),
	}, nil
}

func (d *documentStore) ListUnattributed(_ context.Context) ([]string, error) {
	s := d.store
	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:prealloc // size unknown until scanned
	var out []string
	for id := range s.documents {
		if len(s.attributions[id]) == 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d *documentStore) Prune(_ context.Context, documentID string) (bool, error) {
	s := d.store
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pruneDocument(documentID), nil
}

// pruneDocument deletes the document if nothing refers to it. Caller holds s.mu.
func (s *Store) pruneDocument(documentID string) bool {
	if _, ok := s.documents[documentID]; !ok {
		return false
	}
	if len(s.attributions[documentID]) > 0 {
		return false
	}
	for _, chunk := range s.chunks {
		if chunk.DocumentID == documentID {
			return false
		}
	}
	delete(s.documents, documentID)
	return true
}

func (d *documentStore) ListAttributedPairs(_ context.Context, documentID string) ([]domain.PairKey, error) {
	s := d.store
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.PairKey, 0, len(s.attributions[documentID]))
	for key := range s.attributions[documentID] {
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool { return lessKey(out[i], out[j]) })
	return out, nil
}

func (d *documentStore) Get(_ context.Context, documentID string) (*domain.Document, error) {
	s := d.store
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

func (d *documentStore) ListForPair(_ context.Context, key domain.PairKey) ([]string, error) {
	s := d.store
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.documentsForPair(key), nil
}

func (d *documentStore) CountForPair(_ context.Context, key domain.PairKey) (int, error) {
	s := d.store
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.documentsForPair(key)), nil
}

func (s *Store) documentsForPair(key domain.PairKey) []string {
	//nolint:prealloc // size unknown until scanned
	var out []string
	for docID, pairs := range s.attributions {
		if _, ok := pairs[key]; ok {
			out = append(out, docID)
		}
	}
	sort.Strings(out)
	return out
}
