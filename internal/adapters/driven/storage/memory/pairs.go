package memory

import (
	"context"
	"sort"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.PairStore = (*pairStore)(nil)

type pairStore struct {
	store *Store
}

func (p *pairStore) Create(_ context.Context, pair *domain.Pair) error {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connectors[pair.ConnectorID]; !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.credentials[pair.CredentialID]; !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.pairs[pair.PairKey]; ok {
		return domain.ErrAlreadyBound
	}
	pair.CreatedAt = s.clock()
	s.pairs[pair.PairKey] = clonePair(*pair)
	return nil
}

func (p *pairStore) Get(_ context.Context, key domain.PairKey) (*domain.Pair, error) {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()

	pair, ok := s.pairs[key]
	if !ok {
		return nil, domain.ErrNotBound
	}
	out := clonePair(pair)
	return &out, nil
}

func (p *pairStore) Update(_ context.Context, key domain.PairKey, fn func(*domain.Pair) error) (*domain.Pair, error) {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()

	pair, ok := s.pairs[key]
	if !ok {
		return nil, domain.ErrNotBound
	}
	working := clonePair(pair)
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.PairKey = key
	s.pairs[key] = clonePair(working)
	return &working, nil
}

func (p *pairStore) Delete(_ context.Context, key domain.PairKey) error {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pairs[key]; !ok {
		return domain.ErrNotBound
	}
	if _, held := s.leases[key]; held {
		return domain.ErrHasLiveAttempt
	}
	delete(s.pairs, key)
	return nil
}

func (p *pairStore) List(_ context.Context) ([]domain.Pair, error) {
	return p.list(func(domain.PairKey) bool { return true }), nil
}

func (p *pairStore) ListForConnector(_ context.Context, connectorID int64) ([]domain.Pair, error) {
	return p.list(func(k domain.PairKey) bool { return k.ConnectorID == connectorID }), nil
}

func (p *pairStore) list(keep func(domain.PairKey) bool) []domain.Pair {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Pair, 0, len(s.pairs))
	for key, pair := range s.pairs {
		if keep(key) {
			out = append(out, clonePair(pair))
		}
	}
	sortPairs(out)
	return out
}

func sortPairs(pairs []domain.Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		return lessKey(pairs[i].PairKey, pairs[j].PairKey)
	})
}

func lessKey(a, b domain.PairKey) bool {
	if a.ConnectorID != b.ConnectorID {
		return a.ConnectorID < b.ConnectorID
	}
	return a.CredentialID < b.CredentialID
}
