package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.AttemptStore = (*attemptStore)(nil)

type attemptStore struct {
	store *Store
}

func checkKind(kind domain.AttemptKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown attempt kind %q", domain.ErrInvalidInput, kind)
	}
	return nil
}

func (a *attemptStore) Create(_ context.Context, kind domain.AttemptKind, key domain.PairKey) (*domain.Attempt, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, err := s.insertAttempt(kind, key)
	if err != nil {
		return nil, err
	}
	out := cloneAttempt(*attempt)
	return &out, nil
}

func (a *attemptStore) Begin(_ context.Context, kind domain.AttemptKind, key domain.PairKey) (*domain.Attempt, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pairs[key]; !ok {
		return nil, domain.ErrNotBound
	}
	if _, held := s.leases[key]; held {
		return nil, domain.ErrConcurrentAttemptExists
	}
	attempt, err := s.insertAttempt(kind, key)
	if err != nil {
		return nil, err
	}
	if err := s.startAttempt(attempt); err != nil {
		return nil, err
	}
	out := cloneAttempt(*attempt)
	return &out, nil
}

func (a *attemptStore) Start(_ context.Context, kind domain.AttemptKind, id int64) (*domain.Attempt, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.attempts[kind][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	attempt := cloneAttempt(existing)
	if err := s.startAttempt(&attempt); err != nil {
		return nil, err
	}
	out := cloneAttempt(attempt)
	return &out, nil
}

func (a *attemptStore) Complete(_ context.Context, kind domain.AttemptKind, id int64, outcome domain.Outcome) (*domain.Attempt, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.attempts[kind][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	attempt := cloneAttempt(existing)
	if err := attempt.Complete(s.clock(), outcome); err != nil {
		return nil, err
	}
	s.attempts[kind][id] = cloneAttempt(attempt)
	if key, ok := attempt.Pair(); ok {
		if lease, held := s.leases[key]; held && lease.Kind == kind && lease.AttemptID == id {
			delete(s.leases, key)
		}
	}
	return &attempt, nil
}

func (a *attemptStore) Get(_ context.Context, kind domain.AttemptKind, id int64) (*domain.Attempt, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[kind][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneAttempt(attempt)
	return &out, nil
}

func (a *attemptStore) ListForPair(_ context.Context, kind domain.AttemptKind, key domain.PairKey, limit int) ([]domain.Attempt, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	out := a.store.listAttempts(kind, func(at *domain.Attempt) bool {
		k, ok := at.Pair()
		return ok && k == key
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *attemptStore) ListInProgress(_ context.Context, kind domain.AttemptKind) ([]domain.Attempt, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	out := a.store.listAttempts(kind, func(at *domain.Attempt) bool {
		return at.Status == domain.StatusInProgress
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (a *attemptStore) Holder(_ context.Context, key domain.PairKey) (*domain.PairLease, error) {
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()

	lease, ok := s.leases[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &lease, nil
}

// insertAttempt adds a NotStarted attempt. Caller holds s.mu.
func (s *Store) insertAttempt(kind domain.AttemptKind, key domain.PairKey) (*domain.Attempt, error) {
	if _, ok := s.pairs[key]; !ok {
		return nil, domain.ErrNotBound
	}
	s.nextAttemptID[kind]++
	attempt := domain.NewAttempt(kind, key, s.clock())
	attempt.ID = s.nextAttemptID[kind]
	s.attempts[kind][attempt.ID] = cloneAttempt(*attempt)
	return attempt, nil
}

// startAttempt transitions the attempt and takes the pair lease.
// Nothing is written on error. Caller holds s.mu.
func (s *Store) startAttempt(attempt *domain.Attempt) error {
	now := s.clock()
	if err := attempt.Start(now); err != nil {
		return err
	}
	key, ok := attempt.Pair()
	if !ok {
		return domain.ErrNotBound
	}
	if _, bound := s.pairs[key]; !bound {
		return domain.ErrNotBound
	}
	if _, held := s.leases[key]; held {
		return domain.ErrConcurrentAttemptExists
	}
	s.leases[key] = domain.PairLease{
		PairKey:    key,
		Kind:       attempt.Kind,
		AttemptID:  attempt.ID,
		AcquiredAt: now,
	}
	s.attempts[attempt.Kind][attempt.ID] = cloneAttempt(*attempt)
	return nil
}

func (s *Store) listAttempts(kind domain.AttemptKind, keep func(*domain.Attempt) bool) []domain.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Attempt, 0)
	for _, attempt := range s.attempts[kind] {
		if keep(&attempt) {
			out = append(out, cloneAttempt(attempt))
		}
	}
	return out
}
