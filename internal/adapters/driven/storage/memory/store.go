// Package memory provides in-memory implementations of the driven store ports.
//
// Every store handed out by a Store shares one mutex, so operations that span
// tables (attribution removal checking chunk rows, attempt starts checking the
// pair lease) are atomic the same way a database transaction would make them.
// Intended for tests and ephemeral runs.
package memory

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

type chunkKey struct {
	id        string
	storeType domain.StoreType
}

// Store holds all in-memory state.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	credentials      map[int64]domain.Credential
	nextCredentialID int64

	connectors      map[int64]domain.Connector
	nextConnectorID int64

	pairs  map[domain.PairKey]domain.Pair
	leases map[domain.PairKey]domain.PairLease

	attempts      map[domain.AttemptKind]map[int64]domain.Attempt
	nextAttemptID map[domain.AttemptKind]int64

	documents    map[string]domain.Document
	attributions map[string]map[domain.PairKey]struct{}
	chunks       map[chunkKey]domain.Chunk
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:           time.Now,
		credentials:   make(map[int64]domain.Credential),
		connectors:    make(map[int64]domain.Connector),
		pairs:         make(map[domain.PairKey]domain.Pair),
		leases:        make(map[domain.PairKey]domain.PairLease),
		attempts:      make(map[domain.AttemptKind]map[int64]domain.Attempt),
		nextAttemptID: make(map[domain.AttemptKind]int64),
		documents:     make(map[string]domain.Document),
		attributions:  make(map[string]map[domain.PairKey]struct{}),
		chunks:        make(map[chunkKey]domain.Chunk),
	}
	for _, kind := range []domain.AttemptKind{domain.KindIndex, domain.KindDeletion} {
		s.attempts[kind] = make(map[int64]domain.Attempt)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

// CredentialStore returns the credential store.
func (s *Store) CredentialStore() driven.CredentialStore {
	return &credentialStore{store: s}
}

// ConnectorStore returns the connector store.
func (s *Store) ConnectorStore() driven.ConnectorStore {
	return &connectorStore{store: s}
}

// PairStore returns the pair store.
func (s *Store) PairStore() driven.PairStore {
	return &pairStore{store: s}
}

// AttemptStore returns the attempt store.
func (s *Store) AttemptStore() driven.AttemptStore {
	return &attemptStore{store: s}
}

// DocumentStore returns the document store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// ChunkStore returns the chunk store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// Close is a no-op kept for parity with the database stores.
func (s *Store) Close() error {
	return nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clonePair(p domain.Pair) domain.Pair {
	if p.LastSuccessfulIndexTime != nil {
		t := *p.LastSuccessfulIndexTime
		p.LastSuccessfulIndexTime = &t
	}
	if p.LastAttemptStatus != nil {
		st := *p.LastAttemptStatus
		p.LastAttemptStatus = &st
	}
	return p
}

func cloneAttempt(a domain.Attempt) domain.Attempt {
	a.ConnectorID = cloneInt64(a.ConnectorID)
	a.CredentialID = cloneInt64(a.CredentialID)
	return a
}
