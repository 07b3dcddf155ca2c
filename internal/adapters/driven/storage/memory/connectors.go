package memory

import (
	"context"
	"sort"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.ConnectorStore = (*connectorStore)(nil)

type connectorStore struct {
	store *Store
}

func cloneConnector(c domain.Connector) domain.Connector {
	c.Config = cloneRaw(c.Config)
	if c.RefreshFreq != nil {
		d := *c.RefreshFreq
		c.RefreshFreq = &d
	}
	return c
}

func (c *connectorStore) Create(_ context.Context, connector *domain.Connector) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextConnectorID++
	now := s.clock()
	connector.ID = s.nextConnectorID
	connector.CreatedAt = now
	connector.UpdatedAt = now
	s.connectors[connector.ID] = cloneConnector(*connector)
	return nil
}

func (c *connectorStore) Get(_ context.Context, id int64) (*domain.Connector, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	connector, ok := s.connectors[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneConnector(connector)
	return &out, nil
}

func (c *connectorStore) Update(_ context.Context, connector *domain.Connector) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.connectors[connector.ID]
	if !ok {
		return domain.ErrNotFound
	}
	connector.CreatedAt = existing.CreatedAt
	connector.UpdatedAt = s.clock()
	s.connectors[connector.ID] = cloneConnector(*connector)
	return nil
}

func (c *connectorStore) Delete(_ context.Context, id int64) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connectors[id]; !ok {
		return domain.ErrNotFound
	}
	for key := range s.pairs {
		if key.ConnectorID == id {
			return domain.ErrConnectorInUse
		}
	}
	for _, pairs := range s.attributions {
		for key := range pairs {
			if key.ConnectorID == id {
				return domain.ErrConnectorInUse
			}
		}
	}

	delete(s.connectors, id)
	s.detachAttempts(func(a *domain.Attempt) bool {
		return a.ConnectorID != nil && *a.ConnectorID == id
	}, func(a *domain.Attempt) {
		a.ConnectorID = nil
	})
	return nil
}

func (c *connectorStore) List(_ context.Context) ([]domain.Connector, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Connector, 0, len(s.connectors))
	for _, connector := range s.connectors {
		out = append(out, cloneConnector(connector))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
