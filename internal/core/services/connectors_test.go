package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func TestConnectorService_CreateValidates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		connector domain.Connector
	}{
		{"missing name", domain.Connector{Source: domain.SourceFile, InputType: domain.InputPoll, Config: json.RawMessage(`{}`)}},
		{"unknown source", domain.Connector{Name: "x", Source: "ftp", InputType: domain.InputPoll, Config: json.RawMessage(`{}`)}},
		{"unknown input type", domain.Connector{Name: "x", Source: domain.SourceFile, InputType: "stream", Config: json.RawMessage(`{}`)}},
		{"config not object", domain.Connector{Name: "x", Source: domain.SourceFile, InputType: domain.InputPoll, Config: json.RawMessage(`[]`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.connector
			_, err := h.conns.Create(ctx, &c)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	list, err := h.conns.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConnectorService_SetDisabled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)

	c, err := h.conns.SetDisabled(ctx, key.ConnectorID, true)
	require.NoError(t, err)
	assert.True(t, c.Disabled)

	got, err := h.conns.Get(ctx, key.ConnectorID)
	require.NoError(t, err)
	assert.True(t, got.Disabled)

	c, err = h.conns.SetDisabled(ctx, key.ConnectorID, false)
	require.NoError(t, err)
	assert.False(t, c.Disabled)

	_, err = h.conns.SetDisabled(ctx, 404, true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConnectorService_UpdateAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)

	c, err := h.conns.Get(ctx, key.ConnectorID)
	require.NoError(t, err)
	c.Name = "renamed"
	_, err = h.conns.Update(ctx, c)
	require.NoError(t, err)

	got, err := h.conns.Get(ctx, key.ConnectorID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	c.Name = ""
	_, err = h.conns.Update(ctx, c)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.ErrorIs(t, h.conns.Delete(ctx, key.ConnectorID), domain.ErrConnectorInUse)
	require.NoError(t, h.pairs.Unbind(ctx, key))
	require.NoError(t, h.conns.Delete(ctx, key.ConnectorID))
	_, err = h.conns.Get(ctx, key.ConnectorID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
