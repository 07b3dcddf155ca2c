package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func user(id string) domain.Actor {
	return domain.Actor{UserID: &id}
}

func TestCredentialService_Ownership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob, admin := user("alice"), user("bob"), domain.Actor{Admin: true}

	private, err := h.creds.Create(ctx, alice, json.RawMessage(`{"token":"a"}`), false)
	require.NoError(t, err)
	require.NotNil(t, private.UserID)
	assert.Equal(t, "alice", *private.UserID)
	shared, err := h.creds.Create(ctx, alice, json.RawMessage(`{"token":"b"}`), true)
	require.NoError(t, err)

	t.Run("visibility", func(t *testing.T) {
		_, err := h.creds.Get(ctx, bob, private.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = h.creds.Get(ctx, bob, shared.ID)
		assert.NoError(t, err)

		list, err := h.creds.List(ctx, bob)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, shared.ID, list[0].ID)

		list, err = h.creds.List(ctx, admin)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("non-owner cannot mutate public credential", func(t *testing.T) {
		_, err := h.creds.Update(ctx, bob, shared.ID, json.RawMessage(`{"token":"x"}`), nil)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.ErrorIs(t, h.creds.Delete(ctx, bob, shared.ID), domain.ErrForbidden)
	})

	t.Run("owner updates", func(t *testing.T) {
		public := true
		got, err := h.creds.Update(ctx, alice, private.ID, nil, &public)
		require.NoError(t, err)
		assert.True(t, got.Public)
		assert.JSONEq(t, `{"token":"a"}`, string(got.Payload))
	})

	t.Run("invalid payload", func(t *testing.T) {
		_, err := h.creds.Update(ctx, admin, private.ID, json.RawMessage(`[1]`), nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("admin deletes", func(t *testing.T) {
		require.NoError(t, h.creds.Delete(ctx, admin, shared.ID))
		_, err := h.creds.Get(ctx, admin, shared.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestCredentialService_CreateValidates(t *testing.T) {
	h := newHarness(t)
	_, err := h.creds.Create(context.Background(), domain.Actor{}, json.RawMessage(`"nope"`), false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCredentialService_DeleteInUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)

	err := h.creds.Delete(ctx, domain.Actor{Admin: true}, key.CredentialID)
	assert.ErrorIs(t, err, domain.ErrCredentialInUse)
}

func TestCredentialService_Resolve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred, err := h.creds.Create(ctx, user("alice"), json.RawMessage(`{"token":"s3cret"}`), false)
	require.NoError(t, err)

	payload, err := h.creds.Resolve(ctx, cred.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"s3cret"}`, string(payload))

	_, err = h.creds.Resolve(ctx, cred.ID+100)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
