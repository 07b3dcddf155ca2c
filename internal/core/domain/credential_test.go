package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestCredential_CanMutate(t *testing.T) {
	owned := &Credential{UserID: strPtr("alice")}
	unowned := &Credential{}

	assert.True(t, owned.CanMutate(Actor{UserID: strPtr("alice")}))
	assert.False(t, owned.CanMutate(Actor{UserID: strPtr("bob")}))
	assert.False(t, owned.CanMutate(Actor{}))
	assert.True(t, owned.CanMutate(Actor{Admin: true}))

	assert.False(t, unowned.CanMutate(Actor{UserID: strPtr("alice")}))
	assert.True(t, unowned.CanMutate(Actor{Admin: true}))
}

func TestCredential_VisibleTo(t *testing.T) {
	private := &Credential{UserID: strPtr("alice")}
	public := &Credential{UserID: strPtr("alice"), Public: true}
	bob := Actor{UserID: strPtr("bob")}

	assert.False(t, private.VisibleTo(bob))
	assert.True(t, public.VisibleTo(bob))
	assert.True(t, private.VisibleTo(Actor{UserID: strPtr("alice")}))
}

func TestCredential_Validate(t *testing.T) {
	assert.NoError(t, (&Credential{Payload: json.RawMessage(`{"token":"x"}`)}).Validate())
	assert.ErrorIs(t, (&Credential{}).Validate(), ErrInvalidInput)
	assert.ErrorIs(t, (&Credential{Payload: json.RawMessage(`"x"`)}).Validate(), ErrInvalidInput)
}
