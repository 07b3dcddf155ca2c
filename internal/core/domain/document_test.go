package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocumentID(t *testing.T) {
	assert.NoError(t, ValidateDocumentID("doc-1"))
	assert.ErrorIs(t, ValidateDocumentID(""), ErrInvalidInput)
	assert.ErrorIs(t, ValidateDocumentID("   "), ErrInvalidInput)
}

func TestParseStoreType(t *testing.T) {
	st, err := ParseStoreType("VECTOR")
	require.NoError(t, err)
	assert.Equal(t, StoreVector, st)

	st, err = ParseStoreType(" keyword ")
	require.NoError(t, err)
	assert.Equal(t, StoreKeyword, st)

	_, err = ParseStoreType("graph")
	assert.ErrorIs(t, err, ErrUnknownStoreType)
}

func TestChunk_Validate(t *testing.T) {
	valid := Chunk{ID: "c1", StoreType: StoreVector, DocumentID: "d1"}
	assert.NoError(t, valid.Validate())

	noID := valid
	noID.ID = ""
	assert.ErrorIs(t, noID.Validate(), ErrInvalidInput)

	badStore := valid
	badStore.StoreType = "graph"
	assert.ErrorIs(t, badStore.Validate(), ErrUnknownStoreType)

	noDoc := valid
	noDoc.DocumentID = ""
	assert.ErrorIs(t, noDoc.Validate(), ErrInvalidInput)
}

func TestStoreTypes(t *testing.T) {
	types := StoreTypes()
	assert.Len(t, types, 2)
	for _, st := range types {
		assert.True(t, st.Valid())
	}
}
