package domain

import (
	"fmt"
	"strings"
	"time"
)

// Document is the canonical identity of a piece of source content.
// It holds no content and is never mutated; it exists for as long as
// at least one pair attributes it or at least one chunk row refers to it.
type Document struct {
	// ID is the connector-provided, globally unique identifier.
	ID string

	// CreatedAt is when the document row was first inserted.
	CreatedAt time.Time
}

// ValidateDocumentID rejects empty identifiers.
func ValidateDocumentID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	return nil
}

// Detachment is the outcome of removing one pair's attribution.
type Detachment struct {
	// Remaining is how many pairs still attribute the document.
	Remaining int

	// Deleted reports whether the document row was removed with it.
	Deleted bool
}

// Attribution records that a pair has produced a document.
type Attribution struct {
	DocumentID string
	PairKey
}

// StoreType is the kind of physical backing store a chunk lives in.
type StoreType string

// Known store types.
const (
	StoreVector  StoreType = "vector"
	StoreKeyword StoreType = "keyword"
)

// StoreTypes lists every known store type.
func StoreTypes() []StoreType {
	return []StoreType{StoreVector, StoreKeyword}
}

// Valid reports whether t is a known store type.
func (t StoreType) Valid() bool {
	return t == StoreVector || t == StoreKeyword
}

// ParseStoreType decodes and validates a store type name.
func ParseStoreType(s string) (StoreType, error) {
	t := StoreType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStoreType, s)
	}
	return t, nil
}

// Chunk is the bookkeeping row for one chunk held by one store.
// Identity is (ID, StoreType); the same chunk ID may exist in every store.
type Chunk struct {
	ID         string
	StoreType  StoreType
	DocumentID string
}

// Validate checks the chunk fields before they are stored.
func (c Chunk) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: chunk id is required", ErrInvalidInput)
	}
	if !c.StoreType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStoreType, c.StoreType)
	}
	return ValidateDocumentID(c.DocumentID)
}

// SourceDocument is what a connector driver yields for one document.
type SourceDocument struct {
	// ID is the globally unique document identifier.
	ID string

	// Content is the normalised text.
	Content string

	// Title is an optional display title.
	Title string

	// URI locates the document in its source system.
	URI string

	// Metadata is connector-specific key/value data.
	Metadata map[string]string

	// UpdatedAt is when the source last changed the document.
	UpdatedAt time.Time
}

// ChunkPayload is the transient representation handed to a store driver.
// The core never persists it; only the (ID, StoreType, DocumentID) triple is kept.
type ChunkPayload struct {
	ID         string
	DocumentID string
	Position   int
	Content    string
	Metadata   map[string]string
}
