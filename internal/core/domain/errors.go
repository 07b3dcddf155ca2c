package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden indicates the actor may not mutate the entity.
	ErrForbidden = errors.New("forbidden")

	// Conflict Errors.

	// ErrAlreadyBound indicates the connector and credential are already paired.
	ErrAlreadyBound = errors.New("connector-credential pair already bound")

	// ErrNotBound indicates no pair exists for the connector and credential.
	ErrNotBound = errors.New("connector-credential pair not bound")

	// ErrHasLiveAttempt indicates the pair cannot be unbound while an
	// index or deletion attempt is in progress.
	ErrHasLiveAttempt = errors.New("pair has an attempt in progress")

	// ErrConcurrentAttemptExists indicates another attempt of either kind
	// already holds the pair.
	ErrConcurrentAttemptExists = errors.New("concurrent attempt exists for pair")

	// ErrInvalidTransition indicates an illegal attempt status change.
	ErrInvalidTransition = errors.New("invalid attempt status transition")

	// ErrDocumentPurging indicates the document has lost every attribution
	// and its chunks are still being deleted. It can be attributed again
	// once the purge finishes.
	ErrDocumentPurging = errors.New("document is being purged")

	// Integrity Errors.

	// ErrOrphanChunk indicates a chunk was recorded for a document that has no row.
	ErrOrphanChunk = errors.New("chunk references unknown document")

	// Reference Errors.

	// ErrCredentialInUse indicates a credential cannot be deleted because
	// pairs or attributions reference it.
	ErrCredentialInUse = errors.New("credential is in use by one or more pairs")

	// ErrConnectorInUse indicates a connector cannot be deleted because pairs reference it.
	ErrConnectorInUse = errors.New("connector is in use by one or more pairs")

	// ErrConnectorDisabled indicates indexing was requested for a disabled connector.
	ErrConnectorDisabled = errors.New("connector disabled")

	// ErrUnsupportedSource indicates no connector driver handles the source.
	ErrUnsupportedSource = errors.New("unsupported document source")

	// ErrUnknownStoreType indicates a chunk store type outside the closed set.
	ErrUnknownStoreType = errors.New("unknown store type")
)

// IsConflict reports whether err is a lifecycle conflict.
// Conflicts are safe to retry once the competing operation finishes.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyBound) ||
		errors.Is(err, ErrNotBound) ||
		errors.Is(err, ErrHasLiveAttempt) ||
		errors.Is(err, ErrConcurrentAttemptExists) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDocumentPurging)
}

// IsIntegrity reports whether err is a referential integrity failure.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrOrphanChunk)
}
