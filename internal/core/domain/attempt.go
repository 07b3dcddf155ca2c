package domain

import (
	"fmt"
	"time"
)

// AttemptStatus is the lifecycle state of an index or deletion attempt.
//
// Legal transitions are NotStarted -> InProgress -> {Success, Failed}.
// Success and Failed are terminal.
type AttemptStatus int

// Attempt statuses. The zero value is NotStarted.
const (
	StatusNotStarted AttemptStatus = iota
	StatusInProgress
	StatusSuccess
	StatusFailed
)

var statusNames = map[AttemptStatus]string{
	StatusNotStarted: "not_started",
	StatusInProgress: "in_progress",
	StatusSuccess:    "success",
	StatusFailed:     "failed",
}

// String returns the persisted encoding of the status.
func (s AttemptStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("AttemptStatus(%d)", int(s))
}

// Terminal reports whether no further transitions are allowed.
func (s AttemptStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ParseAttemptStatus decodes a persisted status.
func ParseAttemptStatus(s string) (AttemptStatus, error) {
	for status, name := range statusNames {
		if name == s {
			return status, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown attempt status %q", ErrInvalidInput, s)
}

// AttemptKind distinguishes index attempts from deletion attempts.
type AttemptKind string

const (
	// KindIndex attempts pull documents and write chunks.
	KindIndex AttemptKind = "index"

	// KindDeletion attempts remove a pair's documents and chunks.
	KindDeletion AttemptKind = "deletion"
)

// Valid reports whether k is a known kind.
func (k AttemptKind) Valid() bool {
	return k == KindIndex || k == KindDeletion
}

// Attempt is one index or deletion run against a pair.
type Attempt struct {
	// ID is the store-assigned identifier, unique per kind.
	ID int64

	// Kind is index or deletion.
	Kind AttemptKind

	// ConnectorID is the pair's connector. Index attempts outlive their
	// connector for history, in which case this is nil.
	ConnectorID *int64

	// CredentialID is the pair's credential. Nil once the credential is gone.
	CredentialID *int64

	// Status is the current lifecycle state.
	Status AttemptStatus

	// ErrorMsg is set iff Status is StatusFailed.
	ErrorMsg string

	// NumDocsDeleted counts documents whose attribution was removed.
	// Deletion attempts only.
	NumDocsDeleted int

	// CreatedAt is set once at creation.
	CreatedAt time.Time

	// UpdatedAt is stamped on every transition.
	UpdatedAt time.Time
}

// Outcome is how an in-progress attempt finished.
type Outcome struct {
	// Err is the failure cause. Nil means success.
	Err error

	// NumDocsDeleted is recorded for deletion attempts.
	NumDocsDeleted int
}

// NewAttempt returns a NotStarted attempt for the pair.
func NewAttempt(kind AttemptKind, key PairKey, now time.Time) *Attempt {
	connectorID, credentialID := key.ConnectorID, key.CredentialID
	return &Attempt{
		Kind:         kind,
		ConnectorID:  &connectorID,
		CredentialID: &credentialID,
		Status:       StatusNotStarted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Pair returns the attempt's pair key and whether both parents are still set.
func (a *Attempt) Pair() (PairKey, bool) {
	if a.ConnectorID == nil || a.CredentialID == nil {
		return PairKey{}, false
	}
	return PairKey{ConnectorID: *a.ConnectorID, CredentialID: *a.CredentialID}, true
}

// Start moves a NotStarted attempt to InProgress.
func (a *Attempt) Start(now time.Time) error {
	if a.Status != StatusNotStarted {
		return fmt.Errorf("%w: %s attempt %d is %s, cannot start", ErrInvalidTransition, a.Kind, a.ID, a.Status)
	}
	a.Status = StatusInProgress
	a.UpdatedAt = now
	return nil
}

// Complete moves an InProgress attempt to Success or Failed.
func (a *Attempt) Complete(now time.Time, out Outcome) error {
	if a.Status != StatusInProgress {
		return fmt.Errorf("%w: %s attempt %d is %s, cannot complete", ErrInvalidTransition, a.Kind, a.ID, a.Status)
	}
	if out.NumDocsDeleted < 0 {
		return fmt.Errorf("%w: negative deleted document count", ErrInvalidInput)
	}
	if out.Err != nil {
		a.Status = StatusFailed
		a.ErrorMsg = out.Err.Error()
		if a.ErrorMsg == "" {
			a.ErrorMsg = "unknown error"
		}
	} else {
		a.Status = StatusSuccess
		a.ErrorMsg = ""
	}
	if a.Kind == KindDeletion {
		a.NumDocsDeleted = out.NumDocsDeleted
	}
	a.UpdatedAt = now
	return nil
}

// PairLease records which attempt currently holds a pair.
type PairLease struct {
	PairKey

	// Kind is the kind of the holding attempt.
	Kind AttemptKind

	// AttemptID is the holding attempt.
	AttemptID int64

	// AcquiredAt is when the attempt started.
	AcquiredAt time.Time
}
