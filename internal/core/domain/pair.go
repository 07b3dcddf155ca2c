package domain

import (
	"fmt"
	"time"
)

// PairKey identifies a connector-credential pair.
type PairKey struct {
	ConnectorID  int64
	CredentialID int64
}

// String formats the key as connector/credential.
func (k PairKey) String() string {
	return fmt.Sprintf("%d/%d", k.ConnectorID, k.CredentialID)
}

// Pair binds a connector to a credential. It is the unit of indexing:
// watermarks, counters and attempt exclusion are all tracked per pair.
type Pair struct {
	PairKey

	// LastSuccessfulIndexTime is the watermark for the next poll.
	// Nil until the first successful index attempt.
	LastSuccessfulIndexTime *time.Time

	// LastAttemptStatus is the outcome of the most recent index attempt.
	LastAttemptStatus *AttemptStatus

	// TotalDocsIndexed is a monotonically non-decreasing counter.
	TotalDocsIndexed int

	// CreatedAt is when the pair was bound.
	CreatedAt time.Time
}

// NewPair returns a freshly bound pair with zero counters.
func NewPair(key PairKey, now time.Time) *Pair {
	return &Pair{PairKey: key, CreatedAt: now}
}

// ApplySuccess records a successful index attempt finished at finishedAt.
// The watermark only moves forward; out-of-order reports leave it alone
// but still count their documents.
func (p *Pair) ApplySuccess(finishedAt time.Time, docsIndexedDelta int) error {
	if docsIndexedDelta < 0 {
		return fmt.Errorf("%w: negative indexed document delta", ErrInvalidInput)
	}
	finishedAt = finishedAt.UTC()
	if p.LastSuccessfulIndexTime == nil || finishedAt.After(*p.LastSuccessfulIndexTime) {
		p.LastSuccessfulIndexTime = &finishedAt
	}
	status := StatusSuccess
	p.LastAttemptStatus = &status
	p.TotalDocsIndexed += docsIndexedDelta
	return nil
}

// ApplyFailure records a failed index attempt. The watermark is untouched.
func (p *Pair) ApplyFailure() {
	status := StatusFailed
	p.LastAttemptStatus = &status
}
