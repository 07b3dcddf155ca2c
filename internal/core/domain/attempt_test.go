package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptStatus_StringRoundTrip(t *testing.T) {
	for _, s := range []AttemptStatus{StatusNotStarted, StatusInProgress, StatusSuccess, StatusFailed} {
		parsed, err := ParseAttemptStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	assert.Equal(t, "not_started", StatusNotStarted.String())
	assert.Equal(t, "in_progress", StatusInProgress.String())
	assert.Equal(t, "AttemptStatus(9)", AttemptStatus(9).String())

	_, err := ParseAttemptStatus("done")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAttemptStatus_Terminal(t *testing.T) {
	assert.False(t, StatusNotStarted.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestNewAttempt(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := NewAttempt(KindIndex, PairKey{ConnectorID: 1, CredentialID: 2}, now)

	assert.Equal(t, StatusNotStarted, a.Status)
	assert.Equal(t, now, a.CreatedAt)
	assert.Equal(t, now, a.UpdatedAt)
	key, ok := a.Pair()
	require.True(t, ok)
	assert.Equal(t, PairKey{ConnectorID: 1, CredentialID: 2}, key)
}

func TestAttempt_Pair_NilParents(t *testing.T) {
	a := &Attempt{Kind: KindIndex}
	_, ok := a.Pair()
	assert.False(t, ok)
}

func TestAttempt_LegalTransitions(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)
	t2 := t1.Add(time.Minute)

	t.Run("success", func(t *testing.T) {
		a := NewAttempt(KindIndex, PairKey{ConnectorID: 1, CredentialID: 1}, t0)
		require.NoError(t, a.Start(t1))
		assert.Equal(t, StatusInProgress, a.Status)
		assert.Equal(t, t1, a.UpdatedAt)

		require.NoError(t, a.Complete(t2, Outcome{}))
		assert.Equal(t, StatusSuccess, a.Status)
		assert.Empty(t, a.ErrorMsg)
		assert.Equal(t, t2, a.UpdatedAt)
		assert.Equal(t, t0, a.CreatedAt)
	})

	t.Run("failure", func(t *testing.T) {
		a := NewAttempt(KindIndex, PairKey{ConnectorID: 1, CredentialID: 1}, t0)
		require.NoError(t, a.Start(t1))
		require.NoError(t, a.Complete(t2, Outcome{Err: errors.New("connector timeout")}))
		assert.Equal(t, StatusFailed, a.Status)
		assert.Equal(t, "connector timeout", a.ErrorMsg)
	})

	t.Run("failure with empty message", func(t *testing.T) {
		a := NewAttempt(KindIndex, PairKey{ConnectorID: 1, CredentialID: 1}, t0)
		require.NoError(t, a.Start(t1))
		require.NoError(t, a.Complete(t2, Outcome{Err: errors.New("")}))
		assert.Equal(t, "unknown error", a.ErrorMsg)
	})

	t.Run("deletion records count", func(t *testing.T) {
		a := NewAttempt(KindDeletion, PairKey{ConnectorID: 1, CredentialID: 1}, t0)
		require.NoError(t, a.Start(t1))
		require.NoError(t, a.Complete(t2, Outcome{NumDocsDeleted: 7}))
		assert.Equal(t, 7, a.NumDocsDeleted)
	})

	t.Run("index ignores count", func(t *testing.T) {
		a := NewAttempt(KindIndex, PairKey{ConnectorID: 1, CredentialID: 1}, t0)
		require.NoError(t, a.Start(t1))
		require.NoError(t, a.Complete(t2, Outcome{NumDocsDeleted: 7}))
		assert.Zero(t, a.NumDocsDeleted)
	})
}

func TestAttempt_IllegalTransitions(t *testing.T) {
	now := time.Now().UTC()

	t.Run("complete from not started", func(t *testing.T) {
		a := NewAttempt(KindIndex, PairKey{ConnectorID: 1, CredentialID: 1}, now)
		err := a.Complete(now, Outcome{})
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StatusNotStarted, a.Status)
	})

	t.Run("start twice", func(t *testing.T) {
		a := NewAttempt(KindIndex, PairKey{ConnectorID: 1, CredentialID: 1}, now)
		require.NoError(t, a.Start(now))
		assert.ErrorIs(t, a.Start(now), ErrInvalidTransition)
	})

	for _, terminal := range []AttemptStatus{StatusSuccess, StatusFailed} {
		t.Run("leave "+terminal.String(), func(t *testing.T) {
			a := &Attempt{Kind: KindDeletion, Status: terminal}
			assert.ErrorIs(t, a.Start(now), ErrInvalidTransition)
			assert.ErrorIs(t, a.Complete(now, Outcome{}), ErrInvalidTransition)
			assert.Equal(t, terminal, a.Status)
		})
	}

	t.Run("negative deleted count", func(t *testing.T) {
		a := NewAttempt(KindDeletion, PairKey{ConnectorID: 1, CredentialID: 1}, now)
		require.NoError(t, a.Start(now))
		assert.ErrorIs(t, a.Complete(now, Outcome{NumDocsDeleted: -1}), ErrInvalidInput)
		assert.Equal(t, StatusInProgress, a.Status)
	})
}

func TestAttemptKind_Valid(t *testing.T) {
	assert.True(t, KindIndex.Valid())
	assert.True(t, KindDeletion.Valid())
	assert.False(t, AttemptKind("reindex").Valid())
}
