package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func newTestScheduler(h *harness, cfg SchedulerConfig) *Scheduler {
	s := NewScheduler(cfg, h.store.PairStore(), h.store.ConnectorStore(), h.store.AttemptStore(), h.indexer, nil)
	s.now = h.clock.Now
	return s
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(SchedulerConfig{}, nil, nil, nil, nil, nil)
	assert.Equal(t, DefaultTickInterval, s.config.TickInterval)
	assert.Equal(t, DefaultMaxConcurrent, s.config.MaxConcurrent)
	assert.False(t, s.IsRunning())
}

func TestScheduler_RunOnce_RefreshInterval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, &domain.Connector{RefreshFreq: ptr(time.Hour)})
	h.driver.setDocs(doc("doc-1", "a"))
	s := newTestScheduler(h, SchedulerConfig{})

	started, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.PairKey{key}, started)

	started, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, started)

	h.clock.Advance(time.Hour)
	started, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.PairKey{key}, started)
	assert.Equal(t, 2, h.driver.pullCount())
}

func TestScheduler_RunOnce_NoRefreshIndexesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, nil)
	s := newTestScheduler(h, SchedulerConfig{})

	started, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.PairKey{key}, started)

	h.clock.Advance(24 * time.Hour)
	started, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, started)
}

func TestScheduler_RunOnce_Skips(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.bind(t, &domain.Connector{Name: "off", Disabled: true, RefreshFreq: ptr(time.Minute)})
	h.bind(t, &domain.Connector{Name: "push", InputType: domain.InputEvent, RefreshFreq: ptr(time.Minute)})
	held := h.bind(t, &domain.Connector{Name: "busy", RefreshFreq: ptr(time.Minute)})
	due := h.bind(t, &domain.Connector{Name: "due", RefreshFreq: ptr(time.Minute)})

	_, err := h.attempts.Begin(ctx, domain.KindDeletion, held)
	require.NoError(t, err)

	started, err := newTestScheduler(h, SchedulerConfig{}).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.PairKey{due}, started)
}

func TestScheduler_RunOnce_FailedRunIsReported(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	key := h.bind(t, &domain.Connector{Source: domain.SourceSlack, RefreshFreq: ptr(time.Minute)})
	ok := h.bind(t, &domain.Connector{RefreshFreq: ptr(time.Minute)})

	started, err := newTestScheduler(h, SchedulerConfig{MaxConcurrent: 1}).RunOnce(ctx)
	require.NoError(t, err)
	// The slack pair never got an attempt because no driver handles it.
	assert.Equal(t, []domain.PairKey{ok}, started)
	assert.NotContains(t, started, key)
}

func TestScheduler_StartStop(t *testing.T) {
	h := newHarness(t)
	h.bind(t, &domain.Connector{RefreshFreq: ptr(time.Second)})
	s := newTestScheduler(h, SchedulerConfig{TickInterval: 5 * time.Millisecond})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()

	require.Eventually(t, s.IsRunning, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return h.driver.pullCount() >= 1 }, time.Second, time.Millisecond)

	// A second Start while running is a no-op.
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	assert.False(t, s.IsRunning())
	require.NoError(t, <-errCh)

	// Stop when stopped is a no-op.
	s.Stop()
}

func TestScheduler_StartReturnsOnCancel(t *testing.T) {
	h := newHarness(t)
	s := newTestScheduler(h, SchedulerConfig{TickInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	require.Eventually(t, s.IsRunning, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.False(t, s.IsRunning())
}
