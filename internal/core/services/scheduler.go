package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.SchedulerService = (*Scheduler)(nil)

// Scheduler defaults.
const (
	DefaultTickInterval  = 10 * time.Second
	DefaultMaxConcurrent = 2
)

// SchedulerConfig tunes the refresh loop.
type SchedulerConfig struct {
	// TickInterval is how often due pairs are looked for.
	TickInterval time.Duration

	// MaxConcurrent bounds index runs started by one pass.
	MaxConcurrent int
}

// Scheduler starts index attempts for pairs whose connector refresh
// interval has elapsed.
type Scheduler struct {
	config     SchedulerConfig
	pairs      driven.PairStore
	connectors driven.ConnectorStore
	attempts   driven.AttemptStore
	indexer    driving.IndexingService
	log        *logger.Logger
	now        func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config SchedulerConfig,
	pairs driven.PairStore,
	connectors driven.ConnectorStore,
	attempts driven.AttemptStore,
	indexer driving.IndexingService,
	log *logger.Logger,
) *Scheduler {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		config:     config,
		pairs:      pairs,
		connectors: connectors,
		attempts:   attempts,
		indexer:    indexer,
		log:        log,
		now:        time.Now,
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.wg.Done()
	}()

	s.log.Info("scheduler started", "tick_interval", s.config.TickInterval.String())
	return s.run(ctx, stopCh)
}

// Stop shuts the loop down and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running || s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	s.tick(ctx)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("scheduling pass failed", "error", err)
	}
}

// RunOnce performs a single scheduling pass. It returns the pairs for
// which an index attempt was started, in key order.
func (s *Scheduler) RunOnce(ctx context.Context) ([]domain.PairKey, error) {
	due, err := s.duePairs(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		started []domain.PairKey
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrent)
	for _, key := range due {
		g.Go(func() error {
			result, err := s.indexer.Run(gctx, key)
			if result != nil {
				mu.Lock()
				started = append(started, key)
				mu.Unlock()
			}
			switch {
			case err == nil:
			case domain.IsConflict(err):
				s.log.Info("pair busy, skipped", "connector_id", key.ConnectorID, "credential_id", key.CredentialID)
			default:
				s.log.Error("scheduled index failed", "connector_id", key.ConnectorID, "credential_id", key.CredentialID, "error", err)
			}
			// One pair failing never cancels the others.
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(started, func(i, j int) bool { return pairLess(started[i], started[j]) })
	return started, ctx.Err()
}

// duePairs lists the pairs an index attempt should be started for now.
func (s *Scheduler) duePairs(ctx context.Context) ([]domain.PairKey, error) {
	pairs, err := s.pairs.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	connectors := make(map[int64]*domain.Connector)
	var due []domain.PairKey
	for i := range pairs {
		pair := &pairs[i]
		connector, ok := connectors[pair.ConnectorID]
		if !ok {
			connector, err = s.connectors.Get(ctx, pair.ConnectorID)
			if err != nil {
				return nil, err
			}
			connectors[pair.ConnectorID] = connector
		}
		if !connector.Schedulable() {
			continue
		}

		if _, err := s.attempts.Holder(ctx, pair.PairKey); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}

		if connector.RefreshFreq == nil {
			// Connectors without a refresh interval are indexed once.
			history, err := s.attempts.ListForPair(ctx, domain.KindIndex, pair.PairKey, 1)
			if err != nil {
				return nil, err
			}
			if len(history) == 0 {
				due = append(due, pair.PairKey)
			}
			continue
		}
		if connector.DueForRefresh(pair.LastSuccessfulIndexTime, now) {
			due = append(due, pair.PairKey)
		}
	}
	return due, nil
}

func pairLess(a, b domain.PairKey) bool {
	if a.ConnectorID != b.ConnectorID {
		return a.ConnectorID < b.ConnectorID
	}
	return a.CredentialID < b.CredentialID
}
