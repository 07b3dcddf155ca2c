package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/config/file"
	indexmem "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/index/memory"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-ingest/internal/connectors"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/services"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
	"github.com/custodia-labs/sercha-ingest/internal/normalisers"
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors"
)

// lifecycleStore is a relational backend serving every lifecycle store.
type lifecycleStore interface {
	CredentialStore() driven.CredentialStore
	ConnectorStore() driven.ConnectorStore
	PairStore() driven.PairStore
	AttemptStore() driven.AttemptStore
	DocumentStore() driven.DocumentStore
	ChunkStore() driven.ChunkStore
	Close() error
}

type migrator interface {
	Migrate(ctx context.Context) error
}

func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	cfg, err := file.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logCfg := logger.Config{Mode: cfg.Log.Mode, Level: cfg.Log.Level}
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	log.Debug("store opened", "backend", cfg.Storage.Backend)

	svc, err := buildServices(store, cfg, log)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	return svc, nil
}

func openStore(ctx context.Context, cfg *file.Config) (lifecycleStore, error) {
	switch cfg.Storage.Backend {
	case file.BackendPostgres:
		s, err := postgres.Open(ctx, postgres.Config{
			DSN:          cfg.Storage.PostgresDSN,
			MaxOpenConns: cfg.Storage.MaxOpenConns,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return s, nil
	default:
		s, err := sqlite.NewStore(ctx, cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return s, nil
	}
}

// buildServices wires the core services over store.
func buildServices(store lifecycleStore, cfg *file.Config, log *logger.Logger) (*cli.Services, error) {
	storeTypes, err := cfg.StoreTypes()
	if err != nil {
		return nil, err
	}
	indexes := indexmem.NewSet(storeTypes...)

	pipeline, err := postprocessors.NewDefaultPipeline(cfg.Indexing.ChunkSize, cfg.Indexing.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("building chunk pipeline: %w", err)
	}
	pipeline.SetNormaliser(normalisers.NewDefaultRegistry())
	factory := connectors.NewDefaultFactory()

	credentials := services.NewCredentialService(store.CredentialStore(), log)
	pairs := services.NewPairService(store.PairStore(), log)
	attempts := services.NewAttemptService(store.AttemptStore(), log)

	indexer := services.NewIndexingRunner(services.IndexingDeps{
		Pairs:       store.PairStore(),
		Connectors:  store.ConnectorStore(),
		Attempts:    store.AttemptStore(),
		Documents:   store.DocumentStore(),
		Chunks:      store.ChunkStore(),
		Factory:     factory,
		Credentials: credentials,
		Pipeline:    pipeline,
		Indexes:     indexes,
		Workers:     cfg.Indexing.Workers,
		Logger:      log.With("component", "indexer"),
	})
	deleter := services.NewDeletionRunner(services.DeletionDeps{
		Attempts:  store.AttemptStore(),
		Documents: store.DocumentStore(),
		Chunks:    store.ChunkStore(),
		Indexes:   indexes,
		Limiter:   rate.NewLimiter(rate.Limit(cfg.Deletion.RatePerSecond), cfg.Deletion.Burst),
		Logger:    log.With("component", "deletion"),
	})
	scheduler := services.NewScheduler(
		services.SchedulerConfig{
			TickInterval:  cfg.Scheduler.TickInterval.Duration,
			MaxConcurrent: cfg.Scheduler.MaxConcurrent,
		},
		store.PairStore(), store.ConnectorStore(), store.AttemptStore(),
		indexer, log.With("component", "scheduler"),
	)

	svc := &cli.Services{
		Credentials: credentials,
		Connectors:  services.NewConnectorService(store.ConnectorStore(), log),
		Pairs:       pairs,
		Attempts:    attempts,
		Attribution: services.NewAttributionService(store.DocumentStore()),
		Chunks:      services.NewChunkService(store.ChunkStore()),
		Indexing:    indexer,
		Deletion:    deleter,
		Scheduler:   scheduler,
		Sources:     factory.Sources(),
		Close: func() error {
			log.Sync()
			return store.Close()
		},
	}
	if m, ok := store.(migrator); ok {
		svc.Migrate = m.Migrate
	}
	return svc, nil
}
