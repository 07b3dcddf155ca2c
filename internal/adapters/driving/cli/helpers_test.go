package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	indexmem "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/index/memory"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-ingest/internal/connectors"
	"github.com/custodia-labs/sercha-ingest/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	coreservices "github.com/custodia-labs/sercha-ingest/internal/core/services"
	"github.com/custodia-labs/sercha-ingest/internal/normalisers"
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors"
)

// testEnv is a full service set over an in-memory store.
type testEnv struct {
	store   *memory.Store
	vector  *indexmem.Index
	keyword *indexmem.Index
}

// newTestEnv installs fresh services for the duration of the test.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:   memory.NewStore(),
		vector:  indexmem.New(domain.StoreVector),
		keyword: indexmem.New(domain.StoreKeyword),
	}
	store := env.store
	indexes := []driven.DocumentIndex{env.vector, env.keyword}

	pipeline, err := postprocessors.NewDefaultPipeline(16, 0)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	pipeline.SetNormaliser(normalisers.NewDefaultRegistry())
	factory := connectors.NewFactory(filesystem.New())
	credentials := coreservices.NewCredentialService(store.CredentialStore(), nil)

	indexer := coreservices.NewIndexingRunner(coreservices.IndexingDeps{
		Pairs:       store.PairStore(),
		Connectors:  store.ConnectorStore(),
		Attempts:    store.AttemptStore(),
		Documents:   store.DocumentStore(),
		Chunks:      store.ChunkStore(),
		Factory:     factory,
		Credentials: credentials,
		Pipeline:    pipeline,
		Indexes:     indexes,
		Workers:     2,
	})

	s := &Services{
		Credentials: credentials,
		Connectors:  coreservices.NewConnectorService(store.ConnectorStore(), nil),
		Pairs:       coreservices.NewPairService(store.PairStore(), nil),
		Attempts:    coreservices.NewAttemptService(store.AttemptStore(), nil),
		Attribution: coreservices.NewAttributionService(store.DocumentStore()),
		Chunks:      coreservices.NewChunkService(store.ChunkStore()),
		Indexing:    indexer,
		Deletion: coreservices.NewDeletionRunner(coreservices.DeletionDeps{
			Attempts:  store.AttemptStore(),
			Documents: store.DocumentStore(),
			Chunks:    store.ChunkStore(),
			Indexes:   indexes,
		}),
		Scheduler: coreservices.NewScheduler(
			coreservices.SchedulerConfig{TickInterval: time.Hour, MaxConcurrent: 1},
			store.PairStore(), store.ConnectorStore(), store.AttemptStore(), indexer, nil,
		),
		Sources: factory.Sources(),
	}
	t.Cleanup(useServices(s))
	return env
}

// execute runs the command tree with args and returns everything printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// resetFlags restores every flag in the tree to its default. Cobra keeps
// parsed values on the package-level commands between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}
