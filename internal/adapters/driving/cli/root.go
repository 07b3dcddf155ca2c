// Package cli provides the command tree of sercha-ingest.
//
// Commands talk to the core only through the driving ports. The process
// entry point supplies a Bootstrap that builds those services from the
// loaded configuration.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// version is set at build time via -ldflags.
var version = "dev"

// skipServices marks commands that run without a store.
const skipServices = "skip-services"

// Global flags.
var (
	configPath string
	verbose    bool
)

// Services are the core services the commands drive.
type Services struct {
	Credentials driving.CredentialService
	Connectors  driving.ConnectorService
	Pairs       driving.PairService
	Attempts    driving.AttemptService
	Attribution driving.AttributionService
	Chunks      driving.ChunkService
	Indexing    driving.IndexingService
	Deletion    driving.DeletionService
	Scheduler   driving.SchedulerService

	// Sources lists the sources with a connector driver.
	Sources []domain.DocumentSource

	// Migrate applies pending schema migrations.
	Migrate func(ctx context.Context) error

	// Close releases the store. May be nil.
	Close func() error
}

// Options are the global flag values handed to a Bootstrap.
type Options struct {
	ConfigPath string
	Verbose    bool
}

// Bootstrap builds the services for one command invocation.
type Bootstrap func(ctx context.Context, opts Options) (*Services, error)

var (
	bootstrap Bootstrap
	services  *Services
)

var rootCmd = &cobra.Command{
	Use:   "sercha-ingest",
	Short: "Track document ingestion from connectors into search stores",
	Long: `sercha-ingest manages connectors, credentials and the pairs that bind them,
runs index and deletion attempts, and keeps document attribution and chunk
bookkeeping consistent across vector and keyword stores.`,
	SilenceUsage:      true,
	PersistentPreRunE: openServices,
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closeServices()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.sercha-ingest/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the command tree.
func Execute(ctx context.Context, boot Bootstrap) error {
	bootstrap = boot
	return rootCmd.ExecuteContext(ctx)
}

// useServices installs prebuilt services. Bootstrap is skipped while set.
func useServices(s *Services) func() {
	old := services
	services = s
	return func() { services = old }
}

func openServices(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipServices] == "true" || services != nil {
		return nil
	}
	if bootstrap == nil {
		return errors.New("services not configured")
	}
	s, err := bootstrap(cmd.Context(), Options{ConfigPath: configPath, Verbose: verbose})
	if err != nil {
		return err
	}
	services = s
	return nil
}

func closeServices() error {
	if bootstrap == nil || services == nil || services.Close == nil {
		return nil
	}
	err := services.Close()
	services = nil
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
