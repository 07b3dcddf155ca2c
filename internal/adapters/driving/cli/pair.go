package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Bind connectors to credentials",
	Long: `A pair binds one connector to one credential. It is the unit that gets
indexed, scheduled and deleted.`,
}

var pairBindCmd = &cobra.Command{
	Use:   "bind [connector-id] [credential-id]",
	Short: "Bind a connector to a credential",
	Args:  cobra.ExactArgs(2),
	RunE:  runPairBind,
}

var pairUnbindCmd = &cobra.Command{
	Use:   "unbind [connector-id] [credential-id]",
	Short: "Remove a pair",
	Long: `Removes the pair only. Documents, chunks and attempt history are kept;
run 'delete run' first to remove the pair's documents.`,
	Args: cobra.ExactArgs(2),
	RunE: runPairUnbind,
}

var pairListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pairs",
	Args:  cobra.NoArgs,
	RunE:  runPairList,
}

var pairShowCmd = &cobra.Command{
	Use:   "show [connector-id] [credential-id]",
	Short: "Show a pair, its holder and recent attempts",
	Args:  cobra.ExactArgs(2),
	RunE:  runPairShow,
}

var pairConnector int64

func init() {
	pairListCmd.Flags().Int64Var(&pairConnector, "connector", 0, "Only list pairs of this connector")

	pairCmd.AddCommand(pairBindCmd)
	pairCmd.AddCommand(pairUnbindCmd)
	pairCmd.AddCommand(pairListCmd)
	pairCmd.AddCommand(pairShowCmd)
	rootCmd.AddCommand(pairCmd)
}

func runPairBind(cmd *cobra.Command, args []string) error {
	if services == nil || services.Pairs == nil {
		return errors.New("pair service not configured")
	}
	key, err := parsePair(args)
	if err != nil {
		return err
	}
	if _, err := services.Pairs.Bind(commandContext(cmd), key.ConnectorID, key.CredentialID); err != nil {
		return fmt.Errorf("failed to bind: %w", err)
	}
	cmd.Printf("Pair %s bound.\n", key)
	return nil
}

func runPairUnbind(cmd *cobra.Command, args []string) error {
	if services == nil || services.Pairs == nil {
		return errors.New("pair service not configured")
	}
	key, err := parsePair(args)
	if err != nil {
		return err
	}
	if err := services.Pairs.Unbind(commandContext(cmd), key); err != nil {
		return fmt.Errorf("failed to unbind: %w", err)
	}
	cmd.Printf("Pair %s unbound.\n", key)
	return nil
}

func runPairList(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Pairs == nil {
		return errors.New("pair service not configured")
	}
	ctx := commandContext(cmd)

	var (
		pairs []domain.Pair
		err   error
	)
	if pairConnector > 0 {
		pairs, err = services.Pairs.ListForConnector(ctx, pairConnector)
	} else {
		pairs, err = services.Pairs.List(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list pairs: %w", err)
	}
	if len(pairs) == 0 {
		cmd.Println("No pairs bound.")
		return nil
	}

	for i := range pairs {
		p := &pairs[i]
		cmd.Printf("  %s  status: %s  last success: %s  docs: %d\n",
			p.PairKey, formatStatus(p.LastAttemptStatus), formatTime(p.LastSuccessfulIndexTime), p.TotalDocsIndexed)
	}
	cmd.Printf("\nTotal: %d pairs\n", len(pairs))
	return nil
}

func runPairShow(cmd *cobra.Command, args []string) error {
	if services == nil || services.Pairs == nil || services.Attempts == nil {
		return errors.New("pair service not configured")
	}
	key, err := parsePair(args)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	p, err := services.Pairs.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get pair: %w", err)
	}
	cmd.Printf("Pair: %s\n\n", p.PairKey)
	cmd.Printf("  Status:        %s\n", formatStatus(p.LastAttemptStatus))
	cmd.Printf("  Last success:  %s\n", formatTime(p.LastSuccessfulIndexTime))
	cmd.Printf("  Docs indexed:  %d\n", p.TotalDocsIndexed)
	if services.Attribution != nil {
		count, err := services.Attribution.CountForPair(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to count documents: %w", err)
		}
		cmd.Printf("  Documents:     %d\n", count)
	}
	cmd.Printf("  Bound:         %s\n", p.CreatedAt.UTC().Format(timeLayout))

	lease, err := services.Attempts.Holder(ctx, key)
	switch {
	case err == nil:
		cmd.Printf("  Held by:       %s attempt %d since %s\n", lease.Kind, lease.AttemptID, lease.AcquiredAt.UTC().Format(timeLayout))
	case errors.Is(err, domain.ErrNotFound):
		cmd.Printf("  Held by:       (free)\n")
	default:
		return fmt.Errorf("failed to get holder: %w", err)
	}

	for _, kind := range []domain.AttemptKind{domain.KindIndex, domain.KindDeletion} {
		attempts, err := services.Attempts.ListForPair(ctx, kind, key, 5)
		if err != nil {
			return fmt.Errorf("failed to list attempts: %w", err)
		}
		if len(attempts) == 0 {
			continue
		}
		cmd.Printf("\n  Recent %s attempts:\n", kind)
		for i := range attempts {
			printAttemptLine(cmd, &attempts[i])
		}
	}
	return nil
}
