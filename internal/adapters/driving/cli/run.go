package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Run index attempts",
}

var indexRunCmd = &cobra.Command{
	Use:   "run [connector-id] [credential-id]",
	Short: "Pull a pair's documents and write them to every store",
	Args:  cobra.ExactArgs(2),
	RunE:  runIndex,
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Run deletion attempts",
}

var deleteRunCmd = &cobra.Command{
	Use:   "run [connector-id] [credential-id]",
	Short: "Remove a pair's documents from every store",
	Long: `Detaches the pair from every document it produced. Documents no other pair
produced are deleted from every store. With --unbind the pair itself is
removed once the deletion succeeds.`,
	Args: cobra.ExactArgs(2),
	RunE: runDelete,
}

var deleteUnbind bool

func init() {
	deleteRunCmd.Flags().BoolVar(&deleteUnbind, "unbind", false, "Unbind the pair after a successful deletion")

	indexCmd.AddCommand(indexRunCmd)
	deleteCmd.AddCommand(deleteRunCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if services == nil || services.Indexing == nil {
		return errors.New("indexing service not configured")
	}
	key, err := parsePair(args)
	if err != nil {
		return err
	}

	cmd.Printf("Indexing pair %s...\n", key)
	res, err := services.Indexing.Run(commandContext(cmd), key)
	if res != nil {
		cmd.Printf("Index attempt %d %s: %d documents, %d chunks written, %d stale chunks removed\n",
			res.Attempt.ID, res.Attempt.Status, res.DocsIndexed, res.ChunksWritten, res.StaleChunksRemoved)
	}
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if services == nil || services.Deletion == nil {
		return errors.New("deletion service not configured")
	}
	key, err := parsePair(args)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	cmd.Printf("Deleting documents of pair %s...\n", key)
	res, err := services.Deletion.Run(ctx, key)
	if res != nil {
		cmd.Printf("Deletion attempt %d %s: %d documents purged, %d detached, %d chunks deleted\n",
			res.Attempt.ID, res.Attempt.Status, res.DocsPurged, res.DocsDetached, res.ChunksDeleted)
		if len(res.FailedDocs) > 0 {
			cmd.Printf("Kept for retry: %s\n", strings.Join(res.FailedDocs, ", "))
		}
	}
	if err != nil {
		return fmt.Errorf("deletion failed: %w", err)
	}

	if deleteUnbind {
		if services.Pairs == nil {
			return errors.New("pair service not configured")
		}
		if err := services.Pairs.Unbind(ctx, key); err != nil {
			return fmt.Errorf("failed to unbind: %w", err)
		}
		cmd.Printf("Pair %s unbound.\n", key)
	}
	return nil
}
