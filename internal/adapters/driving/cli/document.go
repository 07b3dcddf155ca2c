package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Inspect document identity and chunk bookkeeping",
}

var documentShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show a document, its pairs and chunk rows per store",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentShow,
}

var documentPairsCmd = &cobra.Command{
	Use:   "pairs [doc-id]",
	Short: "List the pairs attributing a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentPairs,
}

var documentListCmd = &cobra.Command{
	Use:   "list [connector-id] [credential-id]",
	Short: "List the documents a pair attributes",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentList,
}

func init() {
	documentCmd.AddCommand(documentShowCmd)
	documentCmd.AddCommand(documentPairsCmd)
	documentCmd.AddCommand(documentListCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	if services == nil || services.Attribution == nil || services.Chunks == nil {
		return errors.New("document service not configured")
	}
	ctx := commandContext(cmd)
	docID := args[0]

	doc, err := services.Attribution.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	pairs, err := services.Attribution.ListAttributedPairs(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to list pairs: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.UTC().Format(timeLayout))
	cmd.Printf("  Pairs:    %d\n", len(pairs))

	storeTypes, err := services.Chunks.StoreTypesForDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to list store types: %w", err)
	}
	if len(storeTypes) == 0 {
		cmd.Println("  Chunks:   none")
		return nil
	}
	cmd.Println("\n  Chunks:")
	for _, storeType := range storeTypes {
		chunks, err := services.Chunks.ListForDocument(ctx, docID, storeType)
		if err != nil {
			return fmt.Errorf("failed to list chunks: %w", err)
		}
		cmd.Printf("    %s: %d\n", storeType, len(chunks))
	}
	return nil
}

func runDocumentPairs(cmd *cobra.Command, args []string) error {
	if services == nil || services.Attribution == nil {
		return errors.New("document service not configured")
	}
	pairs, err := services.Attribution.ListAttributedPairs(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to list pairs: %w", err)
	}
	if len(pairs) == 0 {
		cmd.Printf("No pairs attribute %s.\n", args[0])
		return nil
	}
	for _, key := range pairs {
		cmd.Printf("  %s\n", key)
	}
	return nil
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	if services == nil || services.Attribution == nil {
		return errors.New("document service not configured")
	}
	key, err := parsePair(args)
	if err != nil {
		return err
	}
	ids, err := services.Attribution.ListForPair(commandContext(cmd), key)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(ids) == 0 {
		cmd.Printf("No documents for pair %s.\n", key)
		return nil
	}
	for _, id := range ids {
		cmd.Printf("  %s\n", id)
	}
	cmd.Printf("\nTotal: %d documents\n", len(ids))
	return nil
}

