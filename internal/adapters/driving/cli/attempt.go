package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var attemptCmd = &cobra.Command{
	Use:   "attempt",
	Short: "Inspect index and deletion attempts",
}

var attemptListCmd = &cobra.Command{
	Use:   "list [connector-id] [credential-id]",
	Short: "List a pair's attempts, newest first",
	Long:  `Lists a pair's attempts. Without arguments, lists every attempt in progress.`,
	Args:  cobra.MatchAll(cobra.RangeArgs(0, 2), func(_ *cobra.Command, args []string) error {
		if len(args) == 1 {
			return errors.New("give both connector-id and credential-id, or neither")
		}
		return nil
	}),
	RunE: runAttemptList,
}

var attemptShowCmd = &cobra.Command{
	Use:   "show [attempt-id]",
	Short: "Show an attempt",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttemptShow,
}

var attemptFailCmd = &cobra.Command{
	Use:   "fail [attempt-id]",
	Short: "Mark a stuck attempt failed and release its pair",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttemptFail,
}

var (
	attemptKind   string
	attemptLimit  int
	attemptReason string
)

func init() {
	attemptCmd.PersistentFlags().StringVarP(&attemptKind, "kind", "k", string(domain.KindIndex), "Attempt kind: index or deletion")
	attemptListCmd.Flags().IntVarP(&attemptLimit, "limit", "l", 20, "Maximum attempts to list (0 = all)")
	attemptFailCmd.Flags().StringVarP(&attemptReason, "reason", "r", "", "Reason recorded on the attempt")

	attemptCmd.AddCommand(attemptListCmd)
	attemptCmd.AddCommand(attemptShowCmd)
	attemptCmd.AddCommand(attemptFailCmd)
	rootCmd.AddCommand(attemptCmd)
}

func runAttemptList(cmd *cobra.Command, args []string) error {
	if services == nil || services.Attempts == nil {
		return errors.New("attempt service not configured")
	}
	kind, err := parseKind(attemptKind)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	var attempts []domain.Attempt
	if len(args) == 2 {
		key, err := parsePair(args)
		if err != nil {
			return err
		}
		attempts, err = services.Attempts.ListForPair(ctx, kind, key, attemptLimit)
		if err != nil {
			return fmt.Errorf("failed to list attempts: %w", err)
		}
	} else {
		attempts, err = services.Attempts.ListInProgress(ctx, kind)
		if err != nil {
			return fmt.Errorf("failed to list attempts: %w", err)
		}
	}

	if len(attempts) == 0 {
		cmd.Printf("No %s attempts found.\n", kind)
		return nil
	}
	for i := range attempts {
		printAttemptLine(cmd, &attempts[i])
	}
	return nil
}

func runAttemptShow(cmd *cobra.Command, args []string) error {
	if services == nil || services.Attempts == nil {
		return errors.New("attempt service not configured")
	}
	kind, err := parseKind(attemptKind)
	if err != nil {
		return err
	}
	id, err := parseID("attempt", args[0])
	if err != nil {
		return err
	}
	a, err := services.Attempts.Get(commandContext(cmd), kind, id)
	if err != nil {
		return fmt.Errorf("failed to get attempt: %w", err)
	}

	cmd.Printf("Attempt: %s %d\n\n", a.Kind, a.ID)
	cmd.Printf("  Connector:   %s\n", formatParent(a.ConnectorID))
	cmd.Printf("  Credential:  %s\n", formatParent(a.CredentialID))
	cmd.Printf("  Status:      %s\n", a.Status)
	if a.Kind == domain.KindDeletion {
		cmd.Printf("  Docs deleted: %d\n", a.NumDocsDeleted)
	}
	if a.ErrorMsg != "" {
		cmd.Printf("  Error:       %s\n", a.ErrorMsg)
	}
	cmd.Printf("  Created:     %s\n", a.CreatedAt.UTC().Format(timeLayout))
	cmd.Printf("  Updated:     %s\n", a.UpdatedAt.UTC().Format(timeLayout))
	return nil
}

func runAttemptFail(cmd *cobra.Command, args []string) error {
	if services == nil || services.Attempts == nil {
		return errors.New("attempt service not configured")
	}
	kind, err := parseKind(attemptKind)
	if err != nil {
		return err
	}
	id, err := parseID("attempt", args[0])
	if err != nil {
		return err
	}
	a, err := services.Attempts.MarkFailed(commandContext(cmd), kind, id, attemptReason)
	if err != nil {
		return fmt.Errorf("failed to mark attempt failed: %w", err)
	}
	cmd.Printf("Attempt %s %d marked failed: %s\n", a.Kind, a.ID, a.ErrorMsg)
	return nil
}

func printAttemptLine(cmd *cobra.Command, a *domain.Attempt) {
	line := fmt.Sprintf("    %s %d  %-11s  updated %s", a.Kind, a.ID, a.Status, a.UpdatedAt.UTC().Format(timeLayout))
	if a.Kind == domain.KindDeletion && a.Status == domain.StatusSuccess {
		line += fmt.Sprintf("  docs deleted: %d", a.NumDocsDeleted)
	}
	if a.ErrorMsg != "" {
		line += "  error: " + a.ErrorMsg
	}
	cmd.Println(line)
}
