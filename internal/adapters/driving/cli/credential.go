package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage credentials",
	Long: `Add, list or delete the opaque credentials connectors use to reach their sources.

Without --user the command acts as an administrator.`,
}

var credentialAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a credential",
	Args:  cobra.NoArgs,
	RunE:  runCredentialAdd,
}

var credentialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible credentials",
	Args:  cobra.NoArgs,
	RunE:  runCredentialList,
}

var credentialDeleteCmd = &cobra.Command{
	Use:   "delete [credential-id]",
	Short: "Delete a credential with no pairs",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialDelete,
}

var (
	credentialUser        string
	credentialPayload     string
	credentialPayloadFile string
	credentialPublic      bool
)

func init() {
	credentialCmd.PersistentFlags().StringVar(&credentialUser, "user", "", "Act as this user instead of an administrator")

	credentialAddCmd.Flags().StringVar(&credentialPayload, "payload", "", "Credential payload as a JSON object")
	credentialAddCmd.Flags().StringVar(&credentialPayloadFile, "payload-file", "", "Read the credential payload from a JSON file")
	credentialAddCmd.Flags().BoolVar(&credentialPublic, "public", false, "Make the credential visible to every user")

	credentialCmd.AddCommand(credentialAddCmd)
	credentialCmd.AddCommand(credentialListCmd)
	credentialCmd.AddCommand(credentialDeleteCmd)
	rootCmd.AddCommand(credentialCmd)
}

func actor() domain.Actor {
	if credentialUser == "" {
		return domain.Actor{Admin: true}
	}
	user := credentialUser
	return domain.Actor{UserID: &user}
}

func runCredentialAdd(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Credentials == nil {
		return errors.New("credential service not configured")
	}
	payload, err := readJSON(credentialPayload, credentialPayloadFile, "credential payload")
	if err != nil {
		return err
	}
	cred, err := services.Credentials.Create(commandContext(cmd), actor(), payload, credentialPublic)
	if err != nil {
		return fmt.Errorf("failed to add credential: %w", err)
	}
	cmd.Printf("Credential %d added.\n", cred.ID)
	return nil
}

func runCredentialList(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Credentials == nil {
		return errors.New("credential service not configured")
	}
	creds, err := services.Credentials.List(commandContext(cmd), actor())
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}
	if len(creds) == 0 {
		cmd.Println("No credentials visible.")
		return nil
	}

	// Payloads are never printed.
	for i := range creds {
		owner := "(none)"
		if creds[i].UserID != nil {
			owner = *creds[i].UserID
		}
		cmd.Printf("  %d  owner: %s  public: %t  created: %s\n",
			creds[i].ID, owner, creds[i].Public, creds[i].CreatedAt.UTC().Format(timeLayout))
	}
	cmd.Printf("\nTotal: %d credentials\n", len(creds))
	return nil
}

func runCredentialDelete(cmd *cobra.Command, args []string) error {
	if services == nil || services.Credentials == nil {
		return errors.New("credential service not configured")
	}
	id, err := parseID("credential", args[0])
	if err != nil {
		return err
	}
	if err := services.Credentials.Delete(commandContext(cmd), actor(), id); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	cmd.Printf("Credential %d deleted.\n", id)
	return nil
}
