package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if services == nil || services.Migrate == nil {
			return errors.New("store does not support migrations")
		}
		if err := services.Migrate(commandContext(cmd)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		cmd.Println("Schema up to date.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
