package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var connectorCmd = &cobra.Command{
	Use:   "connector",
	Short: "Manage connectors",
	Long:  `Add, list, inspect, enable, disable or delete configured content sources.`,
}

var connectorAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a connector",
	Args:  cobra.NoArgs,
	RunE:  runConnectorAdd,
}

var connectorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connectors",
	Args:  cobra.NoArgs,
	RunE:  runConnectorList,
}

var connectorShowCmd = &cobra.Command{
	Use:   "show [connector-id]",
	Short: "Show connector details and its pairs",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnectorShow,
}

var connectorDisableCmd = &cobra.Command{
	Use:   "disable [connector-id]",
	Short: "Stop scheduling and indexing a connector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setConnectorDisabled(cmd, args[0], true)
	},
}

var connectorEnableCmd = &cobra.Command{
	Use:   "enable [connector-id]",
	Short: "Re-enable a disabled connector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setConnectorDisabled(cmd, args[0], false)
	},
}

var connectorDeleteCmd = &cobra.Command{
	Use:   "delete [connector-id]",
	Short: "Delete a connector with no pairs",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnectorDelete,
}

// Flags for connector add.
var (
	connectorName       string
	connectorSource     string
	connectorInput      string
	connectorConfig     string
	connectorConfigFile string
	connectorRefresh    time.Duration
	connectorDisabled   bool
)

func init() {
	f := connectorAddCmd.Flags()
	f.StringVarP(&connectorName, "name", "n", "", "Connector name")
	f.StringVarP(&connectorSource, "source", "s", string(domain.SourceFile), "Document source (file, github, ...)")
	f.StringVar(&connectorInput, "input", string(domain.InputPoll), "Input type: poll, load_state or event")
	f.StringVar(&connectorConfig, "config-json", "", "Connector configuration as a JSON object")
	f.StringVar(&connectorConfigFile, "config-file", "", "Read connector configuration from a JSON file")
	f.DurationVar(&connectorRefresh, "refresh", 0, "Refresh interval for the scheduler (0 = manual)")
	f.BoolVar(&connectorDisabled, "disabled", false, "Create the connector disabled")
	_ = connectorAddCmd.MarkFlagRequired("name")

	connectorCmd.AddCommand(connectorAddCmd)
	connectorCmd.AddCommand(connectorListCmd)
	connectorCmd.AddCommand(connectorShowCmd)
	connectorCmd.AddCommand(connectorDisableCmd)
	connectorCmd.AddCommand(connectorEnableCmd)
	connectorCmd.AddCommand(connectorDeleteCmd)
	rootCmd.AddCommand(connectorCmd)
}

func runConnectorAdd(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Connectors == nil {
		return errors.New("connector service not configured")
	}

	config, err := readJSON(connectorConfig, connectorConfigFile, "connector config")
	if err != nil {
		return err
	}
	connector := &domain.Connector{
		Name:      connectorName,
		Source:    domain.DocumentSource(connectorSource),
		InputType: domain.InputType(connectorInput),
		Config:    config,
		Disabled:  connectorDisabled,
	}
	if connectorRefresh > 0 {
		refresh := connectorRefresh.Truncate(time.Second)
		connector.RefreshFreq = &refresh
	}
	if !hasDriver(connector.Source) {
		cmd.Printf("Warning: no connector driver handles source %q; index runs will fail.\n", connector.Source)
	}

	created, err := services.Connectors.Create(commandContext(cmd), connector)
	if err != nil {
		return fmt.Errorf("failed to add connector: %w", err)
	}
	cmd.Printf("Connector %d added: %s (%s, %s)\n", created.ID, created.Name, created.Source, created.InputType)
	return nil
}

func hasDriver(source domain.DocumentSource) bool {
	for _, s := range services.Sources {
		if s == source {
			return true
		}
	}
	return false
}

func runConnectorList(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Connectors == nil {
		return errors.New("connector service not configured")
	}

	connectors, err := services.Connectors.List(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list connectors: %w", err)
	}
	if len(connectors) == 0 {
		cmd.Println("No connectors configured.")
		return nil
	}

	for i := range connectors {
		c := &connectors[i]
		state := "enabled"
		if c.Disabled {
			state = "disabled"
		}
		cmd.Printf("  %d  %s\n", c.ID, c.Name)
		cmd.Printf("     Source: %s  Input: %s  Refresh: %s  State: %s\n", c.Source, c.InputType, formatRefresh(c.RefreshFreq), state)
	}
	cmd.Printf("\nTotal: %d connectors\n", len(connectors))
	return nil
}

func runConnectorShow(cmd *cobra.Command, args []string) error {
	if services == nil || services.Connectors == nil || services.Pairs == nil {
		return errors.New("connector service not configured")
	}
	id, err := parseID("connector", args[0])
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	c, err := services.Connectors.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get connector: %w", err)
	}
	cmd.Printf("Connector: %d\n\n", c.ID)
	cmd.Printf("  Name:      %s\n", c.Name)
	cmd.Printf("  Source:    %s\n", c.Source)
	cmd.Printf("  Input:     %s\n", c.InputType)
	cmd.Printf("  Refresh:   %s\n", formatRefresh(c.RefreshFreq))
	cmd.Printf("  Disabled:  %t\n", c.Disabled)
	cmd.Printf("  Config:    %s\n", string(c.Config))
	cmd.Printf("  Created:   %s\n", c.CreatedAt.UTC().Format(timeLayout))
	cmd.Printf("  Updated:   %s\n", c.UpdatedAt.UTC().Format(timeLayout))

	pairs, err := services.Pairs.ListForConnector(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list pairs: %w", err)
	}
	if len(pairs) > 0 {
		cmd.Println("\n  Pairs:")
		for i := range pairs {
			cmd.Printf("    credential %d  status: %s  last success: %s  docs: %d\n",
				pairs[i].CredentialID, formatStatus(pairs[i].LastAttemptStatus),
				formatTime(pairs[i].LastSuccessfulIndexTime), pairs[i].TotalDocsIndexed)
		}
	}
	return nil
}

func setConnectorDisabled(cmd *cobra.Command, arg string, disabled bool) error {
	if services == nil || services.Connectors == nil {
		return errors.New("connector service not configured")
	}
	id, err := parseID("connector", arg)
	if err != nil {
		return err
	}
	c, err := services.Connectors.SetDisabled(commandContext(cmd), id, disabled)
	if err != nil {
		return fmt.Errorf("failed to update connector: %w", err)
	}
	if c.Disabled {
		cmd.Printf("Connector %d disabled.\n", c.ID)
	} else {
		cmd.Printf("Connector %d enabled.\n", c.ID)
	}
	return nil
}

func runConnectorDelete(cmd *cobra.Command, args []string) error {
	if services == nil || services.Connectors == nil {
		return errors.New("connector service not configured")
	}
	id, err := parseID("connector", args[0])
	if err != nil {
		return err
	}
	if err := services.Connectors.Delete(commandContext(cmd), id); err != nil {
		if errors.Is(err, domain.ErrConnectorInUse) {
			return fmt.Errorf("%w (run 'delete run' and 'pair unbind' for each pair first)", err)
		}
		return fmt.Errorf("failed to delete connector: %w", err)
	}
	cmd.Printf("Connector %d deleted.\n", id)
	return nil
}
