package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the refresh scheduler",
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Index due pairs on every tick until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runScheduler,
}

var schedulerOnceCmd = &cobra.Command{
	Use:   "once",
	Short: "Index every due pair once and exit",
	Args:  cobra.NoArgs,
	RunE:  runSchedulerOnce,
}

func init() {
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerOnceCmd)
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Scheduler == nil {
		return errors.New("scheduler not configured")
	}
	ctx := commandContext(cmd)

	cmd.Println("Scheduler running. Press Ctrl+C to stop.")
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			services.Scheduler.Stop()
		case <-done:
		}
	}()

	err := services.Scheduler.Start(ctx)
	if err != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("scheduler: %w", err)
	}
	cmd.Println("Scheduler stopped.")
	return nil
}

func runSchedulerOnce(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Scheduler == nil {
		return errors.New("scheduler not configured")
	}
	started, err := services.Scheduler.RunOnce(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if len(started) == 0 {
		cmd.Println("No pairs due.")
		return nil
	}
	for _, key := range started {
		cmd.Printf("  indexed %s\n", key)
	}
	return nil
}
