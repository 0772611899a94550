package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "posync",
		Short:         "Offline-first sync engine for the point of sale",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newRetryCommand())
	cmd.AddCommand(newSyncCommand())
	cmd.AddCommand(newTriggerCommand())
	cmd.AddCommand(newMigrateCommand())

	return cmd
}
