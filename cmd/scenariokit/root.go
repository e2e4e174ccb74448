package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	logLevel string
	plain    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "scenariokit",
		Short:         "Run plugin-based test scenarios against external services",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&flags.plain, "plain", false, "write raw JSON log lines instead of console output")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newListCmd(flags))

	return cmd
}
