package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"scenariokit/internal/clockwork"
	"scenariokit/internal/logger"
	"scenariokit/internal/plugin"
)

func newListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available plugins and their capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(logger.Options{Level: "error", HumanReadable: !flags.plain})
			if err != nil {
				return err
			}

			manager := plugin.NewManager(log)
			if err := registerBuiltins(manager); err != nil {
				return err
			}

			services := &plugin.Services{Clock: clockwork.New(), Logger: log}
			if err := manager.LoadPlugins([]string{"async_task", "file_processing", "api_mixing"}, nil, services); err != nil {
				return err
			}

			descriptors := manager.ListPlugins()
			names := make([]string, 0, len(descriptors))
			for name := range descriptors {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				desc := descriptors[name]
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %s\n", name, strings.Join(desc.Capabilities, ", "))
			}
			return nil
		},
	}
}
