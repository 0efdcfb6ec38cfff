package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rpattn/projectanalysis/internal/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logging.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "server",
		Short:         "Project membership analysis over the GraphQL gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			format, _ := cmd.Flags().GetString("log-format")
			return logging.Setup(level, format)
		},
	}
	root.PersistentFlags().String("config", ".", "directory containing config.yaml")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (console, json)")

	root.AddCommand(newServeCommand(), newTemplateCommand())
	return root
}
