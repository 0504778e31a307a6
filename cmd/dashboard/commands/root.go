package commands

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "shuma-dashboard",
		Short: "Admin dashboard runtime for the Shuma bot defence",
		Long:  "shuma-dashboard: tab refresh engine, polling, config drafts and session handling for the Shuma admin API. Serves an HTTP adapter for the web UI or runs as a terminal UI.",
		// ошибки исполнения не должны печатать usage
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default ./config.yaml or ./configs/config.yaml)")

	root.AddCommand(
		newServeCmd(),
		newTUICmd(),
		newJournalCmd(),
	)

	return root
}
