package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "gau-media",
		Short:        "Maintenance commands for the media service",
		SilenceUsage: true,
	}
	root.AddCommand(newCleanupCommand(), newMigrateCommand())
	return root
}
