package commands

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("docftp %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}
