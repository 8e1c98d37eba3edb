package main

import (
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Pull the season's sources into raw bundles",
	Long:  "Reads sources/<year>.json, downloads every source and stores new raw bundles keyed by content hash. Superseded bundles are deleted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd.Context(), "fetch", (*session).fetch)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
