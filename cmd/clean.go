package main

import (
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Parse raw bundles into canonical documents",
	Long:  "Parses every raw bundle in the season manifest with the parser of its provider and writes clean events, series and membership snapshots.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd.Context(), "clean", (*session).clean)
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
