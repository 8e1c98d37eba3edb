package main

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage for a season",
	Long:  "Runs fetch, clean, unpack, athletes and publish in order. A stage failing as a whole stops the run; per-item failures are collected in the run report.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd.Context(), "run",
			(*session).fetch,
			(*session).clean,
			(*session).unpack,
			(*session).athletes,
			(*session).publish,
		)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
