package main

import (
	"github.com/spf13/cobra"
)

var athletesCmd = &cobra.Command{
	Use:   "athletes",
	Short: "Aggregate athletes, ledgers, teams and upgrade dates",
	Long:  "Builds athlete identities and the name lookup, merges race and upgrade-points ledgers, resolves teams of record and estimates upgrade dates.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd.Context(), "athletes", (*session).athletes)
	},
}

func init() {
	rootCmd.AddCommand(athletesCmd)
}
