package main

import (
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the athlete list and profiles",
	Long:  "Writes public/athletes.json and one profile per athlete, removing profiles of athletes no longer listed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd.Context(), "publish", (*session).publish)
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
}
