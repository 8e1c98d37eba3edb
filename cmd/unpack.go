package main

import (
	"github.com/spf13/cobra"
)

var unpackCmd = &cobra.Command{
	Use:   "unpack",
	Short: "Publish the season's events and series",
	Long:  "Writes public event documents and the season's event listing without internal fields.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd.Context(), "unpack", (*session).unpack)
	},
}

func init() {
	rootCmd.AddCommand(unpackCmd)
}
