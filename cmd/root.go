package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/velodata/race-pipeline/internal/config"
)

var cfg *config.Config

var (
	flagYear         int
	flagDryRun       bool
	flagSnapshotDate string
)

var rootCmd = &cobra.Command{
	Use:   "racedata",
	Short: "Cycling race results pipeline",
	Long:  "Fetches race results and membership snapshots, normalizes them into canonical events, and aggregates per-athlete ledgers, teams of record and upgrade-date estimates.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if cmd.Flags().Changed("year") {
			cfg.Pipeline.Year = flagYear
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().IntVar(&flagYear, "year", 0, "season to process (default from config, then the current year)")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "compute everything but write nothing")
	rootCmd.PersistentFlags().StringVar(&flagSnapshotDate, "snapshot-date", "", "date (YYYY-MM-DD) given to membership snapshots pulled by this run (default today)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
