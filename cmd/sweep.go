package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/satriahrh/audioscribe/adapters/scratch"
	"github.com/satriahrh/audioscribe/internal/cleanup"
)

var sweepMaxAge time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete stale files from the scratch directory once",
	Long: `Delete files in the scratch directory older than --max-age.

The server runs this on a schedule; use the command after a crash or from cron.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().DurationVar(&sweepMaxAge, "max-age", 0, "Delete files older than this (default TEMP_RETENTION)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	maxAge := sweepMaxAge
	if maxAge <= 0 {
		maxAge = cfg.TempRetention
	}

	// Sessions live in the server process; a one-shot sweep only sees files
	store := scratch.NewStore(cfg.ScratchDir, logger)
	sweeper := cleanup.NewSweeper(store, nil, nil, cleanup.Config{MaxAge: maxAge}, logger)
	result := sweeper.RunOnce(cmd.Context())

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale file(s) from %s\n", result.Files, store.Dir())
	return nil
}
