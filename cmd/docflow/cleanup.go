package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/feichai0017/pdf-analyzer/pkg/storage"
)

var olderThan time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete stored artifacts older than a retention period",
	Args:  cobra.NoArgs,
	RunE:  runCleanup,
}

func init() {
	cleanupCmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Retention period")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	if olderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := storage.NewStorage(cmd.Context(), cfg.Storage, log)
	if err != nil {
		return err
	}
	threshold := time.Now().Add(-olderThan)
	if err := store.CleanupBefore(cmd.Context(), threshold); err != nil {
		return fmt.Errorf("failed to cleanup storage: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s artifacts last modified before %s\n", cfg.Storage.Type, threshold.Format(time.RFC3339))
	return nil
}
