package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yunmindata/dedupe/internal/config"
	"github.com/yunmindata/dedupe/internal/storage"
)

var (
	// store is the run-history backend, opened before any command runs
	store storage.Storage

	dbPath     string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Near-duplicate detection for text corpora",
	Long: `dedupe removes near-duplicate documents from JSONL corpora using
MinHash signatures and banded locality-sensitive hashing.

Documents are tokenized into word and character shingles, reduced to
fixed-size signatures, and bucketed so that only likely duplicates are
ever compared. Confirmed duplicates are clustered and each cluster
keeps one representative.

Every run is recorded in a local SQLite history; see 'dedupe history'
and 'dedupe inspect'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		store, err = storage.NewStorage(context.Background(), &storage.Config{Path: dbPath})
		if err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
	},
}

// loadConfig resolves the engine configuration: a --config file when
// given, otherwise environment variables layered over defaults.
func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.FromEnv()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", storage.DefaultConfig().Path,
		"path to the run-history database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to a YAML engine config (default: DEDUPE_* environment variables)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
