package main

import (
	"fmt"

	"github.com/davidgenn/HttpReplayingProxy/pkg/cache"
	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain recorded responses",
	}

	cmd.AddCommand(
		newCacheStatsCmd(),
		newCacheResetCmd(),
		newCacheCompactCmd(),
	)
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	var f flagValues

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd, &f)
			if err != nil {
				return err
			}

			stats := store.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "Directory:    %s\nEntries:      %d\nExpired:      %d\nFingerprints: %d\n",
				store.Dir(), stats.Entries, stats.Expired, stats.Fingerprints)
			return nil
		},
	}

	addCacheFlags(cmd, &f)
	return cmd
}

func newCacheResetCmd() *cobra.Command {
	var f flagValues

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all recorded responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}

			removed, err := cache.Reset(cfg.Cache.Dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache files from %s.\n", removed, cfg.Cache.Dir)
			return nil
		},
	}

	addCacheFlags(cmd, &f)
	return cmd
}

func newCacheCompactCmd() *cobra.Command {
	var f flagValues

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Delete expired recorded responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd, &f)
			if err != nil {
				return err
			}

			removed, err := store.Compact()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired cache files from %s.\n", removed, store.Dir())
			return nil
		},
	}

	addCacheFlags(cmd, &f)
	return cmd
}

// openStore loads the cache directory named by the configuration without
// resetting it.
func openStore(cmd *cobra.Command, f *flagValues) (*cache.Store, error) {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.TTLSeconds <= 0 {
		return nil, fmt.Errorf("cache ttl_seconds must be positive (got %d)", cfg.Cache.TTLSeconds)
	}

	return cache.Open(cache.Config{
		Dir:          cfg.Cache.Dir,
		TTLSeconds:   cfg.Cache.TTLSeconds,
		MatchHeaders: cfg.Cache.MatchHeaders,
	})
}
