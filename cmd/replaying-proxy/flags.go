package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/davidgenn/HttpReplayingProxy/pkg/config"
	"github.com/davidgenn/HttpReplayingProxy/pkg/fingerprint"
	"github.com/davidgenn/HttpReplayingProxy/pkg/logging"
	"github.com/spf13/cobra"
)

// flagValues holds the command-line overrides shared by all commands.
type flagValues struct {
	configPath   string
	backend      string
	port         int
	cacheDir     string
	ttl          int64
	matchHeaders string
	reset        bool
	logLevel     string
}

func addCacheFlags(cmd *cobra.Command, f *flagValues) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&f.cacheDir, "cache-dir", "", "directory holding recorded responses")
	cmd.Flags().Int64Var(&f.ttl, "ttl", 0, "time-to-live of recorded responses in seconds")
	cmd.Flags().StringVar(&f.matchHeaders, "match-headers", "", "header policy: IGNORE_HEADERS, MATCH_NAME_ONLY or MATCH_NAME_AND_VALUE")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
}

func addServeFlags(cmd *cobra.Command, f *flagValues) {
	addCacheFlags(cmd, f)
	cmd.Flags().StringVar(&f.backend, "backend", "", "base URL of the backend to record")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "port to listen on")
	cmd.Flags().BoolVar(&f.reset, "reset", false, "delete all recorded responses before starting")
}

// loadConfig builds the configuration from defaults, the optional config
// file, the environment and finally the flags set on cmd. It also installs
// the global logger.
func loadConfig(cmd *cobra.Command, f *flagValues) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend.URL = f.backend
	}
	if flags.Changed("port") {
		cfg.Listen = ":" + strconv.Itoa(f.port)
	}
	if flags.Changed("cache-dir") {
		cfg.Cache.Dir = f.cacheDir
	}
	if flags.Changed("ttl") {
		cfg.Cache.TTLSeconds = f.ttl
	}
	if flags.Changed("match-headers") {
		m, err := fingerprint.ParseMatchHeaders(f.matchHeaders)
		if err != nil {
			return nil, err
		}
		cfg.Cache.MatchHeaders = m
	}
	if flags.Changed("reset") {
		cfg.Cache.ResetAtStartup = f.reset
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logging.Setup(logging.Config{
		Level:  level,
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	return cfg, nil
}
