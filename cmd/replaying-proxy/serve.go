package main

import (
	"os/signal"
	"syscall"

	"github.com/davidgenn/HttpReplayingProxy/pkg/proxy"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var f flagValues

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the replaying proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}

			srv, err := proxy.New(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.ListenAndServe(ctx)
		},
	}

	addServeFlags(cmd, &f)
	return cmd
}

