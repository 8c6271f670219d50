package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/server"
)

func serveCmd(cfgPath *string) *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Build snapshots on schedule and serve the KPI API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetString("port")
			}

			sinks, err := server.OpenSinks(cfg.Storage)
			if err != nil {
				return err
			}
			defer func() {
				if err := sinks.Close(); err != nil {
					slog.Error("failed to close snapshot stores", "error", err)
				}
			}()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("starting kpid", "version", server.Version, "base_dir", cfg.BaseDir, "port", cfg.Server.Port)
			if err := server.New(cfg, sinks).Run(ctx); err != nil {
				return err
			}
			slog.Info("kpid stopped")
			return nil
		},
	}
	addCommonFlags(serve)
	serve.Flags().String("port", "", "listen port (overrides server.port)")
	return serve
}
