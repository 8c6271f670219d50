// Command kpid builds operational KPI snapshots from the forecast fact
// tables and serves them over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/config"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "kpid",
		Short:        "Operational KPI engine for factories, DCs and stores",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/kpid.yaml or ./kpid.yaml)")

	root.AddCommand(serveCmd(&cfgPath), buildCmd(&cfgPath))
	return root
}

// loadConfig reads the config and sets up logging. Flags override the
// file and environment.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("base-dir") {
		cfg.BaseDir, _ = cmd.Flags().GetString("base-dir")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logging.Init(cfg.Log.JSON, logging.ParseLevel(cfg.Log.Level))
	return cfg, nil
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("base-dir", config.DefaultBaseDir, "directory holding datasets/")
	cmd.Flags().String("log-level", "info", "debug, info, warn or error")
}
