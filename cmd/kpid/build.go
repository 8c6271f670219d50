package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/engine"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/export"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/health"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/insight"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/quality"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/report"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/server"
)

// buildSummary is what `kpid build` prints.
type buildSummary struct {
	SnapshotID string           `json:"snapshot_id"`
	BuiltAt    time.Time        `json:"built_at"`
	Rows       int              `json:"rows"`
	Warnings   []string         `json:"warnings,omitempty"`
	Global     insight.Global   `json:"global_kpis"`
	NodeHealth []health.Record  `json:"node_health"`
	Quality    []quality.Report `json:"quality"`
}

func buildCmd(cfgPath *string) *cobra.Command {
	var (
		out     string
		persist bool
	)
	build := &cobra.Command{
		Use:   "build",
		Short: "Build one snapshot and print its global KPIs and quality reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *cfgPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, cfg.Refresh.Timeout)
			defer cancel()

			snap, err := engine.New(engine.WithPricing(cfg.Pricing)).Build(ctx, cfg.BaseDir)
			if err != nil {
				return err
			}

			if out != "" {
				if err := exportSnapshot(snap, out); err != nil {
					return err
				}
			}

			if persist {
				sinks, err := server.OpenSinks(cfg.Storage)
				if err != nil {
					return err
				}
				server.PersistTo(sinks.All()...)(snap)
				if err := sinks.Close(); err != nil {
					return err
				}
			}

			return printSummary(cmd.OutOrStdout(), snap)
		},
	}
	addCommonFlags(build)
	build.Flags().StringVarP(&out, "out", "o", "", "write the unified table to this .csv or .json file")
	build.Flags().BoolVar(&persist, "persist", false, "save the snapshot to the configured stores")
	return build
}

func printSummary(w io.Writer, snap *engine.Snapshot) error {
	global, errs := snap.GlobalKPIs()
	for _, err := range errs {
		slog.Warn("global KPI unavailable", "error", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(buildSummary{
		SnapshotID: snap.ID,
		BuiltAt:    snap.BuiltAt,
		Rows:       snap.Len(),
		Warnings:   snap.Warnings,
		Global:     report.GlobalKPIs(global),
		NodeHealth: report.NodeHealth(snap.NodeHealth()),
		Quality:    snap.QualityReports(),
	})
}

// exportSnapshot writes the unified table, choosing the format by file
// extension.
func exportSnapshot(snap *engine.Snapshot, path string) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format != "csv" && format != "json" {
		return fmt.Errorf("unsupported export format %q (use .csv or .json)", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	opts := export.ExportOptions{SnapshotID: snap.ID, BuiltAt: snap.BuiltAt, Format: format}
	exporter := export.NewExporter()
	var result *export.ExportResult
	if format == "csv" {
		result, err = exporter.ExportToCSV(f, snap.Unified(), opts)
	} else {
		result, err = exporter.ExportToJSON(f, snap.Unified(), opts)
	}
	if err != nil {
		return err
	}
	slog.Info("exported unified table", "path", path, "rows", result.RowsExported)
	return f.Close()
}
