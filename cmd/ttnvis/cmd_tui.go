package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ttnvis/cmd/ttnvis/ui"
)

// tuiCmd launches the interactive viewer.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive report viewer",
	Long: `Opens an interactive viewer over the profiling artifacts with
dashboard, operations, performance, and tensor pages. When watching is
enabled the view reloads as the profiler rewrites its output.`,
	RunE: runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	if cfg.Reports.ProfilerDB == "" {
		return fmt.Errorf("no profiler database configured (use --db or reports.profiler_db)")
	}

	thresholds := ui.Thresholds{
		Sharding:   cfg.ShardingThresholds(),
		DataFormat: cfg.DataFormatThresholds(),
		Host:       cfg.HostOverheadThresholds(),
		MultiCQ:    cfg.MultiCQThresholds(),
	}

	// The loader re-opens the artifacts on every call so a watch-driven
	// reload picks up rewritten files.
	loader := func() (*ui.Data, error) {
		db, report, err := loadBoth()
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return ui.BuildData(db, report, thresholds)
	}

	var watch []string
	if cfg.TUI.WatchReports {
		watch = append(watch, cfg.Reports.ProfilerDB)
		if cfg.Reports.PerfReport != "" {
			watch = append(watch, cfg.Reports.PerfReport)
		}
	}

	logger.Debug("starting viewer",
		zap.Bool("watch", cfg.TUI.WatchReports),
		zap.Strings("paths", watch))
	return ui.Run(loader, watch)
}
