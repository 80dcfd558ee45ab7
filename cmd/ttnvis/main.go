// ttnvis inspects ttnn profiler artifacts: the SQLite operation
// snapshot and the device performance CSV. Every command is read-only
// over those files.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"ttnvis/internal/config"
	"ttnvis/internal/perfcsv"
	"ttnvis/internal/profdb"
	"ttnvis/internal/render"
)

var (
	// Global flags
	configPath   string
	profilerPath string
	perfPath     string
	outputFormat string
	verbose      bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ttnvis",
	Short: "ttnvis - ttnn profiler report analyzer",
	Long: `ttnvis analyzes ttnn profiling artifacts: the operation snapshot
(SQLite) and the device performance report (ops_perf_results CSV).

It answers what ran, where tensors lived, and where the time went:
memory maps, op distributions, sharding and data-format audits, and
host/IO overhead analyses with tuning recommendations.

Reports are opened read-only; ttnvis never modifies profiler output.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if profilerPath != "" {
			cfg.Reports.ProfilerDB = profilerPath
		}
		if perfPath != "" {
			cfg.Reports.PerfReport = perfPath
		}
		if !render.ValidFormat(outputFormat) {
			return fmt.Errorf("unknown output format %q (want table, json, or csv)", outputFormat)
		}

		zapCfg := zap.NewProductionConfig()
		if verbose || cfg.Logging.Level == "debug" {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		if cfg.Logging.File != "" {
			zapCfg.OutputPaths = []string{cfg.Logging.File}
		} else {
			zapCfg.OutputPaths = []string{"stderr"}
		}
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		// One id per invocation so log lines from the same run can be
		// correlated when the output path is shared.
		logger = logger.With(zap.String("run_id", uuid.NewString()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// openSnapshot opens the configured profiler database.
func openSnapshot() (*profdb.DB, error) {
	if cfg.Reports.ProfilerDB == "" {
		return nil, fmt.Errorf("no profiler database configured (use --db or reports.profiler_db)")
	}
	logger.Debug("opening profiler snapshot", zap.String("path", cfg.Reports.ProfilerDB))
	return profdb.Open(cfg.Reports.ProfilerDB)
}

// loadPerfReport locates and parses the configured performance CSV.
func loadPerfReport() (*perfcsv.Report, error) {
	if cfg.Reports.PerfReport == "" {
		return nil, fmt.Errorf("no performance report configured (use --perf or reports.perf_report)")
	}
	logger.Debug("loading performance report", zap.String("path", cfg.Reports.PerfReport))
	return perfcsv.Load(cfg.Reports.PerfReport)
}

// loadBoth opens the snapshot and, when configured, the performance
// report in parallel. The report is optional here: a report failure is
// logged and returned as nil, a snapshot failure fails the load.
func loadBoth() (*profdb.DB, *perfcsv.Report, error) {
	var db *profdb.DB
	var report *perfcsv.Report

	var g errgroup.Group
	g.Go(func() error {
		var err error
		db, err = openSnapshot()
		return err
	})
	if cfg.Reports.PerfReport != "" {
		g.Go(func() error {
			r, err := loadPerfReport()
			if err != nil {
				logger.Warn("performance report unavailable", zap.Error(err))
				return nil
			}
			report = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return db, report, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&profilerPath, "db", "", "profiler snapshot (SQLite) path")
	rootCmd.PersistentFlags().StringVar(&perfPath, "perf", "", "performance CSV file or directory")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", render.FormatTable, "output format: table, json, csv")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(operationsCmd)
	rootCmd.AddCommand(tensorsCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(l1Cmd)
	rootCmd.AddCommand(perfCmd)
	rootCmd.AddCommand(analysisCmd)
	rootCmd.AddCommand(dtypeCmd)
	rootCmd.AddCommand(shardingCmd)
	rootCmd.AddCommand(hostOverheadCmd)
	rootCmd.AddCommand(multiCQCmd)
	rootCmd.AddCommand(tuiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
