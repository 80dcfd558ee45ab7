package main

import (
	"os"

	"github.com/spf13/cobra"

	"ttnvis/internal/analysis"
	"ttnvis/internal/render"
)

var multiCQLimit int

// multiCQCmd evaluates whether a second command queue would help.
var multiCQCmd = &cobra.Command{
	Use:   "multi-cq",
	Short: "Evaluate multi command queue benefit from I/O overhead",
	RunE:  runMultiCQ,
}

var multiCQTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Rank operations by I/O overhead",
	RunE:  runMultiCQTop,
}

func init() {
	multiCQCmd.PersistentFlags().IntVar(&multiCQLimit, "limit", 0, "maximum rows to show (0 = config default)")
	multiCQCmd.AddCommand(multiCQTopCmd)
}

func newMultiCQAnalyzer() (*analysis.MultiCQAnalyzer, error) {
	report, err := loadPerfReport()
	if err != nil {
		return nil, err
	}
	return analysis.NewMultiCQAnalyzerWithThresholds(
		report.Operations(), cfg.MultiCQThresholds()), nil
}

func runMultiCQ(cmd *cobra.Command, args []string) error {
	a, err := newMultiCQAnalyzer()
	if err != nil {
		return err
	}
	summary := a.GetSummary()

	if outputFormat == render.FormatJSON {
		return render.JSON(os.Stdout, summary.ToMap())
	}

	dist := a.GetIODistribution()
	rows := make([]map[string]any, 0, len(dist))
	for _, e := range dist {
		rows = append(rows, map[string]any{
			"io_overhead_band": e.Label,
			"count":            e.Count,
			"percent":          e.Percent,
		})
	}
	columns := []string{"io_overhead_band", "count", "percent"}
	if err := render.Maps(os.Stdout, outputFormat, "I/O Overhead Distribution", columns, rows); err != nil {
		return err
	}
	if outputFormat == render.FormatCSV {
		return nil
	}
	return render.Recommendations(os.Stdout, "Recommendations", summary.Recommendations)
}

func runMultiCQTop(cmd *cobra.Command, args []string) error {
	a, err := newMultiCQAnalyzer()
	if err != nil {
		return err
	}
	limit := multiCQLimit
	if limit == 0 {
		limit = cfg.Display.TopOpLimit
	}
	top := a.GetIOBoundOperations(limit)
	rows := make([]map[string]any, 0, len(top))
	for i := range top {
		rows = append(rows, top[i].ToMap())
	}
	columns := []string{
		"op_code", "device_time_ns", "dispatch_time_ns", "wait_time_ns",
		"erisc_time_ns", "io_overhead_percent", "is_io_bound",
	}
	return render.Maps(os.Stdout, outputFormat, "Top I/O-Bound Operations", columns, rows)
}
