package main

import (
	"os"

	"github.com/spf13/cobra"

	"ttnvis/internal/analysis"
	"ttnvis/internal/render"
)

var hostLimit int

// hostOverheadCmd measures device idle time caused by host dispatch.
var hostOverheadCmd = &cobra.Command{
	Use:   "host-overhead",
	Short: "Measure host dispatch overhead from op-to-op gaps",
	RunE:  runHostOverhead,
}

var hostTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Rank operations by op-to-op gap",
	RunE:  runHostTop,
}

func init() {
	hostOverheadCmd.PersistentFlags().IntVar(&hostLimit, "limit", 0, "maximum rows to show (0 = config default)")
	hostOverheadCmd.AddCommand(hostTopCmd)
}

func newHostAnalyzer() (*analysis.HostOverheadAnalyzer, error) {
	report, err := loadPerfReport()
	if err != nil {
		return nil, err
	}
	return analysis.NewHostOverheadAnalyzerWithThresholds(
		report.Operations(), cfg.HostOverheadThresholds()), nil
}

func runHostOverhead(cmd *cobra.Command, args []string) error {
	a, err := newHostAnalyzer()
	if err != nil {
		return err
	}
	summary := a.GetSummary()

	if outputFormat == render.FormatJSON {
		return render.JSON(os.Stdout, summary.ToMap())
	}

	dist := a.GetOverheadDistribution()
	rows := make([]map[string]any, 0, len(dist))
	for _, e := range dist {
		rows = append(rows, map[string]any{
			"overhead_band": e.Label,
			"count":         e.Count,
			"percent":       e.Percent,
		})
	}
	columns := []string{"overhead_band", "count", "percent"}
	if err := render.Maps(os.Stdout, outputFormat, "Overhead Distribution", columns, rows); err != nil {
		return err
	}
	if outputFormat == render.FormatCSV {
		return nil
	}
	return render.Recommendations(os.Stdout, "Recommendations", summary.Recommendations)
}

func runHostTop(cmd *cobra.Command, args []string) error {
	a, err := newHostAnalyzer()
	if err != nil {
		return err
	}
	limit := hostLimit
	if limit == 0 {
		limit = cfg.Display.TopOpLimit
	}
	top := a.GetTopOverheadOperations(limit)
	rows := make([]map[string]any, 0, len(top))
	for i := range top {
		rows = append(rows, top[i].ToMap())
	}
	columns := []string{"op_code", "device_time_us", "op_to_op_gap_us", "overhead_percent", "core_count"}
	return render.Maps(os.Stdout, outputFormat, "Top Overhead Operations", columns, rows)
}
