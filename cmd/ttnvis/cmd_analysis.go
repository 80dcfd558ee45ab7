package main

import (
	"os"

	"github.com/spf13/cobra"

	"ttnvis/internal/analysis"
	"ttnvis/internal/render"
)

var analysisLimit int

// analysisCmd groups the performance analyses.
var analysisCmd = &cobra.Command{
	Use:   "analysis",
	Short: "Performance analyses over the device report",
	Long: `Analyses derived from the performance CSV:

  op-dist     - device time by op code
  core-eff    - timing and utilization by core count
  matmul      - matmul efficiency against the performance model
  conv        - convolution efficiency against the performance model
  bottlenecks - low-efficiency, high-gap, and memory-bound offenders
  summary     - one-page run overview`,
}

var analysisOpDistCmd = &cobra.Command{
	Use:   "op-dist",
	Short: "Device time distribution by op code",
	RunE:  runAnalysisOpDist,
}

var analysisCoreEffCmd = &cobra.Command{
	Use:   "core-eff",
	Short: "Timing and utilization grouped by core count",
	RunE:  runAnalysisCoreEff,
}

var analysisMatmulCmd = &cobra.Command{
	Use:   "matmul",
	Short: "Matmul efficiency analysis",
	RunE:  runAnalysisMatmul,
}

var analysisConvCmd = &cobra.Command{
	Use:   "conv",
	Short: "Convolution efficiency analysis",
	RunE:  runAnalysisConv,
}

var analysisBottlenecksCmd = &cobra.Command{
	Use:   "bottlenecks",
	Short: "Flag low-efficiency, high-gap, and memory-bound operations",
	RunE:  runAnalysisBottlenecks,
}

var analysisSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "One-page performance overview",
	RunE:  runAnalysisSummary,
}

func init() {
	analysisCmd.PersistentFlags().IntVar(&analysisLimit, "limit", 0, "maximum rows to show (0 = config default)")
	analysisCmd.AddCommand(analysisOpDistCmd)
	analysisCmd.AddCommand(analysisCoreEffCmd)
	analysisCmd.AddCommand(analysisMatmulCmd)
	analysisCmd.AddCommand(analysisConvCmd)
	analysisCmd.AddCommand(analysisBottlenecksCmd)
	analysisCmd.AddCommand(analysisSummaryCmd)
}

func newPerfAnalyzer() (*analysis.PerfAnalyzer, error) {
	report, err := loadPerfReport()
	if err != nil {
		return nil, err
	}
	return analysis.NewPerfAnalyzer(report.Operations()), nil
}

func topLimit() int {
	if analysisLimit > 0 {
		return analysisLimit
	}
	return cfg.Display.TopOpLimit
}

func runAnalysisOpDist(cmd *cobra.Command, args []string) error {
	a, err := newPerfAnalyzer()
	if err != nil {
		return err
	}
	dist := a.OpDistribution(topLimit())
	rows := make([]map[string]any, 0, len(dist))
	for i := range dist {
		rows = append(rows, dist[i].ToMap())
	}
	columns := []string{"op_code", "count", "total_time_ns", "avg_time_ns", "percent_time", "percent_count"}
	return render.Maps(os.Stdout, outputFormat, "Op Distribution", columns, rows)
}

func runAnalysisCoreEff(cmd *cobra.Command, args []string) error {
	a, err := newPerfAnalyzer()
	if err != nil {
		return err
	}
	groups := a.CoreEfficiency()
	rows := make([]map[string]any, 0, len(groups))
	for i := range groups {
		rows = append(rows, groups[i].ToMap())
	}
	columns := []string{"core_count", "op_count", "total_time_ns", "avg_time_ns", "avg_fpu_util", "compute_bound", "memory_bound", "balanced"}
	return render.Maps(os.Stdout, outputFormat, "Core Efficiency", columns, rows)
}

func runAnalysisMatmul(cmd *cobra.Command, args []string) error {
	a, err := newPerfAnalyzer()
	if err != nil {
		return err
	}
	return renderOpTypeAnalysis("Matmul Analysis", a.MatmulAnalysis(topLimit()))
}

func runAnalysisConv(cmd *cobra.Command, args []string) error {
	a, err := newPerfAnalyzer()
	if err != nil {
		return err
	}
	return renderOpTypeAnalysis("Conv Analysis", a.ConvAnalysis(topLimit()))
}

func renderOpTypeAnalysis(title string, result analysis.OpTypeAnalysis) error {
	if outputFormat == render.FormatJSON {
		return render.JSON(os.Stdout, result.ToMap())
	}
	rows := make([]map[string]any, 0, len(result.Operations))
	for i := range result.Operations {
		rows = append(rows, result.Operations[i].ToMap())
	}
	columns := []string{"op_code", "core_count", "device_time_ns", "ideal_time_ns", "efficiency", "fpu_util", "bound", "math_fidelity"}
	return render.Maps(os.Stdout, outputFormat, title, columns, rows)
}

func runAnalysisBottlenecks(cmd *cobra.Command, args []string) error {
	a, err := newPerfAnalyzer()
	if err != nil {
		return err
	}
	report := a.Bottlenecks(cfg.BottleneckThresholds())
	if outputFormat == render.FormatJSON {
		return render.JSON(os.Stdout, report.ToMap())
	}

	sections := []struct {
		title string
		infos []analysis.BottleneckInfo
	}{
		{"Low Efficiency", report.LowEfficiency},
		{"High Op-to-Op Gap", report.HighGap},
		{"Memory Inefficient", report.MemoryInefficient},
	}
	columns := []string{"op_code", "device_time_ns", "efficiency", "issue"}
	for _, s := range sections {
		rows := make([]map[string]any, 0, len(s.infos))
		for i := range s.infos {
			rows = append(rows, s.infos[i].ToMap())
		}
		if err := render.Maps(os.Stdout, outputFormat, s.title, columns, rows); err != nil {
			return err
		}
	}
	return nil
}

func runAnalysisSummary(cmd *cobra.Command, args []string) error {
	a, err := newPerfAnalyzer()
	if err != nil {
		return err
	}
	summary := a.GetSummary()
	return render.JSON(os.Stdout, summary.ToMap())
}
