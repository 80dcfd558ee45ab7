package main

import (
	"os"

	"github.com/spf13/cobra"

	"ttnvis/internal/render"
)

var perfLimit int

// perfCmd inspects the raw performance report.
var perfCmd = &cobra.Command{
	Use:   "perf",
	Short: "Show the performance report rows and timing summary",
	RunE:  runPerf,
}

var perfSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the performance report timing summary",
	RunE:  runPerfSummary,
}

func init() {
	perfCmd.Flags().IntVar(&perfLimit, "limit", 0, "maximum rows to show (0 = config default)")
	perfCmd.AddCommand(perfSummaryCmd)
}

func runPerf(cmd *cobra.Command, args []string) error {
	report, err := loadPerfReport()
	if err != nil {
		return err
	}

	ops := report.Operations()
	limit := perfLimit
	if limit == 0 {
		limit = cfg.Display.OperationLimit
	}
	if limit > 0 && len(ops) > limit {
		ops = ops[:limit]
	}

	rows := make([]map[string]any, 0, len(ops))
	for i := range ops {
		rows = append(rows, ops[i].ToMap())
	}
	columns := []string{
		"op_code", "op_name", "core_count", "execution_time_ns",
		"op_to_op_gap_ns", "fpu_util_percent", "dram_bw_util_percent",
		"bound", "math_fidelity",
	}
	return render.Maps(os.Stdout, outputFormat, "Performance", columns, rows)
}

func runPerfSummary(cmd *cobra.Command, args []string) error {
	report, err := loadPerfReport()
	if err != nil {
		return err
	}
	summary := report.GetSummary()
	return render.JSON(os.Stdout, summary.ToMap())
}
