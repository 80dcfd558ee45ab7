package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"ttnvis/internal/render"
)

// infoCmd summarizes the configured reports.
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Summarize the profiler snapshot and performance report",
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	db, report, err := loadBoth()
	if err != nil {
		return err
	}
	defer db.Close()

	info, err := db.GetReportInfo()
	if err != nil {
		return err
	}

	// The performance report is optional for info: summarize it when
	// present, keep going when it is not.
	result := info.ToMap()
	if report != nil {
		result["performance_path"] = report.Path()
		perfSummary := report.GetSummary()
		result["performance"] = perfSummary.ToMap()
	}

	if outputFormat == render.FormatJSON {
		return render.JSON(os.Stdout, result)
	}

	table := render.NewTable("Report Info", "FIELD", "VALUE")
	table.AddRow("Profiler DB", info.ProfilerPath)
	table.AddRow("Operations", strconv.Itoa(info.OperationCount))
	table.AddRow("Tensors", strconv.Itoa(info.TensorCount))
	table.AddRow("Buffers", strconv.Itoa(info.BufferCount))
	table.AddRow("Devices", strconv.Itoa(info.DeviceCount))
	table.AddRow("Total Duration", fmt.Sprintf("%.3f ms", info.TotalDurationNs/1e6))
	if path, ok := result["performance_path"].(string); ok {
		table.AddRow("Performance CSV", path)
	}
	if outputFormat == render.FormatCSV {
		return table.RenderCSV(os.Stdout)
	}
	return table.Render(os.Stdout)
}
