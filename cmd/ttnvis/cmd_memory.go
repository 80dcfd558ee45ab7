package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"ttnvis/internal/render"
)

var memoryOperationID int

// memoryCmd summarizes buffer memory usage.
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Show memory usage by class, or buffers of one operation",
	RunE:  runMemory,
}

func init() {
	memoryCmd.Flags().IntVar(&memoryOperationID, "operation", -1, "restrict to one operation's buffers")
}

func runMemory(cmd *cobra.Command, args []string) error {
	db, err := openSnapshot()
	if err != nil {
		return err
	}
	defer db.Close()

	if memoryOperationID >= 0 {
		buffers, err := db.GetBuffers(&memoryOperationID)
		if err != nil {
			return err
		}
		rows := make([]map[string]any, 0, len(buffers))
		for i := range buffers {
			rows = append(rows, buffers[i].ToMap())
		}
		columns := []string{"id", "address", "max_size", "buffer_type", "device_id", "operation_id"}
		title := fmt.Sprintf("Buffers (operation %d)", memoryOperationID)
		return render.Maps(os.Stdout, outputFormat, title, columns, rows)
	}

	summary, err := db.GetMemorySummary()
	if err != nil {
		return err
	}

	if outputFormat == render.FormatJSON {
		return render.JSON(os.Stdout, summary.ToMap())
	}

	table := render.NewTable("Memory Summary", "CLASS", "USED", "TOTAL", "USAGE", "BUFFERS")
	table.AddRow("L1",
		formatBytes(summary.L1Used),
		formatBytes(summary.L1Total),
		fmt.Sprintf("%.2f%%", summary.L1UsagePercent()),
		strconv.Itoa(summary.L1BufferCount))
	dramTotal := "-"
	if summary.DRAMTotal > 0 {
		dramTotal = formatBytes(summary.DRAMTotal)
	}
	table.AddRow("DRAM",
		formatBytes(summary.DRAMUsed),
		dramTotal,
		fmt.Sprintf("%.2f%%", summary.DRAMUsagePercent()),
		strconv.Itoa(summary.DRAMBufferCount))
	if outputFormat == render.FormatCSV {
		return table.RenderCSV(os.Stdout)
	}
	return table.Render(os.Stdout)
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GiB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KiB", float64(b)/(1<<10))
	}
	return fmt.Sprintf("%d B", b)
}
