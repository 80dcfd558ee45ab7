package main

import (
	"os"

	"github.com/spf13/cobra"

	"ttnvis/internal/render"
)

// devicesCmd lists the devices recorded in the snapshot.
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices in the profiler snapshot",
	RunE:  runDevices,
}

func runDevices(cmd *cobra.Command, args []string) error {
	db, err := openSnapshot()
	if err != nil {
		return err
	}
	defer db.Close()

	devices, err := db.GetDevices()
	if err != nil {
		return err
	}

	rows := make([]map[string]any, 0, len(devices))
	for i := range devices {
		rows = append(rows, devices[i].ToMap())
	}
	columns := []string{
		"id", "arch", "total_cores", "total_compute_cores",
		"num_storage_cores", "worker_l1_size", "l1_num_banks",
		"total_l1_memory", "total_l1_for_tensors",
	}
	return render.Maps(os.Stdout, outputFormat, "Devices", columns, rows)
}
