package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"ttnvis/internal/render"
)

var tensorsLimit int

// tensorsCmd lists snapshot tensors or shows one in detail.
var tensorsCmd = &cobra.Command{
	Use:   "tensors [tensor-id]",
	Short: "List tensors, or show one by id",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTensors,
}

func init() {
	tensorsCmd.Flags().IntVar(&tensorsLimit, "limit", 0, "maximum rows to show (0 = config default)")
}

func runTensors(cmd *cobra.Command, args []string) error {
	db, err := openSnapshot()
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid tensor id %q", args[0])
		}
		tensor, err := db.GetTensor(id)
		if err != nil {
			return err
		}
		if tensor == nil {
			return fmt.Errorf("tensor %d not found", id)
		}
		return render.JSON(os.Stdout, tensor.ToMap())
	}

	tensors, err := db.GetTensors()
	if err != nil {
		return err
	}

	limit := tensorsLimit
	if limit == 0 {
		limit = cfg.Display.TensorLimit
	}
	if limit > 0 && len(tensors) > limit {
		tensors = tensors[:limit]
	}
	rows := make([]map[string]any, 0, len(tensors))
	for i := range tensors {
		rows = append(rows, tensors[i].ToMap())
	}
	columns := []string{"id", "shape", "dtype", "layout", "buffer_type", "device_id", "address"}
	return render.Maps(os.Stdout, outputFormat, "Tensors", columns, rows)
}
