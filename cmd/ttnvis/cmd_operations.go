package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ttnvis/internal/profdb"
	"ttnvis/internal/render"
)

var (
	operationsLimit        int
	operationsFilter       string
	operationsSortDuration bool
)

// operationsCmd lists logged operations or shows one in detail.
var operationsCmd = &cobra.Command{
	Use:   "operations [operation-id]",
	Short: "List operations, or show one with its arguments and tensors",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOperations,
}

func init() {
	operationsCmd.Flags().IntVar(&operationsLimit, "limit", 0, "maximum rows to show (0 = config default)")
	operationsCmd.Flags().StringVar(&operationsFilter, "name", "", "substring filter on operation name")
	operationsCmd.Flags().BoolVar(&operationsSortDuration, "sort-duration", false, "sort by host duration, longest first")
}

func runOperations(cmd *cobra.Command, args []string) error {
	db, err := openSnapshot()
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid operation id %q", args[0])
		}
		return showOperation(db, id)
	}

	ops, err := db.GetOperations()
	if err != nil {
		return err
	}

	if operationsSortDuration {
		// Untimed operations sink to the end.
		sort.SliceStable(ops, func(i, j int) bool {
			di, dj := ops[i].Duration, ops[j].Duration
			if di == nil {
				return false
			}
			if dj == nil {
				return true
			}
			return *di > *dj
		})
	}

	limit := operationsLimit
	if limit == 0 {
		limit = cfg.Display.OperationLimit
	}
	rows := make([]map[string]any, 0, len(ops))
	for i := range ops {
		if operationsFilter != "" &&
			!strings.Contains(strings.ToLower(ops[i].Name), strings.ToLower(operationsFilter)) {
			continue
		}
		rows = append(rows, ops[i].ToMap())
		if limit > 0 && len(rows) >= limit {
			break
		}
	}
	columns := []string{"id", "name", "duration", "device_id", "stack_trace_id"}
	return render.Maps(os.Stdout, outputFormat, "Operations", columns, rows)
}

// showOperation prints one operation with its arguments, tensors, and
// stack trace as JSON regardless of the output flag; the nested shape
// does not fit a flat table.
func showOperation(db *profdb.DB, id int) error {
	op, err := db.GetOperation(id)
	if err != nil {
		return err
	}
	if op == nil {
		return fmt.Errorf("operation %d not found", id)
	}

	arguments, err := db.GetOperationArguments(id)
	if err != nil {
		return err
	}
	inputs, err := db.GetInputTensors(id)
	if err != nil {
		return err
	}
	outputs, err := db.GetOutputTensors(id)
	if err != nil {
		return err
	}

	detail := op.ToMap()
	argMaps := make([]map[string]any, 0, len(arguments))
	for i := range arguments {
		argMaps = append(argMaps, arguments[i].ToMap())
	}
	detail["arguments"] = argMaps
	inputMaps := make([]map[string]any, 0, len(inputs))
	for i := range inputs {
		inputMaps = append(inputMaps, inputs[i].ToMap())
	}
	detail["input_tensors"] = inputMaps
	outputMaps := make([]map[string]any, 0, len(outputs))
	for i := range outputs {
		outputMaps = append(outputMaps, outputs[i].ToMap())
	}
	detail["output_tensors"] = outputMaps

	if op.StackTraceID != nil {
		trace, err := db.GetStackTrace(*op.StackTraceID)
		if err != nil {
			return err
		}
		detail["stack_trace"] = trace
	}
	return render.JSON(os.Stdout, detail)
}
