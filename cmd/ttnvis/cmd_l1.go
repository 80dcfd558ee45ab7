package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"ttnvis/internal/render"
)

// l1Cmd maps one operation's L1 memory by address.
var l1Cmd = &cobra.Command{
	Use:   "l1 <operation-id>",
	Short: "Show the L1 memory map at one operation",
	Long: `Shows the L1 (and L1_SMALL) allocations present while one operation
ran, ordered by address, with the tensor found at each address when
one is known. Allocations absent at the previous operation are marked
new.`,
	Args: cobra.ExactArgs(1),
	RunE: runL1,
}

func runL1(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid operation id %q", args[0])
	}

	db, err := openSnapshot()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.GetL1Report(id)
	if err != nil {
		return err
	}

	rows := make([]map[string]any, 0, len(entries))
	for i := range entries {
		rows = append(rows, entries[i].ToMap())
	}
	columns := []string{
		"address", "size", "tensor_id", "shape", "dtype",
		"memory_layout", "buffer_type", "is_new",
	}
	title := fmt.Sprintf("L1 Memory (operation %d)", id)
	return render.Maps(os.Stdout, outputFormat, title, columns, rows)
}
