package profdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"ttnvis/internal/types"
)

// newSnapshot writes a minimal profiler snapshot to a temp file and
// returns its path.
func newSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.sqlite")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer db.Close()

	schema := []string{
		`CREATE TABLE devices (
			device_id INTEGER PRIMARY KEY,
			num_y_cores INTEGER, num_x_cores INTEGER,
			num_y_compute_cores INTEGER, num_x_compute_cores INTEGER,
			worker_l1_size INTEGER, l1_num_banks INTEGER, l1_bank_size INTEGER,
			address_at_first_l1_bank INTEGER, address_at_first_l1_cb_buffer INTEGER,
			num_banks_per_storage_core INTEGER, num_compute_cores INTEGER,
			num_storage_cores INTEGER, total_l1_memory INTEGER,
			total_l1_for_tensors INTEGER, cb_limit INTEGER
		)`,
		`CREATE TABLE operations (
			operation_id INTEGER PRIMARY KEY, name TEXT, duration REAL,
			device_id INTEGER, stack_trace_id INTEGER, captured_graph_id INTEGER
		)`,
		`CREATE TABLE operation_arguments (
			operation_id INTEGER, name TEXT, value TEXT
		)`,
		`CREATE TABLE tensors (
			tensor_id INTEGER PRIMARY KEY, shape TEXT, dtype TEXT, layout TEXT,
			memory_config TEXT, device_id INTEGER, address INTEGER, buffer_type TEXT
		)`,
		`CREATE TABLE input_tensors (operation_id INTEGER, tensor_id INTEGER)`,
		`CREATE TABLE output_tensors (operation_id INTEGER, tensor_id INTEGER)`,
		`CREATE TABLE buffers (
			operation_id INTEGER, device_id INTEGER, address INTEGER,
			max_size_per_bank INTEGER, buffer_type INTEGER
		)`,
		`CREATE TABLE buffer_pages (
			operation_id INTEGER, buffer_id INTEGER, core_x INTEGER, core_y INTEGER,
			page_index INTEGER, page_address INTEGER, page_size INTEGER, device_id INTEGER
		)`,
		`CREATE TABLE stack_traces (stack_trace_id INTEGER PRIMARY KEY, stack_trace TEXT)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	inserts := []struct {
		stmt string
		args []any
	}{
		{`INSERT INTO devices VALUES (0, 10, 12, 8, 8, 1499136, 64, 1370112,
			1048576, 1048576, 2, 64, 56, 95879168, 87687168, 1048576)`, nil},
		{`INSERT INTO operations VALUES (1, 'ttnn.matmul', 1200.5, 0, 1, NULL)`, nil},
		{`INSERT INTO operations VALUES (2, 'ttnn.softmax', 300.0, 0, NULL, NULL)`, nil},
		{`INSERT INTO operation_arguments VALUES (1, 'transpose_a', 'false')`, nil},
		{`INSERT INTO tensors VALUES (10, '[1, 1, 32, 32]', 'DataType.BFLOAT16',
			'Layout.TILE', 'TensorMemoryLayout::HEIGHT_SHARDED, BufferType::L1',
			0, 1048576, 'BufferType.L1')`, nil},
		{`INSERT INTO tensors VALUES (11, '[1, 1, 32, 64]', 'DataType.BFLOAT8_B',
			'Layout.TILE', 'TensorMemoryLayout::INTERLEAVED, BufferType::DRAM',
			0, NULL, 'BufferType.DRAM')`, nil},
		{`INSERT INTO input_tensors VALUES (1, 10)`, nil},
		{`INSERT INTO output_tensors VALUES (1, 11)`, nil},
		{`INSERT INTO input_tensors VALUES (2, 11)`, nil},
		{`INSERT INTO buffers VALUES (1, 0, 1048576, 2048, 1)`, nil},
		{`INSERT INTO buffers VALUES (1, 0, 2097152, 4096, 0)`, nil},
		{`INSERT INTO buffers VALUES (2, 0, 1048576, 2048, 1)`, nil},
		{`INSERT INTO buffers VALUES (2, 0, 3145728, 1024, 3)`, nil},
		{`INSERT INTO stack_traces VALUES (1, 'File "model.py", line 42')`, nil},
	}
	for _, ins := range inserts {
		if _, err := db.Exec(ins.stmt, ins.args...); err != nil {
			t.Fatalf("insert fixture row: %v", err)
		}
	}
	return path
}

func openSnapshot(t *testing.T) *DB {
	t.Helper()
	d, err := Open(newSnapshot(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.sqlite")); err == nil {
		t.Fatal("Open on a missing file must fail, not create an empty database")
	}
}

func TestGetDevices(t *testing.T) {
	d := openSnapshot(t)
	devices, err := d.GetDevices()
	if err != nil {
		t.Fatalf("GetDevices: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("device count = %d, want 1", len(devices))
	}
	dev := devices[0]
	if dev.TotalCores() != 120 {
		t.Errorf("TotalCores = %d, want 120", dev.TotalCores())
	}
	if dev.TotalComputeCores() != 64 {
		t.Errorf("TotalComputeCores = %d, want 64", dev.TotalComputeCores())
	}
	if dev.TotalL1ForTensors != 87687168 {
		t.Errorf("TotalL1ForTensors = %d", dev.TotalL1ForTensors)
	}
}

func TestGetOperations(t *testing.T) {
	d := openSnapshot(t)
	ops, err := d.GetOperations()
	if err != nil {
		t.Fatalf("GetOperations: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("operation count = %d, want 2", len(ops))
	}
	if ops[0].Name != "ttnn.matmul" {
		t.Errorf("first op = %q", ops[0].Name)
	}
	if ops[0].Duration == nil || *ops[0].Duration != 1200.5 {
		t.Errorf("duration = %v, want 1200.5", ops[0].Duration)
	}
	if ops[0].StackTraceID == nil || *ops[0].StackTraceID != 1 {
		t.Errorf("stack trace id = %v, want 1", ops[0].StackTraceID)
	}
	if ops[1].StackTraceID != nil {
		t.Error("second op must have nil stack trace id")
	}
}

func TestGetOperation(t *testing.T) {
	d := openSnapshot(t)
	op, err := d.GetOperation(1)
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if op == nil || op.Name != "ttnn.matmul" {
		t.Fatalf("op = %+v", op)
	}

	missing, err := d.GetOperation(999)
	if err != nil {
		t.Fatalf("GetOperation(999): %v", err)
	}
	if missing != nil {
		t.Errorf("missing op = %+v, want nil", missing)
	}
}

func TestGetTensors(t *testing.T) {
	d := openSnapshot(t)
	tensors, err := d.GetTensors()
	if err != nil {
		t.Fatalf("GetTensors: %v", err)
	}
	if len(tensors) != 2 {
		t.Fatalf("tensor count = %d, want 2", len(tensors))
	}
	if tensors[0].DType != "DataType.BFLOAT16" {
		t.Errorf("dtype = %q", tensors[0].DType)
	}
	if tensors[0].Address == nil || *tensors[0].Address != 1048576 {
		t.Errorf("address = %v", tensors[0].Address)
	}
	if tensors[1].Address != nil {
		t.Error("tensor 11 must have nil address")
	}
}

func TestGetInputOutputTensors(t *testing.T) {
	d := openSnapshot(t)
	inputs, err := d.GetInputTensors(1)
	if err != nil {
		t.Fatalf("GetInputTensors: %v", err)
	}
	if len(inputs) != 1 || inputs[0].ID != 10 {
		t.Errorf("inputs = %+v, want tensor 10", inputs)
	}
	outputs, err := d.GetOutputTensors(1)
	if err != nil {
		t.Fatalf("GetOutputTensors: %v", err)
	}
	if len(outputs) != 1 || outputs[0].ID != 11 {
		t.Errorf("outputs = %+v, want tensor 11", outputs)
	}
}

func TestGetBuffersLegacySchema(t *testing.T) {
	// The fixture uses the older layout: no buffer_id column and
	// max_size_per_bank instead of max_size.
	d := openSnapshot(t)
	buffers, err := d.GetBuffers(nil)
	if err != nil {
		t.Fatalf("GetBuffers: %v", err)
	}
	if len(buffers) != 4 {
		t.Fatalf("buffer count = %d, want 4", len(buffers))
	}

	opID := 1
	scoped, err := d.GetBuffers(&opID)
	if err != nil {
		t.Fatalf("GetBuffers(op 1): %v", err)
	}
	if len(scoped) != 2 {
		t.Fatalf("op 1 buffer count = %d, want 2", len(scoped))
	}
	if scoped[0].Kind != types.BufferL1 || scoped[1].Kind != types.BufferDRAM {
		t.Errorf("kinds = %v, %v", scoped[0].Kind, scoped[1].Kind)
	}
}

func TestGetMemorySummary(t *testing.T) {
	d := openSnapshot(t)
	s, err := d.GetMemorySummary()
	if err != nil {
		t.Fatalf("GetMemorySummary: %v", err)
	}
	// Two L1 buffers (2048 each) plus one L1_SMALL (1024).
	if s.L1Used != 5120 || s.L1BufferCount != 3 {
		t.Errorf("L1 = %d bytes / %d buffers, want 5120 / 3", s.L1Used, s.L1BufferCount)
	}
	if s.DRAMUsed != 4096 || s.DRAMBufferCount != 1 {
		t.Errorf("DRAM = %d bytes / %d buffers, want 4096 / 1", s.DRAMUsed, s.DRAMBufferCount)
	}
	if s.L1Total != 87687168 {
		t.Errorf("L1Total = %d", s.L1Total)
	}
}

func TestGetReportInfo(t *testing.T) {
	d := openSnapshot(t)
	info, err := d.GetReportInfo()
	if err != nil {
		t.Fatalf("GetReportInfo: %v", err)
	}
	if info.OperationCount != 2 || info.TensorCount != 2 || info.BufferCount != 4 || info.DeviceCount != 1 {
		t.Errorf("counts = %+v", info)
	}
	if info.TotalDurationNs != 1500.5 {
		t.Errorf("TotalDurationNs = %v, want 1500.5", info.TotalDurationNs)
	}
}

func TestGetStackTrace(t *testing.T) {
	d := openSnapshot(t)
	trace, err := d.GetStackTrace(1)
	if err != nil {
		t.Fatalf("GetStackTrace: %v", err)
	}
	if trace != `File "model.py", line 42` {
		t.Errorf("trace = %q", trace)
	}
	trace, err = d.GetStackTrace(99)
	if err != nil {
		t.Fatalf("GetStackTrace(99): %v", err)
	}
	if trace != "" {
		t.Errorf("missing trace = %q, want empty", trace)
	}
}

func TestGetOperationTensorFlow(t *testing.T) {
	d := openSnapshot(t)
	flow, err := d.GetOperationTensorFlow()
	if err != nil {
		t.Fatalf("GetOperationTensorFlow: %v", err)
	}
	if len(flow) != 2 {
		t.Fatalf("flow length = %d, want 2", len(flow))
	}
	if len(flow[0].Inputs) != 1 || len(flow[0].Outputs) != 1 {
		t.Errorf("op 1 flow = %d in / %d out, want 1/1", len(flow[0].Inputs), len(flow[0].Outputs))
	}
	if len(flow[1].Inputs) != 1 || len(flow[1].Outputs) != 0 {
		t.Errorf("op 2 flow = %d in / %d out, want 1/0", len(flow[1].Inputs), len(flow[1].Outputs))
	}
}

func TestGetL1Report(t *testing.T) {
	d := openSnapshot(t)

	entries, err := d.GetL1Report(2)
	if err != nil {
		t.Fatalf("GetL1Report: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(entries))
	}
	// The buffer at 1048576 existed at op 1, the one at 3145728 is new.
	if entries[0].Address != 1048576 || entries[0].IsNew {
		t.Errorf("first entry = %+v, want existing allocation at 1048576", entries[0])
	}
	if entries[1].Address != 3145728 || !entries[1].IsNew {
		t.Errorf("second entry = %+v, want new allocation at 3145728", entries[1])
	}
	// Tensor 10 sits at the first address.
	if entries[0].TensorID == nil || *entries[0].TensorID != 10 {
		t.Errorf("tensor at 1048576 = %v, want 10", entries[0].TensorID)
	}
	if entries[0].MemoryLayout != "HEIGHT_SHARDED" {
		t.Errorf("memory layout = %q, want HEIGHT_SHARDED", entries[0].MemoryLayout)
	}
}
