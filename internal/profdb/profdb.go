// Package profdb reads ttnn profiler snapshot databases. The snapshot
// is a plain SQLite file written by the profiler; this package never
// writes to it. Schema differences between profiler versions are
// probed at open time so queries adapt to the columns that exist.
package profdb

import (
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"ttnvis/internal/types"
)

// DB is a read-only handle on one profiler snapshot.
type DB struct {
	db   *sql.DB
	path string

	hasBufferID   bool
	maxSizeColumn string
	hasDeviceArch bool
}

// Open opens the snapshot at path. The file must already exist; a
// missing snapshot is an error, never an implicit empty database.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("profiler database not found: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profiler database: %w", err)
	}

	d := &DB{db: db, path: path}
	if err := d.probeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Path returns the snapshot file path.
func (d *DB) Path() string { return d.path }

// Close closes the database connection.
func (d *DB) Close() error { return d.db.Close() }

func (d *DB) tableColumns(table string) (map[string]bool, error) {
	rows, err := d.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s schema: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to probe %s schema: %w", table, err)
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

// probeSchema inspects the tables whose layout varies across profiler
// versions: older snapshots lack buffers.buffer_id and name the size
// column max_size_per_bank, and devices may lack arch/chip_id.
func (d *DB) probeSchema() error {
	buffers, err := d.tableColumns("buffers")
	if err != nil {
		return err
	}
	d.hasBufferID = buffers["buffer_id"]
	switch {
	case buffers["max_size"]:
		d.maxSizeColumn = "max_size"
	case buffers["max_size_per_bank"]:
		d.maxSizeColumn = "max_size_per_bank"
	default:
		d.maxSizeColumn = "max_size"
	}

	devices, err := d.tableColumns("devices")
	if err != nil {
		return err
	}
	d.hasDeviceArch = devices["arch"] && devices["chip_id"]
	return nil
}

// GetDevices lists every device in the snapshot ordered by id.
func (d *DB) GetDevices() ([]types.Device, error) {
	query := `SELECT device_id, num_y_cores, num_x_cores,
		num_y_compute_cores, num_x_compute_cores, worker_l1_size,
		l1_num_banks, l1_bank_size, address_at_first_l1_bank,
		address_at_first_l1_cb_buffer, num_banks_per_storage_core,
		num_compute_cores, num_storage_cores, total_l1_memory,
		total_l1_for_tensors, cb_limit`
	if d.hasDeviceArch {
		query += ", arch, chip_id"
	}
	query += " FROM devices ORDER BY device_id"

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []types.Device
	for rows.Next() {
		var dev types.Device
		dest := []any{
			&dev.ID, &dev.NumYCores, &dev.NumXCores,
			&dev.NumYComputeCores, &dev.NumXComputeCores, &dev.WorkerL1Size,
			&dev.L1NumBanks, &dev.L1BankSize, &dev.AddressAtFirstL1Bank,
			&dev.AddressAtFirstL1CBBuffer, &dev.NumBanksPerStorageCore,
			&dev.NumComputeCores, &dev.NumStorageCores, &dev.TotalL1Memory,
			&dev.TotalL1ForTensors, &dev.CBLimit,
		}
		if d.hasDeviceArch {
			dest = append(dest, &dev.Arch, &dev.ChipID)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan device row: %w", err)
		}
		devices = append(devices, dev)
	}
	return devices, rows.Err()
}

func scanOperation(rows *sql.Rows) (types.Operation, error) {
	var op types.Operation
	var duration sql.NullFloat64
	var deviceID, stackTraceID, capturedGraphID sql.NullInt64
	err := rows.Scan(&op.ID, &op.Name, &duration, &deviceID, &stackTraceID, &capturedGraphID)
	if err != nil {
		return op, err
	}
	if duration.Valid {
		op.Duration = &duration.Float64
	}
	if deviceID.Valid {
		v := int(deviceID.Int64)
		op.DeviceID = &v
	}
	if stackTraceID.Valid {
		v := int(stackTraceID.Int64)
		op.StackTraceID = &v
	}
	if capturedGraphID.Valid {
		v := int(capturedGraphID.Int64)
		op.CapturedGraphID = &v
	}
	return op, nil
}

const operationColumns = `operation_id, name, duration, device_id, stack_trace_id, captured_graph_id`

// GetOperations lists every logged operation ordered by id.
func (d *DB) GetOperations() ([]types.Operation, error) {
	rows, err := d.db.Query(`SELECT ` + operationColumns + ` FROM operations ORDER BY operation_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []types.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation row: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// GetOperation returns one operation by id, nil when it does not exist.
func (d *DB) GetOperation(operationID int) (*types.Operation, error) {
	rows, err := d.db.Query(`SELECT `+operationColumns+` FROM operations WHERE operation_id = ?`, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation %d: %w", operationID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	op, err := scanOperation(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan operation row: %w", err)
	}
	return &op, nil
}

// GetOperationArguments lists the named arguments of one operation.
func (d *DB) GetOperationArguments(operationID int) ([]types.OperationArgument, error) {
	rows, err := d.db.Query(
		`SELECT operation_id, name, value FROM operation_arguments WHERE operation_id = ?`,
		operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation arguments: %w", err)
	}
	defer rows.Close()

	var args []types.OperationArgument
	for rows.Next() {
		var a types.OperationArgument
		var value sql.NullString
		if err := rows.Scan(&a.OperationID, &a.Name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan argument row: %w", err)
		}
		a.Value = value.String
		args = append(args, a)
	}
	return args, rows.Err()
}

func scanTensor(rows *sql.Rows) (types.Tensor, error) {
	var t types.Tensor
	var shape, dtype, layout, memoryConfig, bufferType sql.NullString
	var deviceID, address sql.NullInt64
	err := rows.Scan(&t.ID, &shape, &dtype, &layout, &memoryConfig, &deviceID, &address, &bufferType)
	if err != nil {
		return t, err
	}
	t.Shape = shape.String
	t.DType = dtype.String
	t.Layout = layout.String
	t.MemoryConfig = memoryConfig.String
	t.BufferType = bufferType.String
	if deviceID.Valid {
		v := int(deviceID.Int64)
		t.DeviceID = &v
	}
	if address.Valid {
		t.Address = &address.Int64
	}
	return t, nil
}

const tensorColumns = `tensor_id, shape, dtype, layout, memory_config, device_id, address, buffer_type`

// GetTensors lists every tensor in the snapshot ordered by id.
func (d *DB) GetTensors() ([]types.Tensor, error) {
	rows, err := d.db.Query(`SELECT ` + tensorColumns + ` FROM tensors ORDER BY tensor_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tensors: %w", err)
	}
	defer rows.Close()
	return collectTensors(rows)
}

func collectTensors(rows *sql.Rows) ([]types.Tensor, error) {
	var tensors []types.Tensor
	for rows.Next() {
		t, err := scanTensor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tensor row: %w", err)
		}
		tensors = append(tensors, t)
	}
	return tensors, rows.Err()
}

// GetTensor returns one tensor by id, nil when it does not exist.
func (d *DB) GetTensor(tensorID int) (*types.Tensor, error) {
	rows, err := d.db.Query(`SELECT `+tensorColumns+` FROM tensors WHERE tensor_id = ?`, tensorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tensor %d: %w", tensorID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	t, err := scanTensor(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan tensor row: %w", err)
	}
	return &t, nil
}

// GetInputTensors lists the input tensors of one operation.
func (d *DB) GetInputTensors(operationID int) ([]types.Tensor, error) {
	rows, err := d.db.Query(`SELECT t.tensor_id, t.shape, t.dtype, t.layout, t.memory_config,
		t.device_id, t.address, t.buffer_type
		FROM tensors t JOIN input_tensors it ON t.tensor_id = it.tensor_id
		WHERE it.operation_id = ?`, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query input tensors: %w", err)
	}
	defer rows.Close()
	return collectTensors(rows)
}

// GetOutputTensors lists the output tensors of one operation.
func (d *DB) GetOutputTensors(operationID int) ([]types.Tensor, error) {
	rows, err := d.db.Query(`SELECT t.tensor_id, t.shape, t.dtype, t.layout, t.memory_config,
		t.device_id, t.address, t.buffer_type
		FROM tensors t JOIN output_tensors ot ON t.tensor_id = ot.tensor_id
		WHERE ot.operation_id = ?`, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query output tensors: %w", err)
	}
	defer rows.Close()
	return collectTensors(rows)
}

// GetBuffers lists device buffers, all of them when operationID is
// nil. Snapshots without a buffer_id column get positional ids.
func (d *DB) GetBuffers(operationID *int) ([]types.Buffer, error) {
	idColumn := "rowid"
	if d.hasBufferID {
		idColumn = "buffer_id"
	}
	query := fmt.Sprintf(`SELECT %s, address, %s, buffer_type, device_id, operation_id
		FROM buffers`, idColumn, d.maxSizeColumn)
	var args []any
	if operationID != nil {
		query += ` WHERE operation_id = ?`
		args = append(args, *operationID)
	}
	query += ` ORDER BY address`

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query buffers: %w", err)
	}
	defer rows.Close()

	var buffers []types.Buffer
	for rows.Next() {
		var b types.Buffer
		var kind int
		var opID sql.NullInt64
		if err := rows.Scan(&b.ID, &b.Address, &b.MaxSize, &kind, &b.DeviceID, &opID); err != nil {
			return nil, fmt.Errorf("failed to scan buffer row: %w", err)
		}
		b.Kind = types.BufferKindFromInt(kind)
		if opID.Valid {
			v := int(opID.Int64)
			b.OperationID = &v
		}
		buffers = append(buffers, b)
	}
	return buffers, rows.Err()
}

// GetBufferPages lists the per-core pages of one operation's buffers.
func (d *DB) GetBufferPages(operationID int) ([]types.BufferPage, error) {
	rows, err := d.db.Query(`SELECT buffer_id, core_x, core_y, page_index,
		page_address, page_size, device_id
		FROM buffer_pages WHERE operation_id = ? ORDER BY page_address`, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query buffer pages: %w", err)
	}
	defer rows.Close()

	var pages []types.BufferPage
	for rows.Next() {
		var p types.BufferPage
		if err := rows.Scan(&p.BufferID, &p.CoreX, &p.CoreY, &p.PageIndex,
			&p.PageAddress, &p.PageSize, &p.DeviceID); err != nil {
			return nil, fmt.Errorf("failed to scan buffer page row: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// GetStackTrace returns the stack trace text for an id, "" when the
// snapshot has none.
func (d *DB) GetStackTrace(stackTraceID int) (string, error) {
	var trace sql.NullString
	err := d.db.QueryRow(
		`SELECT stack_trace FROM stack_traces WHERE stack_trace_id = ?`,
		stackTraceID).Scan(&trace)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query stack trace: %w", err)
	}
	return trace.String, nil
}

// GetMemorySummary aggregates buffer bytes by memory class across the
// whole snapshot. L1 and L1_SMALL buffers count as L1; the L1 capacity
// comes from the devices table. DRAM capacity is not recorded in the
// snapshot, so DRAMTotal stays zero.
func (d *DB) GetMemorySummary() (types.MemorySummary, error) {
	var summary types.MemorySummary

	query := fmt.Sprintf(`SELECT buffer_type, COALESCE(SUM(%s), 0), COUNT(*)
		FROM buffers GROUP BY buffer_type`, d.maxSizeColumn)
	rows, err := d.db.Query(query)
	if err != nil {
		return summary, fmt.Errorf("failed to query buffer totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind int
		var total int64
		var count int
		if err := rows.Scan(&kind, &total, &count); err != nil {
			return summary, fmt.Errorf("failed to scan buffer total row: %w", err)
		}
		switch types.BufferKindFromInt(kind) {
		case types.BufferL1, types.BufferL1Small:
			summary.L1Used += total
			summary.L1BufferCount += count
		case types.BufferDRAM:
			summary.DRAMUsed += total
			summary.DRAMBufferCount += count
		}
	}
	if err := rows.Err(); err != nil {
		return summary, err
	}

	err = d.db.QueryRow(`SELECT COALESCE(SUM(total_l1_for_tensors), 0) FROM devices`).
		Scan(&summary.L1Total)
	if err != nil {
		return summary, fmt.Errorf("failed to query L1 capacity: %w", err)
	}
	return summary, nil
}

// GetReportInfo summarizes the snapshot: row counts, device list, and
// total host-side duration.
func (d *DB) GetReportInfo() (types.ReportInfo, error) {
	info := types.ReportInfo{ProfilerPath: d.path}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM operations`, &info.OperationCount},
		{`SELECT COUNT(*) FROM tensors`, &info.TensorCount},
		{`SELECT COUNT(*) FROM buffers`, &info.BufferCount},
		{`SELECT COUNT(*) FROM devices`, &info.DeviceCount},
	}
	for _, c := range counts {
		if err := d.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return info, fmt.Errorf("failed to count snapshot rows: %w", err)
		}
	}

	err := d.db.QueryRow(`SELECT COALESCE(SUM(duration), 0) FROM operations`).
		Scan(&info.TotalDurationNs)
	if err != nil {
		return info, fmt.Errorf("failed to sum operation durations: %w", err)
	}

	devices, err := d.GetDevices()
	if err != nil {
		return info, err
	}
	info.Devices = devices
	return info, nil
}

// GetOperationTensorFlow returns every operation in execution order
// with its input and output tensors attached, for reshard detection.
func (d *DB) GetOperationTensorFlow() ([]OperationTensorRow, error) {
	ops, err := d.GetOperations()
	if err != nil {
		return nil, err
	}

	inputs, err := d.tensorsByOperation("input_tensors")
	if err != nil {
		return nil, err
	}
	outputs, err := d.tensorsByOperation("output_tensors")
	if err != nil {
		return nil, err
	}

	flow := make([]OperationTensorRow, 0, len(ops))
	for _, op := range ops {
		flow = append(flow, OperationTensorRow{
			OperationID:   op.ID,
			OperationName: op.Name,
			Inputs:        inputs[op.ID],
			Outputs:       outputs[op.ID],
		})
	}
	return flow, nil
}

// OperationTensorRow is one operation with its tensors attached.
type OperationTensorRow struct {
	OperationID   int
	OperationName string
	Inputs        []types.Tensor
	Outputs       []types.Tensor
}

func (d *DB) tensorsByOperation(joinTable string) (map[int][]types.Tensor, error) {
	query := fmt.Sprintf(`SELECT j.operation_id, t.tensor_id, t.shape, t.dtype,
		t.layout, t.memory_config, t.device_id, t.address, t.buffer_type
		FROM tensors t JOIN %s j ON t.tensor_id = j.tensor_id
		ORDER BY j.operation_id`, joinTable)
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", joinTable, err)
	}
	defer rows.Close()

	byOp := make(map[int][]types.Tensor)
	for rows.Next() {
		var opID int
		var t types.Tensor
		var shape, dtype, layout, memoryConfig, bufferType sql.NullString
		var deviceID, address sql.NullInt64
		err := rows.Scan(&opID, &t.ID, &shape, &dtype, &layout, &memoryConfig,
			&deviceID, &address, &bufferType)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", joinTable, err)
		}
		t.Shape = shape.String
		t.DType = dtype.String
		t.Layout = layout.String
		t.MemoryConfig = memoryConfig.String
		t.BufferType = bufferType.String
		if deviceID.Valid {
			v := int(deviceID.Int64)
			t.DeviceID = &v
		}
		if address.Valid {
			t.Address = &address.Int64
		}
		byOp[opID] = append(byOp[opID], t)
	}
	return byOp, rows.Err()
}

// GetL1Report maps one operation's L1 allocations by address, naming
// the tensor found at each address when one exists. Entries allocated
// since the previous operation are marked new.
func (d *DB) GetL1Report(operationID int) ([]types.L1MemoryEntry, error) {
	current, err := d.l1Buffers(operationID)
	if err != nil {
		return nil, err
	}

	prevAddresses := make(map[int64]bool)
	prevID, err := d.previousOperationID(operationID)
	if err != nil {
		return nil, err
	}
	if prevID != nil {
		previous, err := d.l1Buffers(*prevID)
		if err != nil {
			return nil, err
		}
		for _, b := range previous {
			prevAddresses[b.Address] = true
		}
	}

	opInputs, err := d.GetInputTensors(operationID)
	if err != nil {
		return nil, err
	}
	opOutputs, err := d.GetOutputTensors(operationID)
	if err != nil {
		return nil, err
	}
	opTensors := append(append([]types.Tensor{}, opInputs...), opOutputs...)

	entries := make([]types.L1MemoryEntry, 0, len(current))
	for _, b := range current {
		entry := types.L1MemoryEntry{
			Address:    b.Address,
			Size:       b.MaxSize,
			BufferType: b.Kind.String(),
			IsNew:      !prevAddresses[b.Address],
		}
		if b.OperationID != nil {
			v := *b.OperationID
			entry.OperationID = &v
		}
		tensor := tensorAtAddress(opTensors, b.Address)
		if tensor == nil {
			all, err := d.tensorsAtAddress(b.Address)
			if err != nil {
				return nil, err
			}
			tensor = all
		}
		if tensor != nil {
			id := tensor.ID
			entry.TensorID = &id
			entry.TensorName = fmt.Sprintf("tensor_%d", tensor.ID)
			entry.Shape = tensor.Shape
			entry.DType = tensor.DType
			entry.MemoryLayout = memoryLayoutToken(tensor.MemoryConfig)
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })
	return entries, nil
}

func (d *DB) l1Buffers(operationID int) ([]types.Buffer, error) {
	idColumn := "rowid"
	if d.hasBufferID {
		idColumn = "buffer_id"
	}
	query := fmt.Sprintf(`SELECT %s, address, %s, buffer_type, device_id, operation_id
		FROM buffers WHERE operation_id = ? AND buffer_type IN (1, 3)
		ORDER BY address`, idColumn, d.maxSizeColumn)
	rows, err := d.db.Query(query, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query L1 buffers: %w", err)
	}
	defer rows.Close()

	var buffers []types.Buffer
	for rows.Next() {
		var b types.Buffer
		var kind int
		var opID sql.NullInt64
		if err := rows.Scan(&b.ID, &b.Address, &b.MaxSize, &kind, &b.DeviceID, &opID); err != nil {
			return nil, fmt.Errorf("failed to scan L1 buffer row: %w", err)
		}
		b.Kind = types.BufferKindFromInt(kind)
		if opID.Valid {
			v := int(opID.Int64)
			b.OperationID = &v
		}
		buffers = append(buffers, b)
	}
	return buffers, rows.Err()
}

func (d *DB) previousOperationID(operationID int) (*int, error) {
	var prev sql.NullInt64
	err := d.db.QueryRow(
		`SELECT operation_id FROM operations WHERE operation_id < ?
		ORDER BY operation_id DESC LIMIT 1`, operationID).Scan(&prev)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find previous operation: %w", err)
	}
	if !prev.Valid {
		return nil, nil
	}
	v := int(prev.Int64)
	return &v, nil
}

func (d *DB) tensorsAtAddress(address int64) (*types.Tensor, error) {
	rows, err := d.db.Query(`SELECT `+tensorColumns+` FROM tensors WHERE address = ? LIMIT 1`, address)
	if err != nil {
		return nil, fmt.Errorf("failed to query tensor by address: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	t, err := scanTensor(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan tensor row: %w", err)
	}
	return &t, nil
}

func tensorAtAddress(tensors []types.Tensor, address int64) *types.Tensor {
	for i := range tensors {
		if tensors[i].Address != nil && *tensors[i].Address == address {
			return &tensors[i]
		}
	}
	return nil
}

// memoryLayoutToken pulls the memory_layout token out of a raw
// memory_config string, "" when absent.
func memoryLayoutToken(memoryConfig string) string {
	upper := strings.ToUpper(memoryConfig)
	for _, token := range []string{
		"HEIGHT_SHARDED", "WIDTH_SHARDED", "BLOCK_SHARDED", "INTERLEAVED", "SINGLE_BANK",
	} {
		if strings.Contains(upper, token) {
			return token
		}
	}
	return ""
}
