// Package types defines the fixed record shapes produced by the data
// access layer (profiler snapshot and performance CSV). Analyzers only
// ever see these fully-normalized values, never raw rows or columns.
package types

import "math"

// BufferKind is the memory class a buffer lives in.
type BufferKind int

const (
	BufferDRAM BufferKind = iota
	BufferL1
	BufferSystemMemory
	BufferL1Small
	BufferTrace
)

// BufferKindFromInt decodes the integer buffer_type column. Unknown
// values decode to BufferL1, matching the snapshot writer's default.
func BufferKindFromInt(v int) BufferKind {
	switch v {
	case 0:
		return BufferDRAM
	case 1:
		return BufferL1
	case 2:
		return BufferSystemMemory
	case 3:
		return BufferL1Small
	case 4:
		return BufferTrace
	}
	return BufferL1
}

func (k BufferKind) String() string {
	switch k {
	case BufferDRAM:
		return "DRAM"
	case BufferL1:
		return "L1"
	case BufferSystemMemory:
		return "SYSTEM_MEMORY"
	case BufferL1Small:
		return "L1_SMALL"
	case BufferTrace:
		return "TRACE"
	}
	return "L1"
}

// Device describes one chip in the profiling snapshot.
type Device struct {
	ID                       int
	Arch                     string
	ChipID                   int
	NumYCores                int
	NumXCores                int
	NumYComputeCores         int
	NumXComputeCores         int
	WorkerL1Size             int64
	L1NumBanks               int
	L1BankSize               int64
	AddressAtFirstL1Bank     int64
	AddressAtFirstL1CBBuffer int64
	NumBanksPerStorageCore   int
	NumComputeCores          int
	NumStorageCores          int
	TotalL1Memory            int64
	TotalL1ForTensors        int64
	CBLimit                  int64
}

// TotalCores is the full core grid size.
func (d *Device) TotalCores() int { return d.NumYCores * d.NumXCores }

// TotalComputeCores is the compute core grid size.
func (d *Device) TotalComputeCores() int { return d.NumYComputeCores * d.NumXComputeCores }

// ToMap converts the device to a JSON-friendly map.
func (d *Device) ToMap() map[string]any {
	return map[string]any{
		"id":                   d.ID,
		"arch":                 d.Arch,
		"chip_id":              d.ChipID,
		"num_y_cores":          d.NumYCores,
		"num_x_cores":          d.NumXCores,
		"total_cores":          d.TotalCores(),
		"num_y_compute_cores":  d.NumYComputeCores,
		"num_x_compute_cores":  d.NumXComputeCores,
		"total_compute_cores":  d.TotalComputeCores(),
		"num_compute_cores":    d.NumComputeCores,
		"num_storage_cores":    d.NumStorageCores,
		"worker_l1_size":       d.WorkerL1Size,
		"l1_num_banks":         d.L1NumBanks,
		"l1_bank_size":         d.L1BankSize,
		"total_l1_memory":      d.TotalL1Memory,
		"total_l1_for_tensors": d.TotalL1ForTensors,
		"cb_limit":             d.CBLimit,
	}
}

// Operation is one logged host-side operation in the snapshot.
type Operation struct {
	ID              int
	Name            string
	Duration        *float64
	DeviceID        *int
	StackTraceID    *int
	CapturedGraphID *int
}

// ToMap converts the operation to a JSON-friendly map.
func (o *Operation) ToMap() map[string]any {
	return map[string]any{
		"id":                o.ID,
		"name":              o.Name,
		"duration":          optFloat(o.Duration),
		"device_id":         optInt(o.DeviceID),
		"stack_trace_id":    optInt(o.StackTraceID),
		"captured_graph_id": optInt(o.CapturedGraphID),
	}
}

// OperationArgument is one named argument of a logged operation.
type OperationArgument struct {
	OperationID int
	Name        string
	Value       string
}

// ToMap converts the argument to a JSON-friendly map.
func (a *OperationArgument) ToMap() map[string]any {
	return map[string]any{
		"operation_id": a.OperationID,
		"name":         a.Name,
		"value":        a.Value,
	}
}

// Tensor is one tensor instance in the snapshot. Shape and
// memory_config are free-form descriptive strings; the analysis layer
// classifies them through the normalizers rather than parsing them.
type Tensor struct {
	ID           int
	Shape        string
	DType        string
	Layout       string
	MemoryConfig string
	DeviceID     *int
	Address      *int64
	BufferType   string
}

// ToMap converts the tensor to a JSON-friendly map.
func (t *Tensor) ToMap() map[string]any {
	return map[string]any{
		"id":            t.ID,
		"shape":         t.Shape,
		"dtype":         t.DType,
		"layout":        t.Layout,
		"memory_config": t.MemoryConfig,
		"device_id":     optInt(t.DeviceID),
		"address":       optInt64(t.Address),
		"buffer_type":   t.BufferType,
	}
}

// Buffer is one allocated device buffer in the snapshot.
type Buffer struct {
	ID          int
	Address     int64
	MaxSize     int64
	Kind        BufferKind
	DeviceID    int
	OperationID *int
}

// ToMap converts the buffer to a JSON-friendly map.
func (b *Buffer) ToMap() map[string]any {
	return map[string]any{
		"id":           b.ID,
		"address":      b.Address,
		"max_size":     b.MaxSize,
		"buffer_type":  b.Kind.String(),
		"device_id":    b.DeviceID,
		"operation_id": optInt(b.OperationID),
	}
}

// BufferPage is a per-core page of a buffer allocation.
type BufferPage struct {
	BufferID    int
	CoreX       int
	CoreY       int
	PageIndex   int
	PageAddress int64
	PageSize    int64
	DeviceID    int
}

// ToMap converts the page to a JSON-friendly map.
func (p *BufferPage) ToMap() map[string]any {
	return map[string]any{
		"buffer_id":    p.BufferID,
		"core_x":       p.CoreX,
		"core_y":       p.CoreY,
		"page_index":   p.PageIndex,
		"page_address": p.PageAddress,
		"page_size":    p.PageSize,
		"device_id":    p.DeviceID,
	}
}

// MemorySummary aggregates buffer bytes by memory class.
type MemorySummary struct {
	L1Used          int64
	L1Total         int64
	DRAMUsed        int64
	DRAMTotal       int64
	L1BufferCount   int
	DRAMBufferCount int
}

// L1UsagePercent is L1 bytes used over total, 0 when total is unknown.
func (m *MemorySummary) L1UsagePercent() float64 {
	if m.L1Total == 0 {
		return 0
	}
	return float64(m.L1Used) / float64(m.L1Total) * 100
}

// DRAMUsagePercent is DRAM bytes used over total, 0 when total is unknown.
func (m *MemorySummary) DRAMUsagePercent() float64 {
	if m.DRAMTotal == 0 {
		return 0
	}
	return float64(m.DRAMUsed) / float64(m.DRAMTotal) * 100
}

// ToMap converts the summary to a JSON-friendly map.
func (m *MemorySummary) ToMap() map[string]any {
	return map[string]any{
		"l1_used":            m.L1Used,
		"l1_total":           m.L1Total,
		"l1_usage_percent":   round2(m.L1UsagePercent()),
		"l1_buffer_count":    m.L1BufferCount,
		"dram_used":          m.DRAMUsed,
		"dram_total":         m.DRAMTotal,
		"dram_usage_percent": round2(m.DRAMUsagePercent()),
		"dram_buffer_count":  m.DRAMBufferCount,
	}
}

// ReportInfo summarizes a whole profiling report.
type ReportInfo struct {
	ProfilerPath    string
	PerformancePath string
	OperationCount  int
	TensorCount     int
	BufferCount     int
	DeviceCount     int
	TotalDurationNs float64
	Devices         []Device
}

// ToMap converts the report info to a JSON-friendly map.
func (r *ReportInfo) ToMap() map[string]any {
	devices := make([]map[string]any, 0, len(r.Devices))
	for i := range r.Devices {
		devices = append(devices, r.Devices[i].ToMap())
	}
	return map[string]any{
		"profiler_path":     r.ProfilerPath,
		"performance_path":  r.PerformancePath,
		"operation_count":   r.OperationCount,
		"tensor_count":      r.TensorCount,
		"buffer_count":      r.BufferCount,
		"device_count":      r.DeviceCount,
		"total_duration_ns": r.TotalDurationNs,
		"total_duration_ms": round3(r.TotalDurationNs / 1e6),
		"devices":           devices,
	}
}

// L1MemoryEntry is one L1 allocation row in an operation's memory map,
// enriched with the tensor found at that address when one exists.
type L1MemoryEntry struct {
	Address      int64
	Size         int64
	TensorID     *int
	TensorName   string
	Shape        string
	DType        string
	MemoryLayout string
	BufferType   string
	OperationID  *int
	IsNew        bool
}

// ToMap converts the entry to a JSON-friendly map.
func (e *L1MemoryEntry) ToMap() map[string]any {
	return map[string]any{
		"address":       e.Address,
		"size":          e.Size,
		"tensor_id":     optInt(e.TensorID),
		"tensor_name":   e.TensorName,
		"shape":         e.Shape,
		"dtype":         e.DType,
		"memory_layout": e.MemoryLayout,
		"buffer_type":   e.BufferType,
		"operation_id":  optInt(e.OperationID),
		"is_new":        e.IsNew,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func optFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func optInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func optInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
