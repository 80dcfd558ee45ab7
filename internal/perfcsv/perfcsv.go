// Package perfcsv reads ops_perf_results CSV files produced by the
// device profiler. Column names drift between profiler versions, so
// every logical field carries an alias list and headers are matched
// after normalization.
package perfcsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ttnvis/internal/types"
)

// Report is one parsed performance CSV.
type Report struct {
	path string
	ops  []types.OperationPerf
}

// Locate resolves path to a concrete ops_perf_results CSV file. A
// direct .csv path is used as-is; a directory is searched first
// shallowly, then recursively. When several candidates exist the most
// recently modified wins.
func Locate(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("performance report not found: %w", err)
	}
	if !info.IsDir() {
		if strings.HasSuffix(strings.ToLower(path), ".csv") {
			return path, nil
		}
		return "", fmt.Errorf("performance report %s is not a CSV file", path)
	}

	matches, err := filepath.Glob(filepath.Join(path, "ops_perf_results*.csv"))
	if err != nil {
		return "", fmt.Errorf("failed to search %s: %w", path, err)
	}
	if len(matches) == 0 {
		err := filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if !fi.IsDir() && strings.HasPrefix(fi.Name(), "ops_perf_results") &&
				strings.HasSuffix(fi.Name(), ".csv") {
				matches = append(matches, p)
			}
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to search %s: %w", path, err)
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no ops_perf_results CSV found under %s", path)
	}

	newest := matches[0]
	newestTime := int64(-1)
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		if t := fi.ModTime().UnixNano(); t > newestTime {
			newest, newestTime = m, t
		}
	}
	return newest, nil
}

// fieldAliases maps each logical field to the header names it has
// carried across profiler versions. Headers are normalized (lowered,
// trimmed, spaces to underscores) before lookup.
var fieldAliases = []struct {
	field   string
	aliases []string
}{
	{"op_code", []string{"op_code", "opcode", "op"}},
	{"op_name", []string{"op_name", "name", "operation_name", "op_type"}},
	{"device_id", []string{"device_id", "device"}},
	{"core_count", []string{"core_count", "cores", "num_cores"}},
	{"parallelization_strategy", []string{"parallelization_strategy", "strategy"}},
	{"execution_time_ns", []string{
		"device_kernel_duration_[ns]", "device_kernel_duration_ns",
		"kernel_duration_[ns]", "kernel_duration_ns",
		"execution_time_ns", "exec_time_ns", "duration_ns",
	}},
	{"host_time_ns", []string{"host_time_ns", "host_duration_ns", "host_duration_[ns]"}},
	{"op_to_op_gap_ns", []string{"op_to_op_latency_[ns]", "op_to_op_latency_ns", "op_to_op_gap_ns"}},
	{"dispatch_cq_cmd_ns", []string{"dispatch_total_cq_cmd_op_time_[ns]", "dispatch_total_cq_cmd_op_time_ns"}},
	{"dispatch_wait_ns", []string{"dispatch_wait_time_[ns]", "dispatch_wait_time_ns"}},
	{"erisc_duration_ns", []string{"erisc_kernel_duration_[ns]", "erisc_kernel_duration_ns"}},
	{"math_utilization", []string{"math_utilization", "math_util", "compute_utilization"}},
	{"dram_read_bw", []string{"output_dram_bw_peak_utilization_[%]", "dram_read_bw", "dram_bw_read"}},
	{"dram_write_bw", []string{"dram_write_bw", "dram_bw_write"}},
	{"l1_read_bw", []string{"l1_read_bw", "l1_bw_read"}},
	{"l1_write_bw", []string{"l1_write_bw", "l1_bw_write"}},
	{"input_shapes", []string{"input_shapes", "input_shape"}},
	{"output_shapes", []string{"output_shapes", "output_shape"}},
	{"pm_ideal_ns", []string{"pm_ideal_[ns]", "pm_ideal_ns"}},
	{"pm_compute_ns", []string{"pm_compute_[ns]", "pm_compute_ns"}},
	{"pm_bandwidth_ns", []string{"pm_bandwidth_[ns]", "pm_bandwidth_ns"}},
	{"pm_req_i_bw", []string{"pm_req_i_bw"}},
	{"pm_req_o_bw", []string{"pm_req_o_bw"}},
	{"global_call_count", []string{"global_call_count", "call_count"}},
	{"input_0_memory", []string{"input_0_memory"}},
	{"input_0_layout", []string{"input_0_layout"}},
	{"math_fidelity", []string{"math_fidelity"}},
	{"dram_bw_util", []string{"dram_bw_util_(%)", "dram_bw_util_[%]", "dram_bw_util"}},
	{"fpu_util", []string{"pm_fpu_util_(%)", "pm_fpu_util_[%]", "fpu_util"}},
}

func normalizeHeader(h string) string {
	h = strings.TrimSpace(strings.ToLower(h))
	return strings.ReplaceAll(h, " ", "_")
}

// columnIndex resolves each logical field to its column position in
// the given header row. Fields with no matching column are absent.
func columnIndex(header []string) map[string]int {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		n := normalizeHeader(h)
		if _, ok := positions[n]; !ok {
			positions[n] = i
		}
	}
	index := make(map[string]int)
	for _, fa := range fieldAliases {
		for _, alias := range fa.aliases {
			if pos, ok := positions[alias]; ok {
				index[fa.field] = pos
				break
			}
		}
	}
	return index
}

type row struct {
	record []string
	index  map[string]int
	bad    bool
}

func (r *row) str(field string) string {
	pos, ok := r.index[field]
	if !ok || pos >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[pos])
}

func (r *row) float(field string) float64 {
	s := r.str(field)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.bad = true
		return 0
	}
	return v
}

func (r *row) floatPtr(field string) *float64 {
	s := r.str(field)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.bad = true
		return nil
	}
	return &v
}

func (r *row) int(field string) int {
	return int(r.float(field))
}

func (r *row) intPtr(field string) *int {
	f := r.floatPtr(field)
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}

// Load locates and parses a performance CSV. Rows with unparseable
// numeric cells are skipped rather than failing the whole report.
func Load(path string) (*Report, error) {
	csvPath, err := Locate(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open performance CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	index := columnIndex(header)

	var ops []types.OperationPerf
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		r := row{record: record, index: index}
		op := types.OperationPerf{
			OpCode:                  r.str("op_code"),
			OpName:                  r.str("op_name"),
			DeviceID:                r.int("device_id"),
			CoreCount:               r.int("core_count"),
			ParallelizationStrategy: r.str("parallelization_strategy"),
			ExecutionTimeNs:         r.float("execution_time_ns"),
			HostTimeNs:              r.float("host_time_ns"),
			OpToOpGapNs:             r.float("op_to_op_gap_ns"),
			DispatchCQCmdTimeNs:     r.float("dispatch_cq_cmd_ns"),
			DispatchWaitTimeNs:      r.float("dispatch_wait_ns"),
			ERISCKernelDurationNs:   r.float("erisc_duration_ns"),
			MathUtilization:         r.float("math_utilization"),
			DRAMReadBW:              r.float("dram_read_bw"),
			DRAMWriteBW:             r.float("dram_write_bw"),
			L1ReadBW:                r.float("l1_read_bw"),
			L1WriteBW:               r.float("l1_write_bw"),
			DRAMBWUtilPercent:       r.float("dram_bw_util"),
			FPUUtilPercent:          r.float("fpu_util"),
			PMIdealNs:               r.floatPtr("pm_ideal_ns"),
			PMComputeNs:             r.floatPtr("pm_compute_ns"),
			PMBandwidthNs:           r.floatPtr("pm_bandwidth_ns"),
			PMReqIBW:                r.floatPtr("pm_req_i_bw"),
			PMReqOBW:                r.floatPtr("pm_req_o_bw"),
			InputShapes:             r.str("input_shapes"),
			OutputShapes:            r.str("output_shapes"),
			BufferType:              bufferTypeFromMemory(r.str("input_0_memory")),
			Layout:                  r.str("input_0_layout"),
			MathFidelity:            r.str("math_fidelity"),
			GlobalCallCount:         r.intPtr("global_call_count"),
		}
		if r.bad {
			continue
		}
		ops = append(ops, op)
	}

	return &Report{path: csvPath, ops: ops}, nil
}

// bufferTypeFromMemory classifies the input_0_memory column into the
// coarse memory classes the analyzers use.
func bufferTypeFromMemory(memory string) string {
	upper := strings.ToUpper(memory)
	switch {
	case strings.Contains(upper, "DRAM"):
		return "DRAM"
	case strings.Contains(upper, "L1"):
		return "L1"
	case strings.Contains(upper, "SYSTEM_MEMORY"):
		return "System"
	}
	return ""
}

// Path returns the resolved CSV file path.
func (r *Report) Path() string { return r.path }

// Operations returns every parsed record, signpost rows included.
func (r *Report) Operations() []types.OperationPerf { return r.ops }

// Valid reports whether the CSV yielded at least one record.
func (r *Report) Valid() bool { return len(r.ops) > 0 }

// Summary is the row-count and timing overview of one CSV.
type Summary struct {
	TotalOperations    int
	TotalTimeNs        float64
	AvgTimeNs          float64
	MaxTimeNs          float64
	MinTimeNs          float64
	AvgMathUtilization float64
}

// ToMap converts the summary to a JSON-friendly map.
func (s *Summary) ToMap() map[string]any {
	return map[string]any{
		"total_operations":     s.TotalOperations,
		"total_time_ns":        s.TotalTimeNs,
		"total_time_ms":        round3(s.TotalTimeNs / 1e6),
		"avg_time_ns":          round3(s.AvgTimeNs),
		"max_time_ns":          s.MaxTimeNs,
		"min_time_ns":          s.MinTimeNs,
		"avg_math_utilization": round3(s.AvgMathUtilization),
	}
}

// GetSummary computes timing aggregates over rows with a recorded
// execution time and the math-utilization mean over every row.
func (r *Report) GetSummary() Summary {
	s := Summary{TotalOperations: len(r.ops)}
	if len(r.ops) == 0 {
		return s
	}

	timed := 0
	var mathSum float64
	for _, op := range r.ops {
		mathSum += op.MathUtilization
		if op.ExecutionTimeNs <= 0 {
			continue
		}
		if timed == 0 || op.ExecutionTimeNs > s.MaxTimeNs {
			s.MaxTimeNs = op.ExecutionTimeNs
		}
		if timed == 0 || op.ExecutionTimeNs < s.MinTimeNs {
			s.MinTimeNs = op.ExecutionTimeNs
		}
		s.TotalTimeNs += op.ExecutionTimeNs
		timed++
	}
	if timed > 0 {
		s.AvgTimeNs = s.TotalTimeNs / float64(timed)
	}
	s.AvgMathUtilization = mathSum / float64(len(r.ops))
	return s
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
