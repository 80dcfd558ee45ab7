package types

// SignpostName marks CSV rows that are host-side markers rather than
// executed kernels. Analyzers exclude these rows from every aggregate.
const SignpostName = "signpost"

// Bound classification values derived from the performance model.
const (
	BoundCompute  = "Compute"
	BoundMemory   = "Memory"
	BoundBalanced = "Balanced"
)

// OperationPerf is one executed kernel invocation from the performance
// CSV. Timing fields are nanoseconds. Utilization fields are
// percentages where 0 means "not reported" rather than a true zero.
// Pointer fields are absent unless the performance model ran for the
// invocation.
type OperationPerf struct {
	OpCode                  string
	OpName                  string
	DeviceID                int
	CoreCount               int
	ParallelizationStrategy string
	ExecutionTimeNs         float64
	HostTimeNs              float64
	OpToOpGapNs             float64
	DispatchCQCmdTimeNs     float64
	DispatchWaitTimeNs      float64
	ERISCKernelDurationNs   float64
	MathUtilization         float64
	DRAMReadBW              float64
	DRAMWriteBW             float64
	L1ReadBW                float64
	L1WriteBW               float64
	DRAMBWUtilPercent       float64
	FPUUtilPercent          float64
	PMIdealNs               *float64
	PMComputeNs             *float64
	PMBandwidthNs           *float64
	PMReqIBW                *float64
	PMReqOBW                *float64
	InputShapes             string
	OutputShapes            string
	BufferType              string
	Layout                  string
	MathFidelity            string
	GlobalCallCount         *int
}

// Bound classifies the invocation as compute- or memory-limited from
// the performance model's predicted times. Returns "" when the model
// did not run or predicted zero for both components.
func (p *OperationPerf) Bound() string {
	if p.PMComputeNs == nil || p.PMBandwidthNs == nil {
		return ""
	}
	compute, bandwidth := *p.PMComputeNs, *p.PMBandwidthNs
	if compute == 0 && bandwidth == 0 {
		return ""
	}
	switch {
	case compute > bandwidth:
		return BoundCompute
	case bandwidth > compute:
		return BoundMemory
	}
	return BoundBalanced
}

// DRAMBandwidth is the total requested DRAM bandwidth (input plus
// output), or nil when the model did not report both directions.
func (p *OperationPerf) DRAMBandwidth() *float64 {
	if p.PMReqIBW == nil || p.PMReqOBW == nil {
		return nil
	}
	total := *p.PMReqIBW + *p.PMReqOBW
	return &total
}

// ToMap converts the record to a JSON-friendly map.
func (p *OperationPerf) ToMap() map[string]any {
	return map[string]any{
		"op_code":                  p.OpCode,
		"op_name":                  p.OpName,
		"device_id":                p.DeviceID,
		"core_count":               p.CoreCount,
		"parallelization_strategy": p.ParallelizationStrategy,
		"execution_time_ns":        p.ExecutionTimeNs,
		"host_time_ns":             p.HostTimeNs,
		"math_utilization":         p.MathUtilization,
		"dram_read_bw":             p.DRAMReadBW,
		"dram_write_bw":            p.DRAMWriteBW,
		"l1_read_bw":               p.L1ReadBW,
		"l1_write_bw":              p.L1WriteBW,
		"input_shapes":             p.InputShapes,
		"output_shapes":            p.OutputShapes,
		"pm_ideal_ns":              optFloat(p.PMIdealNs),
		"pm_compute_ns":            optFloat(p.PMComputeNs),
		"pm_bandwidth_ns":          optFloat(p.PMBandwidthNs),
		"global_call_count":        optInt(p.GlobalCallCount),
		"op_to_op_gap_ns":          p.OpToOpGapNs,
		"buffer_type":              p.BufferType,
		"layout":                   p.Layout,
		"math_fidelity":            p.MathFidelity,
		"dram_bw_util_percent":     p.DRAMBWUtilPercent,
		"fpu_util_percent":         p.FPUUtilPercent,
		"bound":                    p.Bound(),
		"dispatch_cq_cmd_time_ns":  p.DispatchCQCmdTimeNs,
		"dispatch_wait_time_ns":    p.DispatchWaitTimeNs,
		"erisc_kernel_duration_ns": p.ERISCKernelDurationNs,
	}
}
