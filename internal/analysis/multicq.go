package analysis

import (
	"fmt"
	"sort"

	"ttnvis/internal/types"
)

// MultiCQThresholds tunes the command-queue recommendation rules.
type MultiCQThresholds struct {
	// IOBoundPercent classifies the run (or one operation) as
	// I/O-bound above it.
	IOBoundPercent float64
	// MultiCQPercent recommends a second command queue above it.
	MultiCQPercent float64
	// DominanceRatio marks one I/O component as dominant when its
	// share of total I/O exceeds it.
	DominanceRatio float64
}

// DefaultMultiCQThresholds returns the standard tuning.
func DefaultMultiCQThresholds() MultiCQThresholds {
	return MultiCQThresholds{
		IOBoundPercent: 30,
		MultiCQPercent: 20,
		DominanceRatio: 0.5,
	}
}

// MultiCQSummary aggregates compute time against dispatch, wait, and
// data-transfer time across the whole run.
type MultiCQSummary struct {
	TotalOperations    int
	TotalDeviceTimeNs  float64
	TotalDispatchNs    float64
	TotalWaitNs        float64
	TotalERISCNs       float64
	TotalIOTimeNs      float64
	TotalComputeNs     float64
	IOOverheadPercent  float64
	IOBoundOperations  int
	IsIOBound          bool
	MultiCQRecommended bool
	Recommendations    []string
}

// ToMap converts the summary to a JSON-friendly map.
func (s *MultiCQSummary) ToMap() map[string]any {
	return map[string]any{
		"total_operations":     s.TotalOperations,
		"total_device_time_ns": s.TotalDeviceTimeNs,
		"total_device_time_ms": round3(s.TotalDeviceTimeNs / 1e6),
		"total_dispatch_ns":    s.TotalDispatchNs,
		"total_dispatch_ms":    round3(s.TotalDispatchNs / 1e6),
		"total_wait_ns":        s.TotalWaitNs,
		"total_wait_ms":        round3(s.TotalWaitNs / 1e6),
		"total_erisc_ns":       s.TotalERISCNs,
		"total_erisc_ms":       round3(s.TotalERISCNs / 1e6),
		"total_io_time_ns":     s.TotalIOTimeNs,
		"total_io_time_ms":     round3(s.TotalIOTimeNs / 1e6),
		"total_compute_ns":     s.TotalComputeNs,
		"total_compute_ms":     round3(s.TotalComputeNs / 1e6),
		"io_overhead_percent":  round2(s.IOOverheadPercent),
		"io_bound_operations":  s.IOBoundOperations,
		"is_io_bound":          s.IsIOBound,
		"multi_cq_recommended": s.MultiCQRecommended,
		"recommendations":      s.Recommendations,
	}
}

// OperationIOAnalysis is one operation's I/O time breakdown.
type OperationIOAnalysis struct {
	OpCode            string
	OpName            string
	DeviceTimeNs      float64
	DispatchTimeNs    float64
	WaitTimeNs        float64
	ERISCTimeNs       float64
	IOOverheadPercent float64
	IsIOBound         bool
}

// TotalIOTimeNs is the operation's combined dispatch, wait, and
// data-transfer time.
func (o *OperationIOAnalysis) TotalIOTimeNs() float64 {
	return o.DispatchTimeNs + o.WaitTimeNs + o.ERISCTimeNs
}

// ToMap converts the entry to a JSON-friendly map.
func (o *OperationIOAnalysis) ToMap() map[string]any {
	return map[string]any{
		"op_code":             o.OpCode,
		"op_name":             o.OpName,
		"device_time_ns":      o.DeviceTimeNs,
		"dispatch_time_ns":    o.DispatchTimeNs,
		"wait_time_ns":        o.WaitTimeNs,
		"erisc_time_ns":       o.ERISCTimeNs,
		"total_io_time_ns":    o.TotalIOTimeNs(),
		"io_overhead_percent": round2(o.IOOverheadPercent),
		"is_io_bound":         o.IsIOBound,
	}
}

// MultiCQAnalyzer measures how much of the run went to command
// dispatch, waits, and ethernet data transfers, and decides whether a
// second command queue would overlap that I/O with compute.
type MultiCQAnalyzer struct {
	ops        []types.OperationPerf
	thresholds MultiCQThresholds
}

// NewMultiCQAnalyzer builds an analyzer with default thresholds.
// Signpost marker rows are dropped at construction.
func NewMultiCQAnalyzer(operations []types.OperationPerf) *MultiCQAnalyzer {
	return NewMultiCQAnalyzerWithThresholds(operations, DefaultMultiCQThresholds())
}

// NewMultiCQAnalyzerWithThresholds builds an analyzer with explicit
// thresholds.
func NewMultiCQAnalyzerWithThresholds(operations []types.OperationPerf, th MultiCQThresholds) *MultiCQAnalyzer {
	ops := make([]types.OperationPerf, 0, len(operations))
	for _, op := range operations {
		if op.OpName == types.SignpostName {
			continue
		}
		ops = append(ops, op)
	}
	return &MultiCQAnalyzer{ops: ops, thresholds: th}
}

func (a *MultiCQAnalyzer) opIOOverhead(op *types.OperationPerf) (ioTime, overheadPercent float64) {
	ioTime = op.DispatchCQCmdTimeNs + op.DispatchWaitTimeNs + op.ERISCKernelDurationNs
	opTotal := op.ExecutionTimeNs + op.DispatchCQCmdTimeNs + op.DispatchWaitTimeNs
	if opTotal > 0 {
		overheadPercent = ioTime / opTotal * 100
	}
	return ioTime, overheadPercent
}

// GetSummary computes the run-level I/O picture and the recommendation
// list.
func (a *MultiCQAnalyzer) GetSummary() MultiCQSummary {
	if len(a.ops) == 0 {
		return MultiCQSummary{
			Recommendations: []string{"No operations found in performance data"},
		}
	}

	var totalDevice, totalDispatch, totalWait, totalERISC float64
	ioBoundOps := 0
	for i := range a.ops {
		op := &a.ops[i]
		totalDevice += op.ExecutionTimeNs
		totalDispatch += op.DispatchCQCmdTimeNs
		totalWait += op.DispatchWaitTimeNs
		totalERISC += op.ERISCKernelDurationNs
		if _, overhead := a.opIOOverhead(op); overhead > a.thresholds.IOBoundPercent {
			ioBoundOps++
		}
	}

	totalIO := totalDispatch + totalWait + totalERISC
	totalCompute := totalDevice - totalERISC
	if totalCompute < 0 {
		totalCompute = 0
	}
	// The aggregate denominator counts erisc inside device time only,
	// so it is device+dispatch+wait rather than compute+totalIO.
	denominator := totalDevice + totalDispatch + totalWait
	var overheadPercent float64
	if denominator > 0 {
		overheadPercent = totalIO / denominator * 100
	}

	isIOBound := overheadPercent > a.thresholds.IOBoundPercent
	multiCQ := overheadPercent > a.thresholds.MultiCQPercent

	var recommendations []string
	if isIOBound {
		recommendations = append(recommendations, fmt.Sprintf(
			"Model is I/O-BOUND (%.1f%% I/O overhead): Device compute is waiting for data transfers",
			overheadPercent))
	}
	if multiCQ {
		recommendations = append(recommendations,
			"2CQ RECOMMENDED: Enable 2 command queues to overlap I/O with compute",
			"With 2CQ, one queue handles compute while the other handles data transfers")
	}
	if totalIO > 0 {
		switch {
		case totalDispatch/totalIO > a.thresholds.DominanceRatio:
			recommendations = append(recommendations, fmt.Sprintf(
				"Dispatch CQ time dominates I/O (%.0f%%): Consider batching operations to reduce command overhead",
				totalDispatch/totalIO*100))
		case totalWait/totalIO > a.thresholds.DominanceRatio:
			recommendations = append(recommendations, fmt.Sprintf(
				"Wait time dominates I/O (%.0f%%): Consider async execution or pipelining",
				totalWait/totalIO*100))
		case totalERISC/totalIO > a.thresholds.DominanceRatio:
			recommendations = append(recommendations, fmt.Sprintf(
				"ERISC (data transfer) dominates I/O (%.0f%%): Consider optimizing data placement or using sharding",
				totalERISC/totalIO*100))
		}
	}
	if ioBoundOps > 0 {
		recommendations = append(recommendations, fmt.Sprintf(
			"%d operations (%.1f%%) are I/O-bound: Focus optimization on these operations",
			ioBoundOps, percent(float64(ioBoundOps), float64(len(a.ops)))))
	}
	if !multiCQ && !isIOBound {
		recommendations = append(recommendations, fmt.Sprintf(
			"Model is COMPUTE-BOUND (%.1f%% compute): Focus on kernel optimization rather than I/O overlap",
			100-overheadPercent))
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, "I/O overhead is within acceptable range")
	}

	return MultiCQSummary{
		TotalOperations:    len(a.ops),
		TotalDeviceTimeNs:  totalDevice,
		TotalDispatchNs:    totalDispatch,
		TotalWaitNs:        totalWait,
		TotalERISCNs:       totalERISC,
		TotalIOTimeNs:      totalIO,
		TotalComputeNs:     totalCompute,
		IOOverheadPercent:  overheadPercent,
		IOBoundOperations:  ioBoundOps,
		IsIOBound:          isIOBound,
		MultiCQRecommended: multiCQ,
		Recommendations:    recommendations,
	}
}

// GetIOBoundOperations ranks operations by their I/O overhead
// percentage descending, truncated to limit.
func (a *MultiCQAnalyzer) GetIOBoundOperations(limit int) []OperationIOAnalysis {
	entries := make([]OperationIOAnalysis, 0, len(a.ops))
	for i := range a.ops {
		op := &a.ops[i]
		_, overhead := a.opIOOverhead(op)
		entries = append(entries, OperationIOAnalysis{
			OpCode:            op.OpCode,
			OpName:            op.OpName,
			DeviceTimeNs:      op.ExecutionTimeNs,
			DispatchTimeNs:    op.DispatchCQCmdTimeNs,
			WaitTimeNs:        op.DispatchWaitTimeNs,
			ERISCTimeNs:       op.ERISCKernelDurationNs,
			IOOverheadPercent: overhead,
			IsIOBound:         overhead > a.thresholds.IOBoundPercent,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].IOOverheadPercent > entries[j].IOOverheadPercent
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// GetIODistribution buckets operations by their individual I/O
// overhead percentage. Operations with no recorded time are skipped.
func (a *MultiCQAnalyzer) GetIODistribution() []CountEntry {
	counts := make(map[string]int, len(overheadBands))
	counted := 0
	for i := range a.ops {
		op := &a.ops[i]
		opTotal := op.ExecutionTimeNs + op.DispatchCQCmdTimeNs + op.DispatchWaitTimeNs
		if opTotal <= 0 {
			continue
		}
		counted++
		_, overhead := a.opIOOverhead(op)
		for _, band := range overheadBands {
			if overhead < band.upper {
				counts[band.label]++
				break
			}
		}
	}
	entries := make([]CountEntry, 0, len(overheadBands))
	for _, band := range overheadBands {
		entries = append(entries, CountEntry{
			Label:   band.label,
			Count:   counts[band.label],
			Percent: percent(float64(counts[band.label]), float64(counted)),
		})
	}
	return entries
}
