package analysis

import (
	"fmt"
	"sort"

	"ttnvis/internal/types"
)

// HostOverheadThresholds tunes the host overhead recommendation rules.
type HostOverheadThresholds struct {
	// HostBoundPercent classifies the run as host-bound above it.
	HostBoundPercent float64
	// MetalTracePercent recommends trace capture above it.
	MetalTracePercent float64
	// VarianceMultiplier flags gap variance when the max gap exceeds
	// the average by this factor.
	VarianceMultiplier float64
	// VarianceMinNs suppresses the variance warning for tiny gaps.
	VarianceMinNs float64
}

// DefaultHostOverheadThresholds returns the standard tuning.
func DefaultHostOverheadThresholds() HostOverheadThresholds {
	return HostOverheadThresholds{
		HostBoundPercent:   30,
		MetalTracePercent:  20,
		VarianceMultiplier: 3,
		VarianceMinNs:      10000,
	}
}

// HostOverheadSummary aggregates device time against op-to-op gaps
// across the whole run.
type HostOverheadSummary struct {
	TotalOperations       int
	TotalDeviceTimeNs     float64
	TotalGapTimeNs        float64
	EndToEndTimeNs        float64
	HostOverheadPercent   float64
	DeviceUtilPercent     float64
	AvgGapNs              float64
	MaxGapNs              float64
	IsHostBound           bool
	MetalTraceRecommended bool
	Recommendations       []string
}

// ToMap converts the summary to a JSON-friendly map.
func (s *HostOverheadSummary) ToMap() map[string]any {
	return map[string]any{
		"total_operations":        s.TotalOperations,
		"total_device_time_ns":    s.TotalDeviceTimeNs,
		"total_device_time_ms":    round3(s.TotalDeviceTimeNs / 1e6),
		"total_gap_time_ns":       s.TotalGapTimeNs,
		"total_gap_time_ms":       round3(s.TotalGapTimeNs / 1e6),
		"end_to_end_time_ns":      s.EndToEndTimeNs,
		"end_to_end_time_ms":      round3(s.EndToEndTimeNs / 1e6),
		"host_overhead_percent":   round2(s.HostOverheadPercent),
		"device_util_percent":     round2(s.DeviceUtilPercent),
		"avg_gap_ns":              round2(s.AvgGapNs),
		"max_gap_ns":              s.MaxGapNs,
		"is_host_bound":           s.IsHostBound,
		"metal_trace_recommended": s.MetalTraceRecommended,
		"recommendations":         s.Recommendations,
	}
}

// OperationOverhead is one operation's share of host overhead.
type OperationOverhead struct {
	OpCode          string
	OpName          string
	DeviceTimeNs    float64
	OpToOpGapNs     float64
	OverheadPercent float64
	CoreCount       int
}

// ToMap converts the entry to a JSON-friendly map.
func (o *OperationOverhead) ToMap() map[string]any {
	return map[string]any{
		"op_code":          o.OpCode,
		"op_name":          o.OpName,
		"device_time_ns":   o.DeviceTimeNs,
		"device_time_us":   round2(o.DeviceTimeNs / 1000),
		"op_to_op_gap_ns":  o.OpToOpGapNs,
		"op_to_op_gap_us":  round2(o.OpToOpGapNs / 1000),
		"overhead_percent": round2(o.OverheadPercent),
		"core_count":       o.CoreCount,
	}
}

// HostOverheadAnalyzer measures how much of the run the device spent
// waiting on host dispatch, using per-operation op-to-op gaps.
type HostOverheadAnalyzer struct {
	ops        []types.OperationPerf
	thresholds HostOverheadThresholds
}

// NewHostOverheadAnalyzer builds an analyzer with default thresholds.
// Signpost marker rows are dropped at construction.
func NewHostOverheadAnalyzer(operations []types.OperationPerf) *HostOverheadAnalyzer {
	return NewHostOverheadAnalyzerWithThresholds(operations, DefaultHostOverheadThresholds())
}

// NewHostOverheadAnalyzerWithThresholds builds an analyzer with
// explicit thresholds.
func NewHostOverheadAnalyzerWithThresholds(operations []types.OperationPerf, th HostOverheadThresholds) *HostOverheadAnalyzer {
	ops := make([]types.OperationPerf, 0, len(operations))
	for _, op := range operations {
		if op.OpName == types.SignpostName {
			continue
		}
		ops = append(ops, op)
	}
	return &HostOverheadAnalyzer{ops: ops, thresholds: th}
}

// GetSummary computes the run-level overhead picture and the
// recommendation list.
func (a *HostOverheadAnalyzer) GetSummary() HostOverheadSummary {
	if len(a.ops) == 0 {
		return HostOverheadSummary{
			Recommendations: []string{"No operations found in performance data"},
		}
	}

	var totalDevice, totalGap, maxGap float64
	for _, op := range a.ops {
		totalDevice += op.ExecutionTimeNs
		totalGap += op.OpToOpGapNs
		if op.OpToOpGapNs > maxGap {
			maxGap = op.OpToOpGapNs
		}
	}
	endToEnd := totalDevice + totalGap

	var overheadPercent, deviceUtil float64
	if endToEnd > 0 {
		overheadPercent = totalGap / endToEnd * 100
		deviceUtil = totalDevice / endToEnd * 100
	}
	avgGap := totalGap / float64(len(a.ops))

	isHostBound := overheadPercent > a.thresholds.HostBoundPercent
	metalTrace := overheadPercent > a.thresholds.MetalTracePercent

	var recommendations []string
	if isHostBound {
		recommendations = append(recommendations, fmt.Sprintf(
			"Model is HOST-BOUND (%.1f%% overhead): Device is waiting for host dispatch",
			overheadPercent))
	}
	if metalTrace {
		recommendations = append(recommendations,
			"METAL TRACE RECOMMENDED: Capture and replay operations to eliminate host overhead",
			"Prerequisites: All tensor shapes must be static, same operations run repeatedly")
	}
	if maxGap > avgGap*a.thresholds.VarianceMultiplier && maxGap > a.thresholds.VarianceMinNs {
		recommendations = append(recommendations, fmt.Sprintf(
			"Large gap variance detected (max: %.1fus, avg: %.1fus): Investigate specific operations with high gaps",
			maxGap/1000, avgGap/1000))
	}
	if overheadPercent < a.thresholds.MetalTracePercent {
		recommendations = append(recommendations, fmt.Sprintf(
			"Model is DEVICE-BOUND (%.1f%% device utilization): Focus on kernel optimization rather than host overhead",
			100-overheadPercent))
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Host overhead is within acceptable range")
	}

	return HostOverheadSummary{
		TotalOperations:       len(a.ops),
		TotalDeviceTimeNs:     totalDevice,
		TotalGapTimeNs:        totalGap,
		EndToEndTimeNs:        endToEnd,
		HostOverheadPercent:   overheadPercent,
		DeviceUtilPercent:     deviceUtil,
		AvgGapNs:              avgGap,
		MaxGapNs:              maxGap,
		IsHostBound:           isHostBound,
		MetalTraceRecommended: metalTrace,
		Recommendations:       recommendations,
	}
}

// GetTopOverheadOperations ranks operations by raw op-to-op gap
// descending, truncated to limit.
func (a *HostOverheadAnalyzer) GetTopOverheadOperations(limit int) []OperationOverhead {
	entries := make([]OperationOverhead, 0, len(a.ops))
	for _, op := range a.ops {
		total := op.ExecutionTimeNs + op.OpToOpGapNs
		var overhead float64
		if total > 0 {
			overhead = op.OpToOpGapNs / total * 100
		}
		entries = append(entries, OperationOverhead{
			OpCode:          op.OpCode,
			OpName:          op.OpName,
			DeviceTimeNs:    op.ExecutionTimeNs,
			OpToOpGapNs:     op.OpToOpGapNs,
			OverheadPercent: overhead,
			CoreCount:       op.CoreCount,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OpToOpGapNs > entries[j].OpToOpGapNs
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

var overheadBands = []struct {
	label string
	upper float64
}{
	{"0-10%", 10},
	{"10-20%", 20},
	{"20-30%", 30},
	{"30-50%", 50},
	{"50%+", 101},
}

// GetOverheadDistribution buckets operations by their individual
// overhead percentage. Operations with no recorded time are skipped.
func (a *HostOverheadAnalyzer) GetOverheadDistribution() []CountEntry {
	counts := make(map[string]int, len(overheadBands))
	counted := 0
	for _, op := range a.ops {
		total := op.ExecutionTimeNs + op.OpToOpGapNs
		if total <= 0 {
			continue
		}
		counted++
		overhead := op.OpToOpGapNs / total * 100
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
