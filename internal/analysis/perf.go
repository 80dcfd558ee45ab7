package analysis

import (
	"fmt"
	"sort"

	"ttnvis/internal/types"
)

// OpDistribution is one op_code group in the time distribution.
type OpDistribution struct {
	OpCode       string
	Count        int
	TotalTimeNs  float64
	AvgTimeNs    float64
	PercentTime  float64
	PercentCount float64
}

// ToMap converts the entry to a JSON-friendly map.
func (d *OpDistribution) ToMap() map[string]any {
	return map[string]any{
		"op_code":       d.OpCode,
		"count":         d.Count,
		"total_time_ns": d.TotalTimeNs,
		"avg_time_ns":   d.AvgTimeNs,
		"percent_time":  d.PercentTime,
		"percent_count": d.PercentCount,
	}
}

// CoreEfficiency aggregates the operations that ran on one core count.
type CoreEfficiency struct {
	CoreCount    int
	OpCount      int
	TotalTimeNs  float64
	AvgTimeNs    float64
	AvgFPUUtil   float64
	ComputeBound int
	MemoryBound  int
	Balanced     int
}

// ToMap converts the entry to a JSON-friendly map.
func (c *CoreEfficiency) ToMap() map[string]any {
	return map[string]any{
		"core_count":    c.CoreCount,
		"op_count":      c.OpCount,
		"total_time_ns": c.TotalTimeNs,
		"avg_time_ns":   c.AvgTimeNs,
		"avg_fpu_util":  c.AvgFPUUtil,
		"compute_bound": c.ComputeBound,
		"memory_bound":  c.MemoryBound,
		"balanced":      c.Balanced,
	}
}

// OpTypeEntry is one matmul/conv invocation with its derived
// efficiency (ideal over measured time), absent when the performance
// model did not run or the measured time is zero.
type OpTypeEntry struct {
	GlobalCallCount *int
	CoreCount       int
	DeviceTimeNs    float64
	IdealTimeNs     *float64
	Efficiency      *float64
	FPUUtil         float64
	Bound           string
	MathFidelity    string
	OpCode          string
}

// ToMap converts the entry to a JSON-friendly map.
func (e *OpTypeEntry) ToMap() map[string]any {
	return map[string]any{
		"global_call_count": optInt(e.GlobalCallCount),
		"core_count":        e.CoreCount,
		"device_time_ns":    e.DeviceTimeNs,
		"ideal_time_ns":     optFloat(e.IdealTimeNs),
		"efficiency":        optFloat(e.Efficiency),
		"fpu_util":          e.FPUUtil,
		"bound":             e.Bound,
		"math_fidelity":     e.MathFidelity,
		"op_code":           e.OpCode,
	}
}

// OpTypeSummary aggregates one op-type analysis.
type OpTypeSummary struct {
	TotalCount      int
	TotalTimeNs     float64
	PercentOfAllOps float64
	AvgEfficiency   float64
	AvgFPUUtil      float64
}

// EfficiencyBuckets counts operations with a defined efficiency by
// band: high (>80), medium (50-80 inclusive), low (<50).
type EfficiencyBuckets struct {
	High   int
	Medium int
	Low    int
}

// OpTypeAnalysis is the full matmul/conv analysis result.
type OpTypeAnalysis struct {
	Operations             []OpTypeEntry
	Summary                OpTypeSummary
	EfficiencyDistribution EfficiencyBuckets
	MathFidelity           map[string]int
}

// ToMap converts the analysis to a JSON-friendly map.
func (a *OpTypeAnalysis) ToMap() map[string]any {
	ops := make([]map[string]any, 0, len(a.Operations))
	for i := range a.Operations {
		ops = append(ops, a.Operations[i].ToMap())
	}
	return map[string]any{
		"operations": ops,
		"summary": map[string]any{
			"total_count":        a.Summary.TotalCount,
			"total_time_ns":      a.Summary.TotalTimeNs,
			"percent_of_all_ops": a.Summary.PercentOfAllOps,
			"avg_efficiency":     a.Summary.AvgEfficiency,
			"avg_fpu_util":       a.Summary.AvgFPUUtil,
		},
		"efficiency_distribution": map[string]any{
			"high":   a.EfficiencyDistribution.High,
			"medium": a.EfficiencyDistribution.Medium,
			"low":    a.EfficiencyDistribution.Low,
		},
		"math_fidelity": a.MathFidelity,
	}
}

// Bottleneck categories.
const (
	CategoryLowEfficiency     = "low_efficiency"
	CategoryHighGap           = "high_gap"
	CategoryMemoryInefficient = "memory_inefficient"
)

// BottleneckInfo is one operation flagged by a bottleneck pass.
type BottleneckInfo struct {
	GlobalCallCount *int
	OpCode          string
	DeviceTimeNs    float64
	Efficiency      *float64
	Issue           string
	Category        string
}

// ToMap converts the entry to a JSON-friendly map.
func (b *BottleneckInfo) ToMap() map[string]any {
	return map[string]any{
		"global_call_count": optInt(b.GlobalCallCount),
		"op_code":           b.OpCode,
		"device_time_ns":    b.DeviceTimeNs,
		"efficiency":        optFloat(b.Efficiency),
		"issue":             b.Issue,
		"category":          b.Category,
	}
}

// BottleneckCounts carries the unclipped sizes of the three passes.
type BottleneckCounts struct {
	LowEfficiency     int
	HighGap           int
	MemoryInefficient int
}

// BottleneckReport groups the three independent bottleneck passes.
// The per-category lists are capped for display; Counts is not.
type BottleneckReport struct {
	LowEfficiency     []BottleneckInfo
	HighGap           []BottleneckInfo
	MemoryInefficient []BottleneckInfo
	Counts            BottleneckCounts
}

// ToMap converts the report to a JSON-friendly map.
func (r *BottleneckReport) ToMap() map[string]any {
	toMaps := func(infos []BottleneckInfo) []map[string]any {
		out := make([]map[string]any, 0, len(infos))
		for i := range infos {
			out = append(out, infos[i].ToMap())
		}
		return out
	}
	return map[string]any{
		"low_efficiency":     toMaps(r.LowEfficiency),
		"high_gap":           toMaps(r.HighGap),
		"memory_inefficient": toMaps(r.MemoryInefficient),
		"summary": map[string]any{
			"low_efficiency_count":     r.Counts.LowEfficiency,
			"high_gap_count":           r.Counts.HighGap,
			"memory_inefficient_count": r.Counts.MemoryInefficient,
		},
	}
}

// BottleneckThresholds tunes the three bottleneck passes.
type BottleneckThresholds struct {
	// EfficiencyPercent flags operations with reported FPU
	// utilization strictly below it.
	EfficiencyPercent float64
	// GapMs flags operations whose op-to-op gap exceeds it.
	GapMs float64
	// DRAMUtilPercent flags memory-bound operations with reported
	// DRAM utilization strictly below it.
	DRAMUtilPercent float64
	// DisplayLimit caps each per-category list. Counts stay unclipped.
	DisplayLimit int
}

// DefaultBottleneckThresholds returns the standard tuning.
func DefaultBottleneckThresholds() BottleneckThresholds {
	return BottleneckThresholds{
		EfficiencyPercent: 50.0,
		GapMs:             100.0,
		DRAMUtilPercent:   50.0,
		DisplayLimit:      20,
	}
}

// TopOpCode is one entry in the summary's top-by-time list.
type TopOpCode struct {
	OpCode  string
	Count   int
	TimeNs  float64
	Percent float64
}

// Summary is the single-call overview of a performance run.
type Summary struct {
	TotalOperations    int
	TotalDeviceTimeNs  float64
	TotalOpToOpGapNs   float64
	ComputeBoundCount  int
	MemoryBoundCount   int
	BalancedCount      int
	AvgFPUUtil         float64
	AvgDRAMUtil        float64
	TopOpCodes         []TopOpCode
	LowEfficiencyCount int
	HighGapCount       int
}

// ToMap converts the summary to a JSON-friendly map.
func (s *Summary) ToMap() map[string]any {
	top := make([]map[string]any, 0, len(s.TopOpCodes))
	for _, t := range s.TopOpCodes {
		top = append(top, map[string]any{
			"op_code": t.OpCode,
			"count":   t.Count,
			"time_ns": t.TimeNs,
			"percent": t.Percent,
		})
	}
	return map[string]any{
		"total_operations":      s.TotalOperations,
		"total_device_time_ns":  s.TotalDeviceTimeNs,
		"total_op_to_op_gap_ns": s.TotalOpToOpGapNs,
		"compute_bound_count":   s.ComputeBoundCount,
		"memory_bound_count":    s.MemoryBoundCount,
		"balanced_count":        s.BalancedCount,
		"avg_fpu_util":          s.AvgFPUUtil,
		"avg_dram_util":         s.AvgDRAMUtil,
		"top_op_codes":          top,
		"low_efficiency_count":  s.LowEfficiencyCount,
		"high_gap_count":        s.HighGapCount,
	}
}

// Op-code alias sets for the specialized analyses. Matching is
// case-insensitive substring containment.
var (
	matmulOpCodes = []string{"Matmul", "MatmulDeviceOperation"}
	convOpCodes   = []string{"Conv", "Conv2d", "ConvDeviceOperation", "OptimizedConvNew"}
)

// PerfAnalyzer answers distribution, efficiency, and bottleneck
// queries over one performance run. Signpost marker rows are dropped
// at construction so no query ever sees them.
type PerfAnalyzer struct {
	ops       []types.OperationPerf
	totalTime float64
}

// NewPerfAnalyzer builds an analyzer over the given records.
func NewPerfAnalyzer(operations []types.OperationPerf) *PerfAnalyzer {
	ops := make([]types.OperationPerf, 0, len(operations))
	var total float64
	for _, op := range operations {
		if op.OpName == types.SignpostName {
			continue
		}
		ops = append(ops, op)
		total += op.ExecutionTimeNs
	}
	return &PerfAnalyzer{ops: ops, totalTime: total}
}

// Operations returns the signpost-filtered record list.
func (a *PerfAnalyzer) Operations() []types.OperationPerf { return a.ops }

// OpDistribution groups records by op_code and ranks groups by total
// device time descending, truncated to limit.
func (a *PerfAnalyzer) OpDistribution(limit int) []OpDistribution {
	if len(a.ops) == 0 {
		return nil
	}

	groups := make(map[string][]types.OperationPerf)
	var order []string
	for _, op := range a.ops {
		code := op.OpCode
		if code == "" {
			code = "Unknown"
		}
		if _, ok := groups[code]; !ok {
			order = append(order, code)
		}
		groups[code] = append(groups[code], op)
	}

	totalCount := len(a.ops)
	distributions := make([]OpDistribution, 0, len(order))
	for _, code := range order {
		ops := groups[code]
		var totalTime float64
		for _, op := range ops {
			totalTime += op.ExecutionTimeNs
		}
		count := len(ops)
		distributions = append(distributions, OpDistribution{
			OpCode:       code,
			Count:        count,
			TotalTimeNs:  totalTime,
			AvgTimeNs:    totalTime / float64(count),
			PercentTime:  percent(totalTime, a.totalTime),
			PercentCount: percent(float64(count), float64(totalCount)),
		})
	}

	sort.SliceStable(distributions, func(i, j int) bool {
		return distributions[i].TotalTimeNs > distributions[j].TotalTimeNs
	})
	if limit > 0 && len(distributions) > limit {
		distributions = distributions[:limit]
	}
	return distributions
}

// CoreEfficiency groups records with a known core count and reports
// per-group timing, FPU utilization, and bound distribution, sorted
// ascending by core count.
func (a *PerfAnalyzer) CoreEfficiency() []CoreEfficiency {
	if len(a.ops) == 0 {
		return nil
	}

	groups := make(map[int][]types.OperationPerf)
	for _, op := range a.ops {
		if op.CoreCount > 0 {
			groups[op.CoreCount] = append(groups[op.CoreCount], op)
		}
	}

	efficiencies := make([]CoreEfficiency, 0, len(groups))
	for coreCount, ops := range groups {
		var totalTime float64
		fpuUtils := make([]float64, 0, len(ops))
		var computeBound, memoryBound, balanced int
		for _, op := range ops {
			totalTime += op.ExecutionTimeNs
			fpuUtils = append(fpuUtils, op.FPUUtilPercent)
			switch op.Bound() {
			case types.BoundCompute:
				computeBound++
			case types.BoundMemory:
				memoryBound++
			case types.BoundBalanced:
				balanced++
			}
		}
		opCount := len(ops)
		efficiencies = append(efficiencies, CoreEfficiency{
			CoreCount:    coreCount,
			OpCount:      opCount,
			TotalTimeNs:  totalTime,
			AvgTimeNs:    totalTime / float64(opCount),
			AvgFPUUtil:   meanPositive(fpuUtils),
			ComputeBound: computeBound,
			MemoryBound:  memoryBound,
			Balanced:     balanced,
		})
	}

	sort.Slice(efficiencies, func(i, j int) bool {
		return efficiencies[i].CoreCount < efficiencies[j].CoreCount
	})
	return efficiencies
}

// MatmulAnalysis analyzes the matmul-family operations.
func (a *PerfAnalyzer) MatmulAnalysis(limit int) OpTypeAnalysis {
	return a.opTypeAnalysis(matmulOpCodes, limit)
}

// ConvAnalysis analyzes the convolution-family operations.
func (a *PerfAnalyzer) ConvAnalysis(limit int) OpTypeAnalysis {
	return a.opTypeAnalysis(convOpCodes, limit)
}

func (a *PerfAnalyzer) opTypeAnalysis(aliases []string, limit int) OpTypeAnalysis {
	var matched []types.OperationPerf
	for _, op := range a.ops {
		if matchesAnyAlias(op.OpCode, aliases) {
			matched = append(matched, op)
		}
	}
	if len(matched) == 0 {
		return OpTypeAnalysis{MathFidelity: map[string]int{}}
	}

	entries := make([]OpTypeEntry, 0, len(matched))
	for _, op := range matched {
		var efficiency *float64
		if op.PMIdealNs != nil && *op.PMIdealNs != 0 && op.ExecutionTimeNs > 0 {
			e := *op.PMIdealNs / op.ExecutionTimeNs * 100
			efficiency = &e
		}
		fidelity := op.MathFidelity
		if fidelity == "" {
			fidelity = "-"
		}
		entries = append(entries, OpTypeEntry{
			GlobalCallCount: op.GlobalCallCount,
			CoreCount:       op.CoreCount,
			DeviceTimeNs:    op.ExecutionTimeNs,
			IdealTimeNs:     op.PMIdealNs,
			Efficiency:      efficiency,
			FPUUtil:         op.FPUUtilPercent,
			Bound:           op.Bound(),
			MathFidelity:    fidelity,
			OpCode:          op.OpCode,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DeviceTimeNs > entries[j].DeviceTimeNs
	})

	var totalTime float64
	var efficiencies, fpuUtils []float64
	var buckets EfficiencyBuckets
	fidelityCounts := make(map[string]int)
	for _, e := range entries {
		totalTime += e.DeviceTimeNs
		if e.Efficiency != nil {
			efficiencies = append(efficiencies, *e.Efficiency)
			switch {
			case *e.Efficiency > 80:
				buckets.High++
			case *e.Efficiency >= 50:
				buckets.Medium++
			default:
				buckets.Low++
			}
		}
		if e.FPUUtil > 0 {
			fpuUtils = append(fpuUtils, e.FPUUtil)
		}
		if e.MathFidelity != "-" {
			fidelityCounts[e.MathFidelity]++
		}
	}

	display := entries
	if limit > 0 && len(display) > limit {
		display = display[:limit]
	}

	return OpTypeAnalysis{
		Operations: display,
		Summary: OpTypeSummary{
			TotalCount:      len(entries),
			TotalTimeNs:     totalTime,
			PercentOfAllOps: percent(totalTime, a.totalTime),
			AvgEfficiency:   mean(efficiencies),
			AvgFPUUtil:      mean(fpuUtils),
		},
		EfficiencyDistribution: buckets,
		MathFidelity:           fidelityCounts,
	}
}

func matchesAnyAlias(opCode string, aliases []string) bool {
	for _, alias := range aliases {
		if containsFold(opCode, alias) {
			return true
		}
	}
	return false
}

// Bottlenecks runs the three independent bottleneck passes. An
// operation can appear in more than one category.
func (a *PerfAnalyzer) Bottlenecks(th BottleneckThresholds) BottleneckReport {
	var lowEfficiency, highGap, memoryInefficient []BottleneckInfo
	gapThresholdNs := th.GapMs * 1e6

	for _, op := range a.ops {
		code := op.OpCode
		if code == "" {
			code = "Unknown"
		}

		if op.FPUUtilPercent > 0 && op.FPUUtilPercent < th.EfficiencyPercent {
			eff := op.FPUUtilPercent
			lowEfficiency = append(lowEfficiency, BottleneckInfo{
				GlobalCallCount: op.GlobalCallCount,
				OpCode:          code,
				DeviceTimeNs:    op.ExecutionTimeNs,
				Efficiency:      &eff,
				Issue:           fmt.Sprintf("Low FPU utilization (%.1f%%)", op.FPUUtilPercent),
				Category:        CategoryLowEfficiency,
			})
		}

		if op.OpToOpGapNs > gapThresholdNs {
			highGap = append(highGap, BottleneckInfo{
				GlobalCallCount: op.GlobalCallCount,
				OpCode:          code,
				DeviceTimeNs:    op.OpToOpGapNs,
				Issue:           "Host overhead / data transfer",
				Category:        CategoryHighGap,
			})
		}

		if op.Bound() == types.BoundMemory && op.DRAMBWUtilPercent > 0 && op.DRAMBWUtilPercent < th.DRAMUtilPercent {
			util := op.DRAMBWUtilPercent
			memoryInefficient = append(memoryInefficient, BottleneckInfo{
				GlobalCallCount: op.GlobalCallCount,
				OpCode:          code,
				DeviceTimeNs:    op.ExecutionTimeNs,
				Efficiency:      &util,
				Issue:           fmt.Sprintf("Memory-bound with low DRAM utilization (%.1f%%)", op.DRAMBWUtilPercent),
				Category:        CategoryMemoryInefficient,
			})
		}
	}

	byTimeDesc := func(infos []BottleneckInfo) {
		sort.SliceStable(infos, func(i, j int) bool {
			return infos[i].DeviceTimeNs > infos[j].DeviceTimeNs
		})
	}
	byTimeDesc(lowEfficiency)
	byTimeDesc(highGap)
	byTimeDesc(memoryInefficient)

	counts := BottleneckCounts{
		LowEfficiency:     len(lowEfficiency),
		HighGap:           len(highGap),
		MemoryInefficient: len(memoryInefficient),
	}
	return BottleneckReport{
		LowEfficiency:     clip(lowEfficiency, th.DisplayLimit),
		HighGap:           clip(highGap, th.DisplayLimit),
		MemoryInefficient: clip(memoryInefficient, th.DisplayLimit),
		Counts:            counts,
	}
}

func clip(infos []BottleneckInfo, limit int) []BottleneckInfo {
	if limit > 0 && len(infos) > limit {
		return infos[:limit]
	}
	return infos
}

// GetSummary aggregates totals, bound distribution, utilization means,
// top-5 op codes, and bottleneck counts at default thresholds.
func (a *PerfAnalyzer) GetSummary() Summary {
	if len(a.ops) == 0 {
		return Summary{}
	}

	var totalGap float64
	var computeBound, memoryBound, balanced int
	fpuUtils := make([]float64, 0, len(a.ops))
	dramUtils := make([]float64, 0, len(a.ops))
	for _, op := range a.ops {
		totalGap += op.OpToOpGapNs
		switch op.Bound() {
		case types.BoundCompute:
			computeBound++
		case types.BoundMemory:
			memoryBound++
		case types.BoundBalanced:
			balanced++
		}
		fpuUtils = append(fpuUtils, op.FPUUtilPercent)
		dramUtils = append(dramUtils, op.DRAMBWUtilPercent)
	}

	var top []TopOpCode
	for _, d := range a.OpDistribution(5) {
		top = append(top, TopOpCode{
			OpCode:  d.OpCode,
			Count:   d.Count,
			TimeNs:  d.TotalTimeNs,
			Percent: d.PercentTime,
		})
	}

	bottlenecks := a.Bottlenecks(DefaultBottleneckThresholds())

	return Summary{
		TotalOperations:    len(a.ops),
		TotalDeviceTimeNs:  a.totalTime,
		TotalOpToOpGapNs:   totalGap,
		ComputeBoundCount:  computeBound,
		MemoryBoundCount:   memoryBound,
		BalancedCount:      balanced,
		AvgFPUUtil:         meanPositive(fpuUtils),
		AvgDRAMUtil:        meanPositive(dramUtils),
		TopOpCodes:         top,
		LowEfficiencyCount: bottlenecks.Counts.LowEfficiency,
		HighGapCount:       bottlenecks.Counts.HighGap,
	}
}
