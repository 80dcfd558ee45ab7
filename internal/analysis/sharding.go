package analysis

import (
	"fmt"
	"sort"
	"strings"

	"ttnvis/internal/types"
)

// ShardingThresholds tunes the sharding recommendation rules.
type ShardingThresholds struct {
	// InterleavedWarningPercent warns when INTERLEAVED usage exceeds it.
	InterleavedWarningPercent float64
	// ReshardWarning warns when the detected reshard count exceeds it.
	ReshardWarning int
}

// DefaultShardingThresholds returns the standard tuning.
func DefaultShardingThresholds() ShardingThresholds {
	return ShardingThresholds{
		InterleavedWarningPercent: 50,
		ReshardWarning:            10,
	}
}

// ShardingDistribution is one strategy group with its memory-class
// sub-counts.
type ShardingDistribution struct {
	Strategy  string
	Count     int
	Percent   float64
	L1Count   int
	DRAMCount int
}

// ToMap converts the entry to a JSON-friendly map.
func (d *ShardingDistribution) ToMap() map[string]any {
	return map[string]any{
		"strategy":   d.Strategy,
		"count":      d.Count,
		"percent":    d.Percent,
		"l1_count":   d.L1Count,
		"dram_count": d.DRAMCount,
	}
}

// TensorShardingInfo is the classified view of one tensor.
type TensorShardingInfo struct {
	TensorID         int
	Shape            string
	DType            string
	Layout           string
	BufferType       string
	ShardingStrategy string
	MemoryConfig     string
}

// ToMap converts the entry to a JSON-friendly map.
func (t *TensorShardingInfo) ToMap() map[string]any {
	return map[string]any{
		"tensor_id":         t.TensorID,
		"shape":             t.Shape,
		"dtype":             t.DType,
		"layout":            t.Layout,
		"buffer_type":       t.BufferType,
		"sharding_strategy": t.ShardingStrategy,
		"memory_config":     t.MemoryConfig,
	}
}

// OperationSharding is the reshard detector's verdict for one
// operation in the executed sequence.
type OperationSharding struct {
	OperationID     int
	OperationName   string
	InputShardings  []string
	OutputShardings []string
	HasReshard      bool
	ReshardDetail   string
}

// ToMap converts the entry to a JSON-friendly map.
func (o *OperationSharding) ToMap() map[string]any {
	var detail any
	if o.ReshardDetail != "" {
		detail = o.ReshardDetail
	}
	return map[string]any{
		"operation_id":     o.OperationID,
		"operation_name":   o.OperationName,
		"input_shardings":  o.InputShardings,
		"output_shardings": o.OutputShardings,
		"has_reshard":      o.HasReshard,
		"reshard_detail":   detail,
	}
}

// ShardingSummary is the overall sharding analysis result.
type ShardingSummary struct {
	TotalTensors       int
	HeightShardedCount int
	WidthShardedCount  int
	BlockShardedCount  int
	InterleavedCount   int
	SingleBankCount    int
	UnknownCount       int
	ShardedPercent     float64
	InterleavedPercent float64
	ReshardCount       int
	Recommendations    []string
}

// ToMap converts the summary to a JSON-friendly map.
func (s *ShardingSummary) ToMap() map[string]any {
	return map[string]any{
		"total_tensors":        s.TotalTensors,
		"height_sharded_count": s.HeightShardedCount,
		"width_sharded_count":  s.WidthShardedCount,
		"block_sharded_count":  s.BlockShardedCount,
		"interleaved_count":    s.InterleavedCount,
		"single_bank_count":    s.SingleBankCount,
		"unknown_count":        s.UnknownCount,
		"sharded_percent":      s.ShardedPercent,
		"interleaved_percent":  s.InterleavedPercent,
		"reshard_count":        s.ReshardCount,
		"recommendations":      s.Recommendations,
	}
}

// ShardingAnalyzer classifies every tensor's sharding strategy and
// memory class at construction and answers distribution and summary
// queries over that classification.
type ShardingAnalyzer struct {
	infos      map[int]TensorShardingInfo
	order      []int
	thresholds ShardingThresholds
}

// NewShardingAnalyzer builds an analyzer with default thresholds.
func NewShardingAnalyzer(tensors []types.Tensor) *ShardingAnalyzer {
	return NewShardingAnalyzerWithThresholds(tensors, DefaultShardingThresholds())
}

// NewShardingAnalyzerWithThresholds builds an analyzer with explicit
// thresholds.
func NewShardingAnalyzerWithThresholds(tensors []types.Tensor, th ShardingThresholds) *ShardingAnalyzer {
	a := &ShardingAnalyzer{
		infos:      make(map[int]TensorShardingInfo, len(tensors)),
		thresholds: th,
	}
	for i := range tensors {
		t := &tensors[i]
		if _, ok := a.infos[t.ID]; !ok {
			a.order = append(a.order, t.ID)
		}
		a.infos[t.ID] = TensorShardingInfo{
			TensorID:         t.ID,
			Shape:            t.Shape,
			DType:            t.DType,
			Layout:           t.Layout,
			BufferType:       ParseBufferType(t.MemoryConfig, t.BufferType),
			ShardingStrategy: ParseShardingStrategy(t.MemoryConfig),
			MemoryConfig:     t.MemoryConfig,
		}
	}
	return a
}

// TensorSharding returns the classified view of one tensor, nil when
// the id is not in the snapshot.
func (a *ShardingAnalyzer) TensorSharding(tensorID int) *TensorShardingInfo {
	if info, ok := a.infos[tensorID]; ok {
		return &info
	}
	return nil
}

// AllTensorShardings lists the classified tensors with optional
// strategy/buffer filters and a result cap.
func (a *ShardingAnalyzer) AllTensorShardings(strategyFilter, bufferFilter string, limit int) []TensorShardingInfo {
	results := make([]TensorShardingInfo, 0, len(a.order))
	for _, id := range a.order {
		info := a.infos[id]
		if strategyFilter != "" && info.ShardingStrategy != strings.ToUpper(strategyFilter) {
			continue
		}
		if bufferFilter != "" && info.BufferType != strings.ToUpper(bufferFilter) {
			continue
		}
		results = append(results, info)
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// GetDistribution groups tensors by strategy with L1/DRAM sub-counts,
// sorted by count descending.
func (a *ShardingAnalyzer) GetDistribution() []ShardingDistribution {
	if len(a.order) == 0 {
		return nil
	}

	type bucket struct {
		count, l1, dram int
	}
	buckets := make(map[string]*bucket)
	var strategies []string
	for _, id := range a.order {
		info := a.infos[id]
		b, ok := buckets[info.ShardingStrategy]
		if !ok {
			b = &bucket{}
			buckets[info.ShardingStrategy] = b
			strategies = append(strategies, info.ShardingStrategy)
		}
		b.count++
		switch info.BufferType {
		case "L1":
			b.l1++
		case "DRAM":
			b.dram++
		}
	}

	total := len(a.order)
	distributions := make([]ShardingDistribution, 0, len(strategies))
	for _, strategy := range strategies {
		b := buckets[strategy]
		distributions = append(distributions, ShardingDistribution{
			Strategy:  strategy,
			Count:     b.count,
			Percent:   percent(float64(b.count), float64(total)),
			L1Count:   b.l1,
			DRAMCount: b.dram,
		})
	}
	sort.SliceStable(distributions, func(i, j int) bool {
		return distributions[i].Count > distributions[j].Count
	})
	return distributions
}

// GetSummary builds the sharding summary. reshardCount comes from
// DetectReshards over the executed operation sequence.
func (a *ShardingAnalyzer) GetSummary(reshardCount int) ShardingSummary {
	if len(a.order) == 0 {
		return ShardingSummary{Recommendations: []string{"No tensors found"}}
	}

	counts := make(map[string]int)
	for _, id := range a.order {
		counts[a.infos[id].ShardingStrategy]++
	}

	total := len(a.order)
	shardedCount := counts["HEIGHT_SHARDED"] + counts["WIDTH_SHARDED"] + counts["BLOCK_SHARDED"]
	interleavedPercent := percent(float64(counts["INTERLEAVED"]), float64(total))

	var recommendations []string
	if interleavedPercent > a.thresholds.InterleavedWarningPercent {
		recommendations = append(recommendations, fmt.Sprintf(
			"High INTERLEAVED usage (%.1f%%): Consider sharding for better L1 utilization",
			interleavedPercent))
	}
	if reshardCount > a.thresholds.ReshardWarning {
		recommendations = append(recommendations, fmt.Sprintf(
			"High reshard count (%d): Consider consistent sharding strategy across operations",
			reshardCount))
	}
	if shardedCount > 0 {
		heightRatio := float64(counts["HEIGHT_SHARDED"]) / float64(shardedCount)
		if heightRatio < 0.5 && counts["HEIGHT_SHARDED"] < counts["WIDTH_SHARDED"] {
			recommendations = append(recommendations,
				"Consider HEIGHT_SHARDED for most operations (recommended for spatial operations)")
		}
	}
	if counts[Unknown] > 0 {
		recommendations = append(recommendations, fmt.Sprintf(
			"%d tensors have unknown sharding strategy", counts[Unknown]))
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Sharding configuration looks reasonable")
	}

	return ShardingSummary{
		TotalTensors:       total,
		HeightShardedCount: counts["HEIGHT_SHARDED"],
		WidthShardedCount:  counts["WIDTH_SHARDED"],
		BlockShardedCount:  counts["BLOCK_SHARDED"],
		InterleavedCount:   counts["INTERLEAVED"],
		SingleBankCount:    counts["SINGLE_BANK"],
		UnknownCount:       counts[Unknown],
		ShardedPercent:     percent(float64(shardedCount), float64(total)),
		InterleavedPercent: interleavedPercent,
		ReshardCount:       reshardCount,
		Recommendations:    recommendations,
	}
}

// OperationTensors is one operation in execution order with its input
// and output tensors, as supplied by the snapshot reader.
type OperationTensors struct {
	OperationID   int
	OperationName string
	Inputs        []types.Tensor
	Outputs       []types.Tensor
}

// DetectReshards walks the executed operation sequence and flags an
// operation when it consumes a known input sharding that differs from
// the previous operation's known output sharding. The detail string
// records the first mismatching pair found.
//
// The carried state is the last non-empty output sharding list: an
// operation that produces no tracked outputs leaves the state
// untouched, so a later operation is compared against the last
// operation that actually produced tensors. The walk is a pure fold
// over the ordered input; re-run it in full on new data.
func DetectReshards(operations []OperationTensors) []OperationSharding {
	results := make([]OperationSharding, 0, len(operations))
	var prevOutputs []string

	for _, op := range operations {
		inputs := make([]string, 0, len(op.Inputs))
		for i := range op.Inputs {
			inputs = append(inputs, ParseShardingStrategy(op.Inputs[i].MemoryConfig))
		}
		outputs := make([]string, 0, len(op.Outputs))
		for i := range op.Outputs {
			outputs = append(outputs, ParseShardingStrategy(op.Outputs[i].MemoryConfig))
		}

		var hasReshard bool
		var detail string
	scan:
		for _, in := range inputs {
			if in == Unknown {
				continue
			}
			for _, out := range prevOutputs {
				if out != Unknown && in != out {
					hasReshard = true
					detail = fmt.Sprintf("%s -> %s", out, in)
					break scan
				}
			}
		}

		results = append(results, OperationSharding{
			OperationID:     op.OperationID,
			OperationName:   op.OperationName,
			InputShardings:  inputs,
			OutputShardings: outputs,
			HasReshard:      hasReshard,
			ReshardDetail:   detail,
		})

		if len(outputs) > 0 {
			prevOutputs = outputs
		}
	}

	return results
}

// CountReshards is a convenience over DetectReshards for callers that
// only need the total.
func CountReshards(operations []OperationTensors) int {
	count := 0
	for _, r := range DetectReshards(operations) {
		if r.HasReshard {
			count++
		}
	}
	return count
}
