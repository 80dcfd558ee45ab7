package analysis

import (
	"fmt"
	"sort"

	"ttnvis/internal/types"
)

// DataFormatThresholds tunes the data-format recommendation rules.
type DataFormatThresholds struct {
	// BFloat8BLowPercent suggests bfloat8_b weights below this usage.
	BFloat8BLowPercent float64
	// TileLowPercent flags TILE layout usage below this share.
	TileLowPercent float64
}

// DefaultDataFormatThresholds returns the standard tuning.
func DefaultDataFormatThresholds() DataFormatThresholds {
	return DataFormatThresholds{
		BFloat8BLowPercent: 20,
		TileLowPercent:     50,
	}
}

// FidelityThresholds tunes the math-fidelity recommendation rules.
type FidelityThresholds struct {
	// LoFiRecommendedPercent suggests starting from LoFi when its
	// share is below this.
	LoFiRecommendedPercent float64
}

// DefaultFidelityThresholds returns the standard tuning.
func DefaultFidelityThresholds() FidelityThresholds {
	return FidelityThresholds{LoFiRecommendedPercent: 50}
}

// CountEntry is one label in a frequency distribution.
type CountEntry struct {
	Label   string
	Count   int
	Percent float64
}

// DTypeDistribution is the per-dtype frequency entry.
type DTypeDistribution CountEntry

// ToMap converts the entry to a JSON-friendly map.
func (d *DTypeDistribution) ToMap() map[string]any {
	return map[string]any{
		"dtype":   d.Label,
		"count":   d.Count,
		"percent": round2(d.Percent),
	}
}

// LayoutDistribution is the per-layout frequency entry.
type LayoutDistribution CountEntry

// ToMap converts the entry to a JSON-friendly map.
func (l *LayoutDistribution) ToMap() map[string]any {
	return map[string]any{
		"layout":  l.Label,
		"count":   l.Count,
		"percent": round2(l.Percent),
	}
}

// FidelityDistribution is the per-fidelity frequency entry.
type FidelityDistribution CountEntry

// ToMap converts the entry to a JSON-friendly map.
func (f *FidelityDistribution) ToMap() map[string]any {
	return map[string]any{
		"fidelity": f.Label,
		"count":    f.Count,
		"percent":  round2(f.Percent),
	}
}

// DataFormatSummary is the dtype/layout analysis result.
type DataFormatSummary struct {
	TotalTensors         int
	DTypeDistribution    []DTypeDistribution
	LayoutDistribution   []LayoutDistribution
	BFloat16Count        int
	BFloat8BCount        int
	Float32Count         int
	TileLayoutCount      int
	RowMajorCount        int
	BFloat8BUsagePercent float64
	TileLayoutPercent    float64
	Recommendations      []string
}

// ToMap converts the summary to a JSON-friendly map.
func (s *DataFormatSummary) ToMap() map[string]any {
	dtypes := make([]map[string]any, 0, len(s.DTypeDistribution))
	for i := range s.DTypeDistribution {
		dtypes = append(dtypes, s.DTypeDistribution[i].ToMap())
	}
	layouts := make([]map[string]any, 0, len(s.LayoutDistribution))
	for i := range s.LayoutDistribution {
		layouts = append(layouts, s.LayoutDistribution[i].ToMap())
	}
	return map[string]any{
		"total_tensors":           s.TotalTensors,
		"dtype_distribution":      dtypes,
		"layout_distribution":     layouts,
		"bfloat16_count":          s.BFloat16Count,
		"bfloat8_b_count":         s.BFloat8BCount,
		"float32_count":           s.Float32Count,
		"tile_layout_count":       s.TileLayoutCount,
		"row_major_count":         s.RowMajorCount,
		"bfloat8_b_usage_percent": round2(s.BFloat8BUsagePercent),
		"tile_layout_percent":     round2(s.TileLayoutPercent),
		"recommendations":         s.Recommendations,
	}
}

// MathFidelitySummary is the fidelity analysis result. TotalOperations
// counts only records that carried fidelity data.
type MathFidelitySummary struct {
	TotalOperations      int
	FidelityDistribution []FidelityDistribution
	LoFiCount            int
	HiFi2Count           int
	HiFi3Count           int
	HiFi4Count           int
	LoFiPercent          float64
	Recommendations      []string
}

// ToMap converts the summary to a JSON-friendly map.
func (s *MathFidelitySummary) ToMap() map[string]any {
	dist := make([]map[string]any, 0, len(s.FidelityDistribution))
	for i := range s.FidelityDistribution {
		dist = append(dist, s.FidelityDistribution[i].ToMap())
	}
	return map[string]any{
		"total_operations":      s.TotalOperations,
		"fidelity_distribution": dist,
		"lofi_count":            s.LoFiCount,
		"hifi2_count":           s.HiFi2Count,
		"hifi3_count":           s.HiFi3Count,
		"hifi4_count":           s.HiFi4Count,
		"lofi_percent":          round2(s.LoFiPercent),
		"recommendations":       s.Recommendations,
	}
}

// DataFormatAnalyzer classifies tensor dtypes and layouts.
type DataFormatAnalyzer struct {
	tensors    []types.Tensor
	thresholds DataFormatThresholds
}

// NewDataFormatAnalyzer builds an analyzer with default thresholds.
func NewDataFormatAnalyzer(tensors []types.Tensor) *DataFormatAnalyzer {
	return NewDataFormatAnalyzerWithThresholds(tensors, DefaultDataFormatThresholds())
}

// NewDataFormatAnalyzerWithThresholds builds an analyzer with explicit
// thresholds.
func NewDataFormatAnalyzerWithThresholds(tensors []types.Tensor, th DataFormatThresholds) *DataFormatAnalyzer {
	return &DataFormatAnalyzer{tensors: tensors, thresholds: th}
}

// countByLabel counts normalized labels preserving first-seen order
// for deterministic tie-breaks in the sorted output.
func countByLabel(n int, label func(i int) string) (map[string]int, []string) {
	counts := make(map[string]int)
	var order []string
	for i := 0; i < n; i++ {
		l := label(i)
		if _, ok := counts[l]; !ok {
			order = append(order, l)
		}
		counts[l]++
	}
	return counts, order
}

func sortedEntries(counts map[string]int, order []string, total int) []CountEntry {
	entries := make([]CountEntry, 0, len(order))
	for _, label := range order {
		entries = append(entries, CountEntry{
			Label:   label,
			Count:   counts[label],
			Percent: percent(float64(counts[label]), float64(total)),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })
	return entries
}

// GetSummary builds the data-format summary with recommendations.
func (a *DataFormatAnalyzer) GetSummary() DataFormatSummary {
	if len(a.tensors) == 0 {
		return DataFormatSummary{Recommendations: []string{"No tensors found"}}
	}

	dtypeCounts, dtypeOrder := countByLabel(len(a.tensors), func(i int) string {
		return NormalizeDType(a.tensors[i].DType)
	})
	layoutCounts, layoutOrder := countByLabel(len(a.tensors), func(i int) string {
		return NormalizeLayout(a.tensors[i].Layout)
	})

	total := len(a.tensors)
	var dtypeDist []DTypeDistribution
	for _, e := range sortedEntries(dtypeCounts, dtypeOrder, total) {
		dtypeDist = append(dtypeDist, DTypeDistribution(e))
	}
	var layoutDist []LayoutDistribution
	for _, e := range sortedEntries(layoutCounts, layoutOrder, total) {
		layoutDist = append(layoutDist, LayoutDistribution(e))
	}

	bfloat16 := dtypeCounts["BFLOAT16"]
	bfloat8b := dtypeCounts["BFLOAT8_B"]
	float32Count := dtypeCounts["FLOAT32"]
	tile := layoutCounts["TILE"]
	rowMajor := layoutCounts["ROW_MAJOR"]

	bfloat8bPercent := percent(float64(bfloat8b), float64(total))
	tilePercent := percent(float64(tile), float64(total))

	var recommendations []string
	if bfloat8bPercent < a.thresholds.BFloat8BLowPercent && bfloat16 > 0 {
		recommendations = append(recommendations, fmt.Sprintf(
			"Low bfloat8_b usage (%.1f%%): Consider using bfloat8_b for weights (2x memory reduction)",
			bfloat8bPercent))
	}
	if tilePercent < a.thresholds.TileLowPercent {
		recommendations = append(recommendations, fmt.Sprintf(
			"Low TILE layout usage (%.1f%%): TILE layout is required for most compute operations",
			tilePercent))
	}
	if float32Count > 0 {
		recommendations = append(recommendations, fmt.Sprintf(
			"%d tensors use FLOAT32: Consider BFLOAT16 for activations to reduce memory",
			float32Count))
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Data format configuration looks good")
	}

	return DataFormatSummary{
		TotalTensors:         total,
		DTypeDistribution:    dtypeDist,
		LayoutDistribution:   layoutDist,
		BFloat16Count:        bfloat16,
		BFloat8BCount:        bfloat8b,
		Float32Count:         float32Count,
		TileLayoutCount:      tile,
		RowMajorCount:        rowMajor,
		BFloat8BUsagePercent: bfloat8bPercent,
		TileLayoutPercent:    tilePercent,
		Recommendations:      recommendations,
	}
}

// DTypeDistributionList returns the dtype frequency distribution
// sorted by count descending.
func (a *DataFormatAnalyzer) DTypeDistributionList() []DTypeDistribution {
	if len(a.tensors) == 0 {
		return nil
	}
	counts, order := countByLabel(len(a.tensors), func(i int) string {
		return NormalizeDType(a.tensors[i].DType)
	})
	var dist []DTypeDistribution
	for _, e := range sortedEntries(counts, order, len(a.tensors)) {
		dist = append(dist, DTypeDistribution(e))
	}
	return dist
}

// LayoutDistributionList returns the layout frequency distribution
// sorted by count descending.
func (a *DataFormatAnalyzer) LayoutDistributionList() []LayoutDistribution {
	if len(a.tensors) == 0 {
		return nil
	}
	counts, order := countByLabel(len(a.tensors), func(i int) string {
		return NormalizeLayout(a.tensors[i].Layout)
	})
	var dist []LayoutDistribution
	for _, e := range sortedEntries(counts, order, len(a.tensors)) {
		dist = append(dist, LayoutDistribution(e))
	}
	return dist
}

// MathFidelityAnalyzer classifies per-operation math fidelity from
// performance records. Only records carrying fidelity data count
// toward the distribution denominator.
type MathFidelityAnalyzer struct {
	operations []types.OperationPerf
	thresholds FidelityThresholds
}

// NewMathFidelityAnalyzer builds an analyzer with default thresholds.
func NewMathFidelityAnalyzer(operations []types.OperationPerf) *MathFidelityAnalyzer {
	return NewMathFidelityAnalyzerWithThresholds(operations, DefaultFidelityThresholds())
}

// NewMathFidelityAnalyzerWithThresholds builds an analyzer with
// explicit thresholds.
func NewMathFidelityAnalyzerWithThresholds(operations []types.OperationPerf, th FidelityThresholds) *MathFidelityAnalyzer {
	return &MathFidelityAnalyzer{operations: operations, thresholds: th}
}

// GetSummary builds the fidelity summary. No operations at all and no
// operations carrying fidelity data are distinguished empty states.
func (a *MathFidelityAnalyzer) GetSummary() MathFidelitySummary {
	if len(a.operations) == 0 {
		return MathFidelitySummary{
			Recommendations: []string{"No operations with math fidelity data"},
		}
	}

	counts := make(map[string]int)
	var order []string
	withFidelity := 0
	for _, op := range a.operations {
		if op.MathFidelity == "" {
			continue
		}
		f := NormalizeMathFidelity(op.MathFidelity)
		if _, ok := counts[f]; !ok {
			order = append(order, f)
		}
		counts[f]++
		withFidelity++
	}

	if withFidelity == 0 {
		return MathFidelitySummary{
			TotalOperations: len(a.operations),
			Recommendations: []string{"No math fidelity data in performance report"},
		}
	}

	var dist []FidelityDistribution
	for _, e := range sortedEntries(counts, order, withFidelity) {
		dist = append(dist, FidelityDistribution(e))
	}

	lofi := counts["LoFi"]
	hifi4 := counts["HiFi4"]
	lofiPercent := percent(float64(lofi), float64(withFidelity))

	var recommendations []string
	if lofiPercent < a.thresholds.LoFiRecommendedPercent {
		recommendations = append(recommendations, fmt.Sprintf(
			"LoFi usage is %.1f%%: Consider starting with LoFi for better performance, increase only if PCC is insufficient",
			lofiPercent))
	}
	if hifi4 > 0 {
		recommendations = append(recommendations, fmt.Sprintf(
			"%d operations use HiFi4: HiFi4 has lowest throughput, consider HiFi2/HiFi3 if precision allows",
			hifi4))
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Math fidelity configuration looks reasonable")
	}

	return MathFidelitySummary{
		TotalOperations:      withFidelity,
		FidelityDistribution: dist,
		LoFiCount:            lofi,
		HiFi2Count:           counts["HiFi2"],
		HiFi3Count:           counts["HiFi3"],
		HiFi4Count:           hifi4,
		LoFiPercent:          lofiPercent,
		Recommendations:      recommendations,
	}
}

// GetDistribution returns the fidelity frequency distribution sorted
// by count descending, nil when no record carries fidelity data.
func (a *MathFidelityAnalyzer) GetDistribution() []FidelityDistribution {
	if len(a.operations) == 0 {
		return nil
	}
	counts := make(map[string]int)
	var order []string
	total := 0
	for _, op := range a.operations {
		if op.MathFidelity == "" {
			continue
		}
		f := NormalizeMathFidelity(op.MathFidelity)
		if _, ok := counts[f]; !ok {
			order = append(order, f)
		}
		counts[f]++
		total++
	}
	if total == 0 {
		return nil
	}
	var dist []FidelityDistribution
	for _, e := range sortedEntries(counts, order, total) {
		dist = append(dist, FidelityDistribution(e))
	}
	return dist
}
