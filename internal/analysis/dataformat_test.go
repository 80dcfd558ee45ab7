package analysis

import (
	"strings"
	"testing"

	"ttnvis/internal/types"
)

func TestDataFormatSummary(t *testing.T) {
	tensors := []types.Tensor{
		{ID: 1, DType: "DataType.BFLOAT16", Layout: "Layout.TILE"},
		{ID: 2, DType: "DataType.BFLOAT16", Layout: "Layout.TILE"},
		{ID: 3, DType: "DataType.FLOAT32", Layout: "Layout.ROW_MAJOR"},
		{ID: 4, DType: "DataType.BFLOAT8_B", Layout: "Layout.TILE"},
	}
	s := NewDataFormatAnalyzer(tensors).GetSummary()

	if s.TotalTensors != 4 {
		t.Fatalf("TotalTensors = %d, want 4", s.TotalTensors)
	}
	if s.BFloat16Count != 2 || s.BFloat8BCount != 1 || s.Float32Count != 1 {
		t.Errorf("dtype counts = %d/%d/%d, want 2/1/1", s.BFloat16Count, s.BFloat8BCount, s.Float32Count)
	}
	if s.TileLayoutCount != 3 || s.RowMajorCount != 1 {
		t.Errorf("layout counts = %d/%d, want 3/1", s.TileLayoutCount, s.RowMajorCount)
	}
	if s.TileLayoutPercent != 75 {
		t.Errorf("TileLayoutPercent = %v, want 75", s.TileLayoutPercent)
	}
	// Distribution is sorted by count descending and covers every tensor.
	if s.DTypeDistribution[0].Label != "BFLOAT16" {
		t.Errorf("top dtype = %q, want BFLOAT16", s.DTypeDistribution[0].Label)
	}
	sum := 0
	for _, d := range s.DTypeDistribution {
		sum += d.Count
	}
	if sum != 4 {
		t.Errorf("dtype distribution covers %d tensors, want 4", sum)
	}
	if len(s.Recommendations) == 0 {
		t.Fatal("no recommendations")
	}
}

func TestDataFormatRecommendations(t *testing.T) {
	// bfloat8_b absent while bfloat16 is used, plus FLOAT32 present.
	tensors := []types.Tensor{
		{ID: 1, DType: "BFLOAT16", Layout: "TILE"},
		{ID: 2, DType: "FLOAT32", Layout: "TILE"},
	}
	s := NewDataFormatAnalyzer(tensors).GetSummary()

	var sawBfp8, sawFloat32 bool
	for _, r := range s.Recommendations {
		if strings.Contains(r, "Low bfloat8_b usage") {
			sawBfp8 = true
		}
		if strings.Contains(r, "1 tensors use FLOAT32") {
			sawFloat32 = true
		}
	}
	if !sawBfp8 {
		t.Errorf("missing bfloat8_b recommendation: %v", s.Recommendations)
	}
	if !sawFloat32 {
		t.Errorf("missing FLOAT32 recommendation: %v", s.Recommendations)
	}
}

func TestDataFormatSummaryEmpty(t *testing.T) {
	s := NewDataFormatAnalyzer(nil).GetSummary()
	if s.TotalTensors != 0 {
		t.Errorf("TotalTensors = %d, want 0", s.TotalTensors)
	}
	if len(s.Recommendations) != 1 || s.Recommendations[0] != "No tensors found" {
		t.Errorf("Recommendations = %v", s.Recommendations)
	}
}

func TestDataFormatHealthy(t *testing.T) {
	tensors := []types.Tensor{
		{ID: 1, DType: "BFLOAT8_B", Layout: "TILE"},
		{ID: 2, DType: "BFLOAT8_B", Layout: "TILE"},
		{ID: 3, DType: "BFLOAT16", Layout: "TILE"},
	}
	s := NewDataFormatAnalyzer(tensors).GetSummary()
	if len(s.Recommendations) != 1 || s.Recommendations[0] != "Data format configuration looks good" {
		t.Errorf("Recommendations = %v", s.Recommendations)
	}
}

func TestMathFidelitySummary(t *testing.T) {
	ops := []types.OperationPerf{
		{OpCode: "Matmul", MathFidelity: "MathFidelity.LoFi"},
		{OpCode: "Matmul", MathFidelity: "MathFidelity.HiFi4"},
		{OpCode: "Matmul", MathFidelity: "MathFidelity.HiFi2"},
		{OpCode: "Softmax", MathFidelity: ""},
	}
	s := NewMathFidelityAnalyzer(ops).GetSummary()

	// Only rows carrying fidelity data count toward the denominator.
	if s.TotalOperations != 3 {
		t.Fatalf("TotalOperations = %d, want 3", s.TotalOperations)
	}
	if s.LoFiCount != 1 || s.HiFi2Count != 1 || s.HiFi4Count != 1 {
		t.Errorf("counts = LoFi %d HiFi2 %d HiFi4 %d, want 1/1/1", s.LoFiCount, s.HiFi2Count, s.HiFi4Count)
	}

	var sawLoFi, sawHiFi4 bool
	for _, r := range s.Recommendations {
		if strings.Contains(r, "Consider starting with LoFi") {
			sawLoFi = true
		}
		if strings.Contains(r, "HiFi4 has lowest throughput") {
			sawHiFi4 = true
		}
	}
	if !sawLoFi || !sawHiFi4 {
		t.Errorf("Recommendations = %v", s.Recommendations)
	}
}

func TestMathFidelitySummaryNoData(t *testing.T) {
	s := NewMathFidelityAnalyzer(nil).GetSummary()
	if len(s.Recommendations) != 1 || s.Recommendations[0] != "No operations with math fidelity data" {
		t.Errorf("empty: %v", s.Recommendations)
	}

	ops := []types.OperationPerf{{OpCode: "Matmul"}, {OpCode: "Softmax"}}
	s = NewMathFidelityAnalyzer(ops).GetSummary()
	if s.TotalOperations != 2 {
		t.Errorf("TotalOperations = %d, want 2", s.TotalOperations)
	}
	if len(s.Recommendations) != 1 || s.Recommendations[0] != "No math fidelity data in performance report" {
		t.Errorf("no-data: %v", s.Recommendations)
	}
}

func TestMathFidelityDistribution(t *testing.T) {
	ops := []types.OperationPerf{
		{MathFidelity: "HiFi2"},
		{MathFidelity: "HiFi2"},
		{MathFidelity: "LoFi"},
	}
	dist := NewMathFidelityAnalyzer(ops).GetDistribution()
	if len(dist) != 2 {
		t.Fatalf("len = %d, want 2", len(dist))
	}
	if dist[0].Label != "HiFi2" || dist[0].Count != 2 {
		t.Errorf("top = %+v, want HiFi2 count 2", dist[0])
	}
}
