package analysis

import (
	"strings"
	"testing"

	"ttnvis/internal/types"
)

func heightSharded(id int) types.Tensor {
	return types.Tensor{
		ID:           id,
		MemoryConfig: "TensorMemoryLayout::HEIGHT_SHARDED, BufferType::L1",
	}
}

func TestShardingDistribution(t *testing.T) {
	tensors := []types.Tensor{
		heightSharded(1),
		heightSharded(2),
		{ID: 3, MemoryConfig: "TensorMemoryLayout::INTERLEAVED, BufferType::DRAM"},
		{ID: 4, MemoryConfig: "TensorMemoryLayout::BLOCK_SHARDED, BufferType::L1"},
	}
	a := NewShardingAnalyzer(tensors)

	dist := a.GetDistribution()
	if len(dist) != 3 {
		t.Fatalf("group count = %d, want 3", len(dist))
	}
	if dist[0].Strategy != "HEIGHT_SHARDED" || dist[0].Count != 2 {
		t.Errorf("top group = %+v, want HEIGHT_SHARDED count 2", dist[0])
	}
	if dist[0].L1Count != 2 || dist[0].DRAMCount != 0 {
		t.Errorf("HEIGHT_SHARDED memory split = L1 %d DRAM %d, want 2/0", dist[0].L1Count, dist[0].DRAMCount)
	}

	s := a.GetSummary(0)
	if s.TotalTensors != 4 || s.HeightShardedCount != 2 {
		t.Errorf("summary = total %d height %d, want 4/2", s.TotalTensors, s.HeightShardedCount)
	}
	if s.ShardedPercent != 75 {
		t.Errorf("ShardedPercent = %v, want 75", s.ShardedPercent)
	}
	if s.InterleavedPercent != 25 {
		t.Errorf("InterleavedPercent = %v, want 25", s.InterleavedPercent)
	}
}

func TestShardingSummaryRecommendations(t *testing.T) {
	// Mostly interleaved, lots of reshards, some unknowns.
	tensors := []types.Tensor{
		{ID: 1, MemoryConfig: "INTERLEAVED"},
		{ID: 2, MemoryConfig: "INTERLEAVED"},
		{ID: 3, MemoryConfig: "INTERLEAVED"},
		{ID: 4, MemoryConfig: "something else"},
	}
	s := NewShardingAnalyzer(tensors).GetSummary(15)

	var sawInterleaved, sawReshard, sawUnknown bool
	for _, r := range s.Recommendations {
		if strings.Contains(r, "High INTERLEAVED usage") {
			sawInterleaved = true
		}
		if strings.Contains(r, "High reshard count (15)") {
			sawReshard = true
		}
		if strings.Contains(r, "1 tensors have unknown sharding strategy") {
			sawUnknown = true
		}
	}
	if !sawInterleaved || !sawReshard || !sawUnknown {
		t.Errorf("Recommendations = %v", s.Recommendations)
	}
}

func TestShardingSummaryEmpty(t *testing.T) {
	s := NewShardingAnalyzer(nil).GetSummary(0)
	if s.TotalTensors != 0 {
		t.Errorf("TotalTensors = %d, want 0", s.TotalTensors)
	}
	if len(s.Recommendations) == 0 {
		t.Error("empty input must still yield a recommendation")
	}
}

func TestAllTensorShardingsFilters(t *testing.T) {
	tensors := []types.Tensor{
		heightSharded(1),
		{ID: 2, MemoryConfig: "TensorMemoryLayout::INTERLEAVED, BufferType::DRAM"},
		heightSharded(3),
	}
	a := NewShardingAnalyzer(tensors)

	got := a.AllTensorShardings("height_sharded", "", 0)
	if len(got) != 2 {
		t.Fatalf("strategy filter matched %d, want 2", len(got))
	}
	got = a.AllTensorShardings("", "dram", 0)
	if len(got) != 1 || got[0].TensorID != 2 {
		t.Fatalf("buffer filter = %+v, want tensor 2", got)
	}
	got = a.AllTensorShardings("", "", 1)
	if len(got) != 1 || got[0].TensorID != 1 {
		t.Fatalf("limit = %+v, want tensor 1 only", got)
	}
}

func TestDetectReshards(t *testing.T) {
	ops := []OperationTensors{
		{
			OperationID:   1,
			OperationName: "conv",
			Outputs:       []types.Tensor{{ID: 10, MemoryConfig: "HEIGHT_SHARDED"}},
		},
		{
			OperationID:   2,
			OperationName: "matmul",
			Inputs:        []types.Tensor{{ID: 10, MemoryConfig: "HEIGHT_SHARDED"}},
			Outputs:       []types.Tensor{{ID: 11, MemoryConfig: "HEIGHT_SHARDED"}},
		},
		{
			OperationID:   3,
			OperationName: "softmax",
			Inputs:        []types.Tensor{{ID: 11, MemoryConfig: "INTERLEAVED"}},
		},
	}
	results := DetectReshards(ops)
	if len(results) != 3 {
		t.Fatalf("result count = %d, want 3", len(results))
	}
	if results[0].HasReshard || results[1].HasReshard {
		t.Error("first two operations must not be flagged")
	}
	if !results[2].HasReshard {
		t.Fatal("operation 3 must be flagged")
	}
	if results[2].ReshardDetail != "HEIGHT_SHARDED -> INTERLEAVED" {
		t.Errorf("detail = %q", results[2].ReshardDetail)
	}
}

func TestDetectReshardsCarriesAcrossEmptyOutputs(t *testing.T) {
	// An operation with no tracked outputs leaves the carried state
	// alone, so C is compared against A, not B.
	ops := []OperationTensors{
		{OperationID: 1, Outputs: []types.Tensor{{ID: 1, MemoryConfig: "HEIGHT_SHARDED"}}},
		{OperationID: 2},
		{OperationID: 3, Inputs: []types.Tensor{{ID: 1, MemoryConfig: "INTERLEAVED"}}},
	}
	results := DetectReshards(ops)
	if !results[2].HasReshard {
		t.Fatal("operation 3 must be flagged against operation 1's output")
	}
	if results[2].ReshardDetail != "HEIGHT_SHARDED -> INTERLEAVED" {
		t.Errorf("detail = %q", results[2].ReshardDetail)
	}
}

func TestDetectReshardsIgnoresUnknown(t *testing.T) {
	ops := []OperationTensors{
		{OperationID: 1, Outputs: []types.Tensor{{ID: 1, MemoryConfig: ""}}},
		{OperationID: 2, Inputs: []types.Tensor{{ID: 1, MemoryConfig: "HEIGHT_SHARDED"}}},
	}
	results := DetectReshards(ops)
	if results[1].HasReshard {
		t.Error("unknown shardings must never count as a mismatch")
	}
}

func TestCountReshards(t *testing.T) {
	ops := []OperationTensors{
		{OperationID: 1, Outputs: []types.Tensor{{ID: 1, MemoryConfig: "HEIGHT_SHARDED"}}},
		{OperationID: 2, Inputs: []types.Tensor{{ID: 1, MemoryConfig: "INTERLEAVED"}}, Outputs: []types.Tensor{{ID: 2, MemoryConfig: "INTERLEAVED"}}},
		{OperationID: 3, Inputs: []types.Tensor{{ID: 2, MemoryConfig: "BLOCK_SHARDED"}}},
	}
	if got := CountReshards(ops); got != 2 {
		t.Errorf("CountReshards = %d, want 2", got)
	}
}
