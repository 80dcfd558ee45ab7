package analysis

import (
	"math"
	"strings"
	"testing"

	"ttnvis/internal/types"
)

func TestMultiCQSummaryIOBound(t *testing.T) {
	var ops []types.OperationPerf
	for i := 0; i < 3; i++ {
		ops = append(ops, types.OperationPerf{
			OpCode:              "AllGather",
			ExecutionTimeNs:     1000,
			DispatchCQCmdTimeNs: 2000,
			DispatchWaitTimeNs:  500,
		})
	}
	s := NewMultiCQAnalyzer(ops).GetSummary()

	// totalIO / (device + dispatch + wait) = 7500 / 10500
	want := 7500.0 / 10500.0 * 100
	if math.Abs(s.IOOverheadPercent-want) > 1e-9 {
		t.Fatalf("IOOverheadPercent = %v, want %v", s.IOOverheadPercent, want)
	}
	if !s.IsIOBound || !s.MultiCQRecommended {
		t.Error("run must be flagged I/O-bound with 2CQ recommended")
	}

	var sawIOBound, saw2CQ, sawOverlap, sawDispatch bool
	for _, r := range s.Recommendations {
		if strings.Contains(r, "I/O-BOUND") {
			sawIOBound = true
		}
		if strings.Contains(r, "2CQ RECOMMENDED") {
			saw2CQ = true
		}
		if strings.Contains(r, "one queue handles compute") {
			sawOverlap = true
		}
		if strings.Contains(r, "Dispatch CQ time dominates I/O") {
			sawDispatch = true
		}
	}
	if !sawIOBound || !saw2CQ || !sawOverlap || !sawDispatch {
		t.Errorf("Recommendations = %v", s.Recommendations)
	}
}

func TestMultiCQSummaryComputeBound(t *testing.T) {
	var ops []types.OperationPerf
	for i := 0; i < 3; i++ {
		ops = append(ops, types.OperationPerf{
			OpCode:              "Matmul",
			ExecutionTimeNs:     10000,
			DispatchCQCmdTimeNs: 100,
		})
	}
	s := NewMultiCQAnalyzer(ops).GetSummary()

	if s.IsIOBound || s.MultiCQRecommended {
		t.Error("compute-heavy run must not recommend 2CQ")
	}
	var sawComputeBound bool
	for _, r := range s.Recommendations {
		if strings.Contains(r, "COMPUTE-BOUND") {
			sawComputeBound = true
		}
	}
	if !sawComputeBound {
		t.Errorf("Recommendations = %v", s.Recommendations)
	}
}

func TestMultiCQERISCDominance(t *testing.T) {
	ops := []types.OperationPerf{
		{
			OpCode:                "AllGather",
			ExecutionTimeNs:       1000,
			ERISCKernelDurationNs: 900,
			DispatchCQCmdTimeNs:   50,
			DispatchWaitTimeNs:    50,
		},
	}
	s := NewMultiCQAnalyzer(ops).GetSummary()

	var sawERISC bool
	for _, r := range s.Recommendations {
		if strings.Contains(r, "ERISC (data transfer) dominates I/O") {
			sawERISC = true
		}
	}
	if !sawERISC {
		t.Errorf("Recommendations = %v", s.Recommendations)
	}
	if s.TotalERISCNs != 900 {
		t.Errorf("TotalERISCNs = %v, want 900", s.TotalERISCNs)
	}
	// ERISC time is carved out of device time for the compute total.
	if s.TotalComputeNs != 100 {
		t.Errorf("TotalComputeNs = %v, want 100", s.TotalComputeNs)
	}
}

func TestMultiCQSummaryEmpty(t *testing.T) {
	s := NewMultiCQAnalyzer(nil).GetSummary()
	if s.TotalOperations != 0 {
		t.Errorf("TotalOperations = %d, want 0", s.TotalOperations)
	}
	if len(s.Recommendations) != 1 || s.Recommendations[0] != "No operations found in performance data" {
		t.Errorf("Recommendations = %v", s.Recommendations)
	}
}

func TestMultiCQDropsSignposts(t *testing.T) {
	ops := []types.OperationPerf{
		{OpName: types.SignpostName, DispatchCQCmdTimeNs: 1e9},
		{OpCode: "Matmul", ExecutionTimeNs: 1000},
	}
	s := NewMultiCQAnalyzer(ops).GetSummary()
	if s.TotalOperations != 1 || s.TotalDispatchNs != 0 {
		t.Errorf("summary = ops %d dispatch %v, want 1 / 0", s.TotalOperations, s.TotalDispatchNs)
	}
}

func TestGetIOBoundOperations(t *testing.T) {
	ops := []types.OperationPerf{
		{OpCode: "Matmul", ExecutionTimeNs: 10000, DispatchCQCmdTimeNs: 100},
		{OpCode: "AllGather", ExecutionTimeNs: 1000, DispatchCQCmdTimeNs: 2000, DispatchWaitTimeNs: 1000},
	}
	entries := NewMultiCQAnalyzer(ops).GetIOBoundOperations(0)
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].OpCode != "AllGather" {
		t.Errorf("top entry = %q, want AllGather", entries[0].OpCode)
	}
	if !entries[0].IsIOBound {
		t.Error("AllGather must be flagged I/O-bound")
	}
	if entries[1].IsIOBound {
		t.Error("Matmul must not be flagged I/O-bound")
	}
	if got := entries[0].TotalIOTimeNs(); got != 3000 {
		t.Errorf("TotalIOTimeNs = %v, want 3000", got)
	}
}

func TestGetIODistribution(t *testing.T) {
	ops := []types.OperationPerf{
		{OpCode: "A", ExecutionTimeNs: 1000},
		{OpCode: "B", ExecutionTimeNs: 1000, DispatchCQCmdTimeNs: 3000},
		{OpCode: "C"},
	}
	dist := NewMultiCQAnalyzer(ops).GetIODistribution()
	if len(dist) != 5 {
		t.Fatalf("band count = %d, want 5", len(dist))
	}
	byLabel := make(map[string]int)
	total := 0
	for _, e := range dist {
		byLabel[e.Label] = e.Count
		total += e.Count
	}
	if byLabel["0-10%"] != 1 || byLabel["50%+"] != 1 {
		t.Errorf("distribution = %v", byLabel)
	}
	if total != 2 {
		t.Errorf("counted %d operations, want 2 (zero-time rows skipped)", total)
	}
}
