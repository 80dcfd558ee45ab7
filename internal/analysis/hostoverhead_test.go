package analysis

import (
	"math"
	"strings"
	"testing"

	"ttnvis/internal/types"
)

func TestHostOverheadSummaryHostBound(t *testing.T) {
	// Gap dwarfs device time: 5000ns gap per 1000ns of work.
	var ops []types.OperationPerf
	for i := 0; i < 3; i++ {
		ops = append(ops, types.OperationPerf{
			OpCode:          "Matmul",
			ExecutionTimeNs: 1000,
			OpToOpGapNs:     5000,
		})
	}
	s := NewHostOverheadAnalyzer(ops).GetSummary()

	want := 5000.0 / 6000.0 * 100
	if math.Abs(s.HostOverheadPercent-want) > 1e-9 {
		t.Fatalf("HostOverheadPercent = %v, want %v", s.HostOverheadPercent, want)
	}
	if !s.IsHostBound {
		t.Error("IsHostBound = false, want true")
	}
	if !s.MetalTraceRecommended {
		t.Error("MetalTraceRecommended = false, want true")
	}

	var sawHostBound, sawTrace, sawPrereq bool
	for _, r := range s.Recommendations {
		if strings.Contains(r, "HOST-BOUND") {
			sawHostBound = true
		}
		if strings.Contains(r, "METAL TRACE RECOMMENDED") {
			sawTrace = true
		}
		if strings.Contains(r, "Prerequisites") {
			sawPrereq = true
		}
	}
	if !sawHostBound || !sawTrace || !sawPrereq {
		t.Errorf("Recommendations = %v", s.Recommendations)
	}
}

func TestHostOverheadSummaryDeviceBound(t *testing.T) {
	var ops []types.OperationPerf
	for i := 0; i < 3; i++ {
		ops = append(ops, types.OperationPerf{
			OpCode:          "Matmul",
			ExecutionTimeNs: 10000,
			OpToOpGapNs:     100,
		})
	}
	s := NewHostOverheadAnalyzer(ops).GetSummary()

	if s.HostOverheadPercent >= 5 {
		t.Fatalf("HostOverheadPercent = %v, want < 5", s.HostOverheadPercent)
	}
	if s.IsHostBound || s.MetalTraceRecommended {
		t.Error("device-bound run must not be flagged host-bound")
	}

	var sawDeviceBound bool
	for _, r := range s.Recommendations {
		if strings.Contains(r, "DEVICE-BOUND") {
			sawDeviceBound = true
		}
	}
	if !sawDeviceBound {
		t.Errorf("Recommendations = %v", s.Recommendations)
	}
}

func TestHostOverheadGapVariance(t *testing.T) {
	ops := []types.OperationPerf{
		{OpCode: "A", ExecutionTimeNs: 1e6, OpToOpGapNs: 1000},
		{OpCode: "B", ExecutionTimeNs: 1e6, OpToOpGapNs: 1000},
		{OpCode: "C", ExecutionTimeNs: 1e6, OpToOpGapNs: 50000},
	}
	s := NewHostOverheadAnalyzer(ops).GetSummary()

	var sawVariance bool
	for _, r := range s.Recommendations {
		if strings.Contains(r, "Large gap variance detected") {
			sawVariance = true
		}
	}
	if !sawVariance {
		t.Errorf("Recommendations = %v", s.Recommendations)
	}
	if s.MaxGapNs != 50000 {
		t.Errorf("MaxGapNs = %v, want 50000", s.MaxGapNs)
	}
}

func TestHostOverheadSummaryEmpty(t *testing.T) {
	s := NewHostOverheadAnalyzer(nil).GetSummary()
	if s.TotalOperations != 0 || s.HostOverheadPercent != 0 {
		t.Errorf("empty summary not zero: %+v", s)
	}
	if len(s.Recommendations) != 1 || s.Recommendations[0] != "No operations found in performance data" {
		t.Errorf("Recommendations = %v", s.Recommendations)
	}
}

func TestHostOverheadDropsSignposts(t *testing.T) {
	ops := []types.OperationPerf{
		{OpName: types.SignpostName, OpToOpGapNs: 1e9},
		{OpCode: "Matmul", ExecutionTimeNs: 1000, OpToOpGapNs: 100},
	}
	s := NewHostOverheadAnalyzer(ops).GetSummary()
	if s.TotalOperations != 1 {
		t.Errorf("TotalOperations = %d, want 1", s.TotalOperations)
	}
	if s.TotalGapTimeNs != 100 {
		t.Errorf("TotalGapTimeNs = %v, want 100", s.TotalGapTimeNs)
	}
}

func TestTopOverheadOperationsRanksByRawGap(t *testing.T) {
	ops := []types.OperationPerf{
		{OpCode: "A", ExecutionTimeNs: 100, OpToOpGapNs: 50},
		{OpCode: "B", ExecutionTimeNs: 1e6, OpToOpGapNs: 5000},
		{OpCode: "C", ExecutionTimeNs: 10, OpToOpGapNs: 900},
	}
	top := NewHostOverheadAnalyzer(ops).GetTopOverheadOperations(2)
	if len(top) != 2 {
		t.Fatalf("len = %d, want 2", len(top))
	}
	// B has the largest raw gap even though C's overhead percentage is
	// far higher.
	if top[0].OpCode != "B" || top[1].OpCode != "C" {
		t.Errorf("order = %q, %q, want B, C", top[0].OpCode, top[1].OpCode)
	}
	wantOverhead := 900.0 / 910.0 * 100
	if math.Abs(top[1].OverheadPercent-wantOverhead) > 1e-9 {
		t.Errorf("C overhead = %v, want %v", top[1].OverheadPercent, wantOverhead)
	}
}

func TestOverheadDistributionBands(t *testing.T) {
	// A sits at 5%, B at 40%, C at 90%; D has no time and is skipped.
	ops := []types.OperationPerf{
		{OpCode: "A", ExecutionTimeNs: 95, OpToOpGapNs: 5},
		{OpCode: "B", ExecutionTimeNs: 60, OpToOpGapNs: 40},
		{OpCode: "C", ExecutionTimeNs: 10, OpToOpGapNs: 90},
		{OpCode: "D", ExecutionTimeNs: 0, OpToOpGapNs: 0},
	}
	dist := NewHostOverheadAnalyzer(ops).GetOverheadDistribution()
	if len(dist) != 5 {
		t.Fatalf("band count = %d, want 5", len(dist))
	}
	byLabel := make(map[string]int)
	for _, e := range dist {
		byLabel[e.Label] = e.Count
	}
	if byLabel["0-10%"] != 1 || byLabel["30-50%"] != 1 || byLabel["50%+"] != 1 {
		t.Errorf("distribution = %v", byLabel)
	}
	total := 0
	for _, c := range byLabel {
		total += c
	}
	if total != 3 {
		t.Errorf("counted %d operations, want 3", total)
	}
}
