package perfcsv

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ttnvis/internal/types"
)

const sampleCSV = `OP CODE,OP NAME,DEVICE ID,CORE COUNT,DEVICE KERNEL DURATION [ns],OP TO OP LATENCY [ns],PM IDEAL [ns],PM COMPUTE [ns],PM BANDWIDTH [ns],MATH FIDELITY,INPUT_0_MEMORY,INPUT_0_LAYOUT,PM FPU UTIL (%),DRAM BW UTIL (%)
Matmul,matmul_1,0,64,1000,50,800,700,200,HiFi2,DEV_0_DRAM_INTERLEAVED,TILE,75.5,40.0
Softmax,softmax_1,0,32,500,20,,,,,,ROW_MAJOR,,
BadRow,bad_1,0,notanumber,xx,,,,,,,,,
Signpost,signpost,0,0,0,0,,,,,,,,
`

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadParsesAliasedHeaders(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "ops_perf_results_2026.csv", sampleCSV)

	report, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !report.Valid() {
		t.Fatal("report not valid")
	}
	ops := report.Operations()
	// The malformed row is skipped; signpost rows stay in the raw list.
	if len(ops) != 3 {
		t.Fatalf("row count = %d, want 3", len(ops))
	}

	op := ops[0]
	if op.OpCode != "Matmul" || op.OpName != "matmul_1" {
		t.Errorf("identity = %q/%q", op.OpCode, op.OpName)
	}
	if op.CoreCount != 64 || op.ExecutionTimeNs != 1000 || op.OpToOpGapNs != 50 {
		t.Errorf("timing = cores %d exec %v gap %v", op.CoreCount, op.ExecutionTimeNs, op.OpToOpGapNs)
	}
	if op.PMIdealNs == nil || *op.PMIdealNs != 800 {
		t.Errorf("PMIdealNs = %v, want 800", op.PMIdealNs)
	}
	if op.MathFidelity != "HiFi2" {
		t.Errorf("fidelity = %q", op.MathFidelity)
	}
	if op.BufferType != "DRAM" {
		t.Errorf("buffer type = %q, want DRAM", op.BufferType)
	}
	if op.FPUUtilPercent != 75.5 || op.DRAMBWUtilPercent != 40 {
		t.Errorf("utilization = fpu %v dram %v", op.FPUUtilPercent, op.DRAMBWUtilPercent)
	}

	// Absent performance-model cells stay nil, not zero.
	if ops[1].PMIdealNs != nil || ops[1].PMComputeNs != nil {
		t.Errorf("softmax model fields = %v/%v, want nil", ops[1].PMIdealNs, ops[1].PMComputeNs)
	}
}

func TestLoadFullRow(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "ops_perf_results.csv", sampleCSV)

	report, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ideal, compute, bandwidth := 800.0, 700.0, 200.0
	want := types.OperationPerf{
		OpCode:            "Matmul",
		OpName:            "matmul_1",
		CoreCount:         64,
		ExecutionTimeNs:   1000,
		OpToOpGapNs:       50,
		PMIdealNs:         &ideal,
		PMComputeNs:       &compute,
		PMBandwidthNs:     &bandwidth,
		MathFidelity:      "HiFi2",
		BufferType:        "DRAM",
		Layout:            "TILE",
		FPUUtilPercent:    75.5,
		DRAMBWUtilPercent: 40,
	}
	if diff := cmp.Diff(want, report.Operations()[0]); diff != "" {
		t.Errorf("parsed row mismatch (-want +got):\n%s", diff)
	}
}

func TestLocateDirectFile(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "custom_name.csv", sampleCSV)

	got, err := Locate(path)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got != path {
		t.Errorf("Locate = %q, want %q", got, path)
	}
}

func TestLocatePicksNewest(t *testing.T) {
	dir := t.TempDir()
	older := writeCSV(t, dir, "ops_perf_results_old.csv", sampleCSV)
	newer := writeCSV(t, dir, "ops_perf_results_new.csv", sampleCSV)

	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	got, err := Locate(dir)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got != newer {
		t.Errorf("Locate = %q, want %q", got, newer)
	}
}

func TestLocateRecursive(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "reports", "run_1")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := writeCSV(t, nested, "ops_perf_results.csv", sampleCSV)

	got, err := Locate(dir)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got != want {
		t.Errorf("Locate = %q, want %q", got, want)
	}
}

func TestLocateMissing(t *testing.T) {
	if _, err := Locate(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("Locate on a missing path must fail")
	}
	if _, err := Locate(t.TempDir()); err == nil {
		t.Fatal("Locate on a directory without CSVs must fail")
	}
}

func TestGetSummary(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "ops_perf_results.csv", sampleCSV)

	report, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := report.GetSummary()
	if s.TotalOperations != 3 {
		t.Fatalf("TotalOperations = %d, want 3", s.TotalOperations)
	}
	// Only the two rows with a positive execution time count toward
	// the timing aggregates.
	if s.TotalTimeNs != 1500 {
		t.Errorf("TotalTimeNs = %v, want 1500", s.TotalTimeNs)
	}
	if s.AvgTimeNs != 750 || s.MaxTimeNs != 1000 || s.MinTimeNs != 500 {
		t.Errorf("aggregates = avg %v max %v min %v", s.AvgTimeNs, s.MaxTimeNs, s.MinTimeNs)
	}
}
