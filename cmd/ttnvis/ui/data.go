package ui

import (
	"fmt"

	"ttnvis/internal/analysis"
	"ttnvis/internal/perfcsv"
	"ttnvis/internal/profdb"
	"ttnvis/internal/types"
)

// Thresholds carries the analyzer tuning into the viewer.
type Thresholds struct {
	Sharding   analysis.ShardingThresholds
	DataFormat analysis.DataFormatThresholds
	Host       analysis.HostOverheadThresholds
	MultiCQ    analysis.MultiCQThresholds
}

// DefaultThresholds returns the analyzer defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Sharding:   analysis.DefaultShardingThresholds(),
		DataFormat: analysis.DefaultDataFormatThresholds(),
		Host:       analysis.DefaultHostOverheadThresholds(),
		MultiCQ:    analysis.DefaultMultiCQThresholds(),
	}
}

// Data is everything the pages render, assembled in one pass so a
// reload swaps the whole view atomically.
type Data struct {
	Info       types.ReportInfo
	Memory     types.MemorySummary
	Operations []types.Operation
	Tensors    []types.Tensor

	Sharding   analysis.ShardingSummary
	DataFormat analysis.DataFormatSummary

	// Performance sections; zero-valued when no CSV is configured.
	HasPerf     bool
	PerfOps     []types.OperationPerf
	PerfSummary perfcsv.Summary
	OpDist      []analysis.OpDistribution
	Host        analysis.HostOverheadSummary
	MultiCQ     analysis.MultiCQSummary
	TopOverhead []analysis.OperationOverhead
}

// Loader produces a fresh Data. The app calls it at startup and again
// whenever the watched artifacts change.
type Loader func() (*Data, error)

// BuildData reads the snapshot (and performance report when present)
// and runs every analyzer. The report may be nil; the snapshot may not.
func BuildData(db *profdb.DB, report *perfcsv.Report, th Thresholds) (*Data, error) {
	if db == nil {
		return nil, fmt.Errorf("no profiler snapshot available")
	}

	info, err := db.GetReportInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to read report info: %w", err)
	}
	memory, err := db.GetMemorySummary()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory summary: %w", err)
	}
	operations, err := db.GetOperations()
	if err != nil {
		return nil, fmt.Errorf("failed to read operations: %w", err)
	}
	tensors, err := db.GetTensors()
	if err != nil {
		return nil, fmt.Errorf("failed to read tensors: %w", err)
	}
	flow, err := db.GetOperationTensorFlow()
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor flow: %w", err)
	}

	opTensors := make([]analysis.OperationTensors, 0, len(flow))
	for _, row := range flow {
		opTensors = append(opTensors, analysis.OperationTensors{
			OperationID:   row.OperationID,
			OperationName: row.OperationName,
			Inputs:        row.Inputs,
			Outputs:       row.Outputs,
		})
	}
	reshards := analysis.CountReshards(opTensors)

	d := &Data{
		Info:       info,
		Memory:     memory,
		Operations: operations,
		Tensors:    tensors,
		Sharding:   analysis.NewShardingAnalyzerWithThresholds(tensors, th.Sharding).GetSummary(reshards),
		DataFormat: analysis.NewDataFormatAnalyzerWithThresholds(tensors, th.DataFormat).GetSummary(),
	}

	if report != nil && report.Valid() {
		ops := report.Operations()
		host := analysis.NewHostOverheadAnalyzerWithThresholds(ops, th.Host)

		d.HasPerf = true
		d.PerfOps = ops
		d.PerfSummary = report.GetSummary()
		d.OpDist = analysis.NewPerfAnalyzer(ops).OpDistribution(10)
		d.Host = host.GetSummary()
		d.MultiCQ = analysis.NewMultiCQAnalyzerWithThresholds(ops, th.MultiCQ).GetSummary()
		d.TopOverhead = host.GetTopOverheadOperations(10)
	}

	return d, nil
}

// Recommendations collects every analyzer recommendation for the
// dashboard, ordered memory first, then timing.
func (d *Data) Recommendations() []string {
	var recs []string
	recs = append(recs, d.Sharding.Recommendations...)
	recs = append(recs, d.DataFormat.Recommendations...)
	if d.HasPerf {
		recs = append(recs, d.Host.Recommendations...)
		recs = append(recs, d.MultiCQ.Recommendations...)
	}
	return recs
}
