package main

import (
	"os"

	"github.com/spf13/cobra"

	"ttnvis/internal/analysis"
	"ttnvis/internal/profdb"
	"ttnvis/internal/render"
)

var (
	shardingStrategyFilter string
	shardingBufferFilter   string
	shardingLimit          int
)

// shardingCmd audits tensor sharding and reshard churn.
var shardingCmd = &cobra.Command{
	Use:   "sharding",
	Short: "Audit tensor sharding strategies and reshards",
	RunE:  runShardingSummary,
}

var shardingTensorsCmd = &cobra.Command{
	Use:   "tensors",
	Short: "List tensors with their sharding classification",
	RunE:  runShardingTensors,
}

var shardingReshardsCmd = &cobra.Command{
	Use:   "reshards",
	Short: "Walk the operation sequence and flag reshards",
	RunE:  runShardingReshards,
}

func init() {
	shardingTensorsCmd.Flags().StringVar(&shardingStrategyFilter, "strategy", "", "filter by sharding strategy")
	shardingTensorsCmd.Flags().StringVar(&shardingBufferFilter, "buffer", "", "filter by memory class (L1, DRAM)")
	shardingTensorsCmd.Flags().IntVar(&shardingLimit, "limit", 0, "maximum rows to show (0 = config default)")
	shardingCmd.AddCommand(shardingTensorsCmd)
	shardingCmd.AddCommand(shardingReshardsCmd)
}

func newShardingAnalyzer(db *profdb.DB) (*analysis.ShardingAnalyzer, error) {
	tensors, err := db.GetTensors()
	if err != nil {
		return nil, err
	}
	return analysis.NewShardingAnalyzerWithThresholds(tensors, cfg.ShardingThresholds()), nil
}

func reshardResults(db *profdb.DB) ([]analysis.OperationSharding, error) {
	flow, err := db.GetOperationTensorFlow()
	if err != nil {
		return nil, err
	}
	ops := make([]analysis.OperationTensors, 0, len(flow))
	for _, row := range flow {
		ops = append(ops, analysis.OperationTensors{
			OperationID:   row.OperationID,
			OperationName: row.OperationName,
			Inputs:        row.Inputs,
			Outputs:       row.Outputs,
		})
	}
	return analysis.DetectReshards(ops), nil
}

func runShardingSummary(cmd *cobra.Command, args []string) error {
	db, err := openSnapshot()
	if err != nil {
		return err
	}
	defer db.Close()

	a, err := newShardingAnalyzer(db)
	if err != nil {
		return err
	}
	reshards, err := reshardResults(db)
	if err != nil {
		return err
	}
	reshardCount := 0
	for _, r := range reshards {
		if r.HasReshard {
			reshardCount++
		}
	}
	summary := a.GetSummary(reshardCount)

	if outputFormat == render.FormatJSON {
		return render.JSON(os.Stdout, summary.ToMap())
	}

	dist := a.GetDistribution()
	rows := make([]map[string]any, 0, len(dist))
	for i := range dist {
		rows = append(rows, dist[i].ToMap())
	}
	columns := []string{"strategy", "count", "percent", "l1_count", "dram_count"}
	if err := render.Maps(os.Stdout, outputFormat, "Sharding Distribution", columns, rows); err != nil {
		return err
	}
	if outputFormat == render.FormatCSV {
		return nil
	}
	return render.Recommendations(os.Stdout, "Recommendations", summary.Recommendations)
}

func runShardingTensors(cmd *cobra.Command, args []string) error {
	db, err := openSnapshot()
	if err != nil {
		return err
	}
	defer db.Close()

	a, err := newShardingAnalyzer(db)
	if err != nil {
		return err
	}

	limit := shardingLimit
	if limit == 0 {
		limit = cfg.Display.TensorLimit
	}
	infos := a.AllTensorShardings(shardingStrategyFilter, shardingBufferFilter, limit)
	rows := make([]map[string]any, 0, len(infos))
	for i := range infos {
		rows = append(rows, infos[i].ToMap())
	}
	columns := []string{"tensor_id", "shape", "dtype", "sharding_strategy", "buffer_type"}
	return render.Maps(os.Stdout, outputFormat, "Tensor Sharding", columns, rows)
}

func runShardingReshards(cmd *cobra.Command, args []string) error {
	db, err := openSnapshot()
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := reshardResults(db)
	if err != nil {
		return err
	}

	rows := make([]map[string]any, 0, len(results))
	for i := range results {
		if !results[i].HasReshard && outputFormat != render.FormatJSON {
			continue
		}
		rows = append(rows, results[i].ToMap())
	}
	columns := []string{"operation_id", "operation_name", "reshard_detail"}
	return render.Maps(os.Stdout, outputFormat, "Reshards", columns, rows)
}
