package main

import (
	"os"

	"github.com/spf13/cobra"

	"ttnvis/internal/analysis"
	"ttnvis/internal/render"
)

// dtypeCmd audits tensor data formats and math fidelity.
var dtypeCmd = &cobra.Command{
	Use:   "dtype",
	Short: "Audit tensor dtypes, layouts, and math fidelity",
	RunE:  runDType,
}

func runDType(cmd *cobra.Command, args []string) error {
	db, err := openSnapshot()
	if err != nil {
		return err
	}
	defer db.Close()

	tensors, err := db.GetTensors()
	if err != nil {
		return err
	}
	formats := analysis.NewDataFormatAnalyzerWithThresholds(tensors, cfg.DataFormatThresholds())
	summary := formats.GetSummary()

	// Math fidelity lives in the performance report; skip that section
	// when no report is configured.
	var fidelity *analysis.MathFidelitySummary
	if cfg.Reports.PerfReport != "" {
		report, err := loadPerfReport()
		if err == nil {
			s := analysis.NewMathFidelityAnalyzerWithThresholds(
				report.Operations(), cfg.FidelityThresholds()).GetSummary()
			fidelity = &s
		}
	}

	if outputFormat == render.FormatJSON {
		result := map[string]any{"data_format": summary.ToMap()}
		if fidelity != nil {
			result["math_fidelity"] = fidelity.ToMap()
		}
		return render.JSON(os.Stdout, result)
	}

	dtypeRows := make([]map[string]any, 0, len(summary.DTypeDistribution))
	for i := range summary.DTypeDistribution {
		dtypeRows = append(dtypeRows, summary.DTypeDistribution[i].ToMap())
	}
	if err := render.Maps(os.Stdout, outputFormat, "DType Distribution",
		[]string{"dtype", "count", "percent"}, dtypeRows); err != nil {
		return err
	}

	layoutRows := make([]map[string]any, 0, len(summary.LayoutDistribution))
	for i := range summary.LayoutDistribution {
		layoutRows = append(layoutRows, summary.LayoutDistribution[i].ToMap())
	}
	if err := render.Maps(os.Stdout, outputFormat, "Layout Distribution",
		[]string{"layout", "count", "percent"}, layoutRows); err != nil {
		return err
	}

	if fidelity != nil {
		fidelityRows := make([]map[string]any, 0, len(fidelity.FidelityDistribution))
		for i := range fidelity.FidelityDistribution {
			fidelityRows = append(fidelityRows, fidelity.FidelityDistribution[i].ToMap())
		}
		if err := render.Maps(os.Stdout, outputFormat, "Math Fidelity",
			[]string{"fidelity", "count", "percent"}, fidelityRows); err != nil {
			return err
		}
	}

	if outputFormat == render.FormatCSV {
		return nil
	}
	recommendations := summary.Recommendations
	if fidelity != nil {
		recommendations = append(recommendations, fidelity.Recommendations...)
	}
	return render.Recommendations(os.Stdout, "Recommendations", recommendations)
}
