// Package config loads ttnvis configuration from YAML with
// environment-variable overrides for the report paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ttnvis/internal/analysis"
)

// Config holds all ttnvis configuration.
type Config struct {
	// Report locations
	Reports ReportsConfig `yaml:"reports"`

	// Display limits for tables and top-N lists
	Display DisplayConfig `yaml:"display"`

	// Analyzer thresholds
	Thresholds ThresholdsConfig `yaml:"thresholds"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// TUI behavior
	TUI TUIConfig `yaml:"tui"`
}

// ReportsConfig points at the profiling artifacts.
type ReportsConfig struct {
	// ProfilerDB is the SQLite snapshot path.
	ProfilerDB string `yaml:"profiler_db"`
	// PerfReport is the ops_perf_results CSV file or a directory to
	// search for one.
	PerfReport string `yaml:"perf_report"`
}

// DisplayConfig caps list output.
type DisplayConfig struct {
	OperationLimit  int `yaml:"operation_limit"`
	TensorLimit     int `yaml:"tensor_limit"`
	TopOpLimit      int `yaml:"top_op_limit"`
	BottleneckLimit int `yaml:"bottleneck_limit"`
}

// ThresholdsConfig tunes the analyzers.
type ThresholdsConfig struct {
	Bottleneck BottleneckThresholdsConfig `yaml:"bottleneck"`
	Sharding   ShardingThresholdsConfig   `yaml:"sharding"`
	Host       HostThresholdsConfig       `yaml:"host"`
	MultiCQ    MultiCQThresholdsConfig    `yaml:"multi_cq"`
	DataFormat DataFormatThresholdsConfig `yaml:"data_format"`
	Fidelity   FidelityThresholdsConfig   `yaml:"fidelity"`
}

// BottleneckThresholdsConfig tunes the bottleneck passes.
type BottleneckThresholdsConfig struct {
	EfficiencyPercent float64 `yaml:"efficiency_percent"`
	GapMs             float64 `yaml:"gap_ms"`
	DRAMUtilPercent   float64 `yaml:"dram_util_percent"`
}

// ShardingThresholdsConfig tunes the sharding recommendations.
type ShardingThresholdsConfig struct {
	InterleavedWarningPercent float64 `yaml:"interleaved_warning_percent"`
	ReshardWarning            int     `yaml:"reshard_warning"`
}

// HostThresholdsConfig tunes the host-overhead recommendations.
type HostThresholdsConfig struct {
	HostBoundPercent  float64 `yaml:"host_bound_percent"`
	MetalTracePercent float64 `yaml:"metal_trace_percent"`
}

// MultiCQThresholdsConfig tunes the command-queue recommendations.
type MultiCQThresholdsConfig struct {
	IOBoundPercent float64 `yaml:"io_bound_percent"`
	MultiCQPercent float64 `yaml:"multi_cq_percent"`
}

// DataFormatThresholdsConfig tunes the data-format recommendations.
type DataFormatThresholdsConfig struct {
	BFloat8BLowPercent float64 `yaml:"bfloat8_b_low_percent"`
	TileLowPercent     float64 `yaml:"tile_low_percent"`
}

// FidelityThresholdsConfig tunes the math-fidelity recommendations.
type FidelityThresholdsConfig struct {
	LoFiRecommendedPercent float64 `yaml:"lofi_recommended_percent"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

// TUIConfig configures the interactive viewer.
type TUIConfig struct {
	// WatchReports reloads the data when the artifact files change.
	WatchReports bool `yaml:"watch_reports"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	bottleneck := analysis.DefaultBottleneckThresholds()
	sharding := analysis.DefaultShardingThresholds()
	host := analysis.DefaultHostOverheadThresholds()
	multiCQ := analysis.DefaultMultiCQThresholds()
	dataFormat := analysis.DefaultDataFormatThresholds()
	fidelity := analysis.DefaultFidelityThresholds()

	return &Config{
		Display: DisplayConfig{
			OperationLimit:  50,
			TensorLimit:     50,
			TopOpLimit:      20,
			BottleneckLimit: bottleneck.DisplayLimit,
		},
		Thresholds: ThresholdsConfig{
			Bottleneck: BottleneckThresholdsConfig{
				EfficiencyPercent: bottleneck.EfficiencyPercent,
				GapMs:             bottleneck.GapMs,
				DRAMUtilPercent:   bottleneck.DRAMUtilPercent,
			},
			Sharding: ShardingThresholdsConfig{
				InterleavedWarningPercent: sharding.InterleavedWarningPercent,
				ReshardWarning:            sharding.ReshardWarning,
			},
			Host: HostThresholdsConfig{
				HostBoundPercent:  host.HostBoundPercent,
				MetalTracePercent: host.MetalTracePercent,
			},
			MultiCQ: MultiCQThresholdsConfig{
				IOBoundPercent: multiCQ.IOBoundPercent,
				MultiCQPercent: multiCQ.MultiCQPercent,
			},
			DataFormat: DataFormatThresholdsConfig{
				BFloat8BLowPercent: dataFormat.BFloat8BLowPercent,
				TileLowPercent:     dataFormat.TileLowPercent,
			},
			Fidelity: FidelityThresholdsConfig{
				LoFiRecommendedPercent: fidelity.LoFiRecommendedPercent,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		TUI: TUIConfig{
			WatchReports: true,
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// DefaultPath is the config file location probed when --config is not
// given: ./ttnvis.yaml, then ~/.config/ttnvis/config.yaml.
func DefaultPath() string {
	if _, err := os.Stat("ttnvis.yaml"); err == nil {
		return "ttnvis.yaml"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "ttnvis.yaml"
	}
	return filepath.Join(home, ".config", "ttnvis", "config.yaml")
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TTNVIS_PROFILER_DB"); v != "" {
		c.Reports.ProfilerDB = v
	}
	if v := os.Getenv("TTNVIS_PERF_REPORT"); v != "" {
		c.Reports.PerfReport = v
	}
	if v := os.Getenv("TTNVIS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// BottleneckThresholds converts the config values into analyzer
// thresholds, taking the display cap from the Display section.
func (c *Config) BottleneckThresholds() analysis.BottleneckThresholds {
	return analysis.BottleneckThresholds{
		EfficiencyPercent: c.Thresholds.Bottleneck.EfficiencyPercent,
		GapMs:             c.Thresholds.Bottleneck.GapMs,
		DRAMUtilPercent:   c.Thresholds.Bottleneck.DRAMUtilPercent,
		DisplayLimit:      c.Display.BottleneckLimit,
	}
}

// ShardingThresholds converts the config values into analyzer
// thresholds.
func (c *Config) ShardingThresholds() analysis.ShardingThresholds {
	return analysis.ShardingThresholds{
		InterleavedWarningPercent: c.Thresholds.Sharding.InterleavedWarningPercent,
		ReshardWarning:            c.Thresholds.Sharding.ReshardWarning,
	}
}

// HostOverheadThresholds converts the config values into analyzer
// thresholds. Variance tuning keeps the analyzer defaults.
func (c *Config) HostOverheadThresholds() analysis.HostOverheadThresholds {
	th := analysis.DefaultHostOverheadThresholds()
	th.HostBoundPercent = c.Thresholds.Host.HostBoundPercent
	th.MetalTracePercent = c.Thresholds.Host.MetalTracePercent
	return th
}

// MultiCQThresholds converts the config values into analyzer
// thresholds. The dominance ratio keeps the analyzer default.
func (c *Config) MultiCQThresholds() analysis.MultiCQThresholds {
	th := analysis.DefaultMultiCQThresholds()
	th.IOBoundPercent = c.Thresholds.MultiCQ.IOBoundPercent
	th.MultiCQPercent = c.Thresholds.MultiCQ.MultiCQPercent
	return th
}

// DataFormatThresholds converts the config values into analyzer
// thresholds.
func (c *Config) DataFormatThresholds() analysis.DataFormatThresholds {
	return analysis.DataFormatThresholds{
		BFloat8BLowPercent: c.Thresholds.DataFormat.BFloat8BLowPercent,
		TileLowPercent:     c.Thresholds.DataFormat.TileLowPercent,
	}
}

// FidelityThresholds converts the config values into analyzer
// thresholds.
func (c *Config) FidelityThresholds() analysis.FidelityThresholds {
	return analysis.FidelityThresholds{
		LoFiRecommendedPercent: c.Thresholds.Fidelity.LoFiRecommendedPercent,
	}
}
