// Package config loads orchestrator configuration from features.yaml with
// environment overrides, and hot-reloads it on file change. Loop bounds and
// profiler thresholds are configurable constants; the three-bounded-loop
// shape of the pipeline is not configurable.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// LoopsConfig carries the three independent loop budgets.
type LoopsConfig struct {
	MaxAlignmentIterations int `mapstructure:"max_alignment_iterations"`
	MaxCodeAttempts        int `mapstructure:"max_code_attempts"`
	MaxTotalRemediations   int `mapstructure:"max_total_remediations"`
}

// ProfilerConfig carries the two-tier profiling knobs.
type ProfilerConfig struct {
	CompactThreshold int `mapstructure:"compact_threshold"`
	MaxDetailed      int `mapstructure:"max_detailed"`
	TopK             int `mapstructure:"top_k"`
	MaxSamples       int `mapstructure:"max_samples"`
}

// OracleConfig points at the reasoning service.
type OracleConfig struct {
	URL               string  `mapstructure:"url"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// SandboxConfig points at the code-execution service.
type SandboxConfig struct {
	URL           string `mapstructure:"url"`
	BudgetSeconds int    `mapstructure:"budget_seconds"`
}

// ObservabilityConfig mirrors the admin surface knobs.
type ObservabilityConfig struct {
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
}

// Config is the full orchestrator configuration.
type Config struct {
	Loops         LoopsConfig         `mapstructure:"loops"`
	Profiler      ProfilerConfig      `mapstructure:"profiler"`
	Oracle        OracleConfig        `mapstructure:"oracle"`
	Sandbox       SandboxConfig       `mapstructure:"sandbox"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// Default returns the design constants from the source system.
func Default() *Config {
	cfg := &Config{
		Loops: LoopsConfig{
			MaxAlignmentIterations: 2,
			MaxCodeAttempts:        2,
			MaxTotalRemediations:   3,
		},
		Profiler: ProfilerConfig{
			CompactThreshold: 30,
			MaxDetailed:      40,
			TopK:             3,
			MaxSamples:       5,
		},
		Oracle: OracleConfig{
			URL:               "http://oracle-service:8000",
			TimeoutSeconds:    60,
			RequestsPerSecond: 0,
		},
		Sandbox: SandboxConfig{
			URL:           "http://sandbox-service:8700",
			BudgetSeconds: 60,
		},
	}
	cfg.Observability.Logging.Level = "info"
	cfg.Observability.Metrics.Enabled = true
	cfg.Observability.Metrics.Port = 2112
	return cfg
}

// Load reads features.yaml from CONFIG_PATH (default ./config/features.yaml).
// A missing file yields defaults; a malformed file is an error. Environment
// variables ORACLE_SERVICE_URL and SANDBOX_SERVICE_URL override the file.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/features.yaml"
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
		// No file: defaults plus env overrides.
		applyEnv(cfg)
		return cfg, cfg.Validate()
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyEnv(cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	if u := os.Getenv("ORACLE_SERVICE_URL"); u != "" {
		cfg.Oracle.URL = u
	}
	if u := os.Getenv("SANDBOX_SERVICE_URL"); u != "" {
		cfg.Sandbox.URL = u
	}
}

// Validate rejects budgets that would break the loop shape.
func (c *Config) Validate() error {
	if c.Loops.MaxAlignmentIterations < 1 {
		return fmt.Errorf("loops.max_alignment_iterations must be >= 1")
	}
	if c.Loops.MaxCodeAttempts < 1 {
		return fmt.Errorf("loops.max_code_attempts must be >= 1")
	}
	if c.Loops.MaxTotalRemediations < 1 {
		return fmt.Errorf("loops.max_total_remediations must be >= 1")
	}
	if c.Profiler.CompactThreshold < 1 || c.Profiler.MaxDetailed < 1 {
		return fmt.Errorf("profiler thresholds must be >= 1")
	}
	if c.Sandbox.BudgetSeconds < 1 {
		return fmt.Errorf("sandbox.budget_seconds must be >= 1")
	}
	return nil
}
