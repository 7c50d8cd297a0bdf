// Package config loads runtime configuration from defaults, an optional
// YAML file, and environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultProvider           = "anthropic"
	DefaultModel              = "claude-sonnet-4-5"
	DefaultTemperature        = 0.7
	DefaultMaxTokens          = 4096
	DefaultMaxIterations      = 15
	DefaultRefinementRounds   = 2
	DefaultToolTimeoutSeconds = 120
	DefaultPythonPath         = "python3"
)

// Config holds everything the CLI and the loop need to run.
type Config struct {
	Provider           string   `yaml:"provider" env:"COSCIENTIST_PROVIDER"`
	Model              string   `yaml:"model" env:"COSCIENTIST_MODEL"`
	Temperature        float64  `yaml:"temperature" env:"COSCIENTIST_TEMPERATURE"`
	MaxTokens          int      `yaml:"max_tokens" env:"COSCIENTIST_MAX_TOKENS"`
	MaxIterations      int      `yaml:"max_iterations" env:"COSCIENTIST_MAX_ITERATIONS"`
	RefinementRounds   int      `yaml:"refinement_rounds" env:"COSCIENTIST_REFINEMENT_ROUNDS"`
	DataDir            string   `yaml:"data_dir" env:"COSCIENTIST_DATA_DIR"`
	PythonPath         string   `yaml:"python_path" env:"COSCIENTIST_PYTHON_PATH"`
	WorkingDir         string   `yaml:"working_dir" env:"COSCIENTIST_WORKING_DIR"`
	ToolTimeoutSeconds int      `yaml:"tool_timeout_seconds" env:"COSCIENTIST_TOOL_TIMEOUT_SECONDS"`
	CritiqueKeywords   []string `yaml:"critique_keywords" env:"COSCIENTIST_CRITIQUE_KEYWORDS" envSeparator:","`
	EntrezAPIKey       string   `yaml:"entrez_api_key" env:"NCBI_API_KEY"`
	Verbose            bool     `yaml:"verbose" env:"COSCIENTIST_VERBOSE"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Provider:           DefaultProvider,
		Model:              DefaultModel,
		Temperature:        DefaultTemperature,
		MaxTokens:          DefaultMaxTokens,
		MaxIterations:      DefaultMaxIterations,
		RefinementRounds:   DefaultRefinementRounds,
		PythonPath:         DefaultPythonPath,
		ToolTimeoutSeconds: DefaultToolTimeoutSeconds,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), and environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the loop cannot run with.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.RefinementRounds < 0 {
		return fmt.Errorf("refinement_rounds must not be negative, got %d", c.RefinementRounds)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %g", c.Temperature)
	}
	if c.ToolTimeoutSeconds < 0 {
		return fmt.Errorf("tool_timeout_seconds must not be negative, got %d", c.ToolTimeoutSeconds)
	}
	return nil
}

// ToolTimeout returns the per-tool timeout as a duration.
func (c Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}
