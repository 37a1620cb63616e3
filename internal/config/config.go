// Package config loads the YAML-based run configuration (calculation
// method, convergence limits, tap-regulation strategy, logging) the CLI
// passes down to pkg/model and pkg/tapopt, grounded on the corpus's
// Config/DefaultConfig/Load/Validate shape.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gridflow-go/gridflow/internal/telemetry"
	"github.com/gridflow-go/gridflow/pkg/pfsolver"
	"github.com/gridflow-go/gridflow/pkg/tapopt"
)

// Config is the top-level run configuration (spec.md §6's Options plus the
// ambient concerns a CLI invocation needs).
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Calculation CalculationConfig `yaml:"calculation"`
	TapChanging TapChangingConfig `yaml:"tap_changing"`
}

// LoggingConfig controls internal/telemetry's logger construction.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CalculationConfig mirrors pkg/model.Options.
type CalculationConfig struct {
	Method         string  `yaml:"method"`
	ErrorTolerance float64 `yaml:"error_tolerance"`
	MaxIterations  int     `yaml:"max_iterations"`
	SystemFreqHz   float64 `yaml:"system_frequency_hz"`
}

// TapChangingConfig mirrors pkg/tapopt.Options.
type TapChangingConfig struct {
	Strategy        string `yaml:"strategy"`
	MaxDiscreteIter int    `yaml:"max_discrete_iterations"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Calculation: CalculationConfig{
			Method:         "iterative_current",
			ErrorTolerance: 1e-8,
			MaxIterations:  20,
			SystemFreqHz:   50.0,
		},
		TapChanging: TapChangingConfig{
			Strategy:        "any",
			MaxDiscreteIter: 0, // 0 means pkg/tapopt derives its own bound
		},
	}
}

// Load reads and parses a YAML config file, falling back to Default if path
// is empty or the file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Validate rejects a configuration the rest of the program cannot act on.
func (c *Config) Validate() error {
	if c.Calculation.ErrorTolerance <= 0 {
		return fmt.Errorf("calculation.error_tolerance must be positive")
	}
	if c.Calculation.MaxIterations < 1 {
		return fmt.Errorf("calculation.max_iterations must be at least 1")
	}
	if _, err := c.Method(); err != nil {
		return err
	}
	if _, err := c.Strategy(); err != nil {
		return err
	}
	return nil
}

// Method resolves the configured calculation method name to a pfsolver.Method.
func (c *Config) Method() (pfsolver.Method, error) {
	switch c.Calculation.Method {
	case "linear":
		return pfsolver.Linear, nil
	case "linear_current":
		return pfsolver.LinearCurrent, nil
	case "iterative_current":
		return pfsolver.IterativeCurrent, nil
	case "iterative_linear":
		return pfsolver.IterativeLinear, nil
	case "newton_raphson":
		return pfsolver.NewtonRaphson, nil
	default:
		return 0, fmt.Errorf("unknown calculation.method %q", c.Calculation.Method)
	}
}

// Strategy resolves the configured tap-changing strategy name.
func (c *Config) Strategy() (tapopt.Strategy, error) {
	switch c.TapChanging.Strategy {
	case "any":
		return tapopt.Any, nil
	case "local_minimum":
		return tapopt.LocalMinimum, nil
	case "local_maximum":
		return tapopt.LocalMaximum, nil
	case "global_minimum":
		return tapopt.GlobalMinimum, nil
	case "global_maximum":
		return tapopt.GlobalMaximum, nil
	default:
		return 0, fmt.Errorf("unknown tap_changing.strategy %q", c.TapChanging.Strategy)
	}
}

// LoggerConfig adapts LoggingConfig to internal/telemetry.Config.
func (c *Config) LoggerConfig() telemetry.Config {
	format := telemetry.FormatJSON
	if c.Logging.Format == "console" {
		format = telemetry.FormatConsole
	}
	return telemetry.Config{Level: telemetry.Level(c.Logging.Level), Format: format}
}
