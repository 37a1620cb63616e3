package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridflow-go/gridflow/internal/config"
	"github.com/gridflow-go/gridflow/pkg/pfsolver"
	"github.com/gridflow-go/gridflow/pkg/tapopt"
)

func TestLoad_MissingFile_ReturnsDefault(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "iterative_current", cfg.Calculation.Method)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
calculation:
  method: iterative_current
  error_tolerance: 1e-6
  max_iterations: 50
tap_changing:
  strategy: global_minimum
`), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1e-6, cfg.Calculation.ErrorTolerance)
	assert.Equal(t, 50, cfg.Calculation.MaxIterations)

	strategy, err := cfg.Strategy()
	require.NoError(t, err)
	assert.Equal(t, tapopt.GlobalMinimum, strategy)
}

func TestValidate_RejectsUnknownMethod(t *testing.T) {
	cfg := config.Default()
	cfg.Calculation.Method = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestMethod_ResolvesAllEnumValues(t *testing.T) {
	cfg := config.Default()
	for name, want := range map[string]pfsolver.Method{
		"linear":             pfsolver.Linear,
		"linear_current":     pfsolver.LinearCurrent,
		"iterative_current":  pfsolver.IterativeCurrent,
		"iterative_linear":   pfsolver.IterativeLinear,
		"newton_raphson":     pfsolver.NewtonRaphson,
	} {
		cfg.Calculation.Method = name
		got, err := cfg.Method()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
