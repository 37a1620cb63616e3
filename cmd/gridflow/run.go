package main

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridflow-go/gridflow/internal/config"
	"github.com/gridflow-go/gridflow/internal/telemetry"
	"github.com/gridflow-go/gridflow/pkg/dataset"
	"github.com/gridflow-go/gridflow/pkg/model"
	"github.com/gridflow-go/gridflow/pkg/util"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Run one power-flow calculation against an input dataset",
	RunE:  runCalculate,
}

func init() {
	runCmd.Flags().String("input", "", "path to the input dataset JSON file")
	runCmd.Flags().String("output", "", "path to write the output dataset (default: stdout)")
}

func runCalculate(cmd *cobra.Command, args []string) error {
	inputPath, _ := cmd.Flags().GetString("input")
	if inputPath == "" {
		return fmt.Errorf("--input flag is required")
	}
	outputPath, _ := cmd.Flags().GetString("output")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	logger.Info("loading input dataset")
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input dataset: %w", err)
	}

	ds, err := dataset.DecodeJSON(raw, dataset.StandardRegistry())
	if err != nil {
		return fmt.Errorf("decode input dataset: %w", err)
	}

	m, err := model.New(cfg.Calculation.SystemFreqHz, ds)
	if err != nil {
		return fmt.Errorf("build model: %w", err)
	}

	method, err := cfg.Method()
	if err != nil {
		return err
	}

	logger.Info("running power flow")
	result, err := m.Calculate(model.Options{
		Method:    method,
		Tolerance: cfg.Calculation.ErrorTolerance,
		MaxIter:   cfg.Calculation.MaxIterations,
	})
	if err != nil {
		return fmt.Errorf("calculate: %w", err)
	}

	node, ok := result.Buffer("node")
	if !ok {
		return fmt.Errorf("output dataset has no node component")
	}

	return writeNodeReport(outputPath, node)
}

func writeNodeReport(outputPath string, node *dataset.ComponentBuffer) error {
	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	for _, n := range node.Elements {
		mag, _ := n["u"].(float64)
		angleRad, _ := n["u_angle"].(float64)
		fmt.Fprintf(out, "node %v: %s\n", n["id"], util.FormatMagnitudePhase("u", mag, angleRad*180/math.Pi))
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the run's logger, bumped to debug under --verbose.
func newLogger(cfg *config.Config) *telemetry.Logger {
	loggerCfg := cfg.LoggerConfig()
	if verbose {
		loggerCfg.Level = telemetry.LevelDebug
	}
	return telemetry.New(loggerCfg)
}
