package main

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridflow-go/gridflow/pkg/dataset"
	"github.com/gridflow-go/gridflow/pkg/model"
	"github.com/gridflow-go/gridflow/pkg/util"
)

// batchCmd runs one base model through a batch of update scenarios,
// sequentially (batch threading is out of this core's scope; see
// SPEC_FULL.md). Each scenario is applied through UpdateComponent and
// calculated in turn, reusing the base Model instead of re-decoding it.
var batchCmd = &cobra.Command{
	Use:   "batch",
	Args:  cobra.NoArgs,
	Short: "Run a batch of update scenarios against one base model",
	RunE:  runBatch,
}

func init() {
	batchCmd.Flags().String("input", "", "path to the base input dataset JSON file")
	batchCmd.Flags().String("updates", "", "path to the batch update dataset JSON file")
}

func runBatch(cmd *cobra.Command, args []string) error {
	inputPath, _ := cmd.Flags().GetString("input")
	updatesPath, _ := cmd.Flags().GetString("updates")
	if inputPath == "" || updatesPath == "" {
		return fmt.Errorf("--input and --updates flags are required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

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

	updatesRaw, err := os.ReadFile(updatesPath)
	if err != nil {
		return fmt.Errorf("read updates dataset: %w", err)
	}
	updates, err := dataset.DecodeJSON(updatesRaw, dataset.StandardRegistry())
	if err != nil {
		return fmt.Errorf("decode updates dataset: %w", err)
	}

	method, err := cfg.Method()
	if err != nil {
		return err
	}
	calcOptions := model.Options{
		Method:    method,
		Tolerance: cfg.Calculation.ErrorTolerance,
		MaxIter:   cfg.Calculation.MaxIterations,
	}

	for i, scenario := range updates.Scenarios {
		scenarioLog := logger.With("scenario", i)

		scenarioUpdate := &dataset.Dataset{Scenarios: []dataset.Scenario{scenario}}
		if !m.IsUpdateIndependent(scenarioUpdate) {
			scenarioLog.Info("update touches topology, re-factorizing")
		}
		if err := m.UpdateComponent(scenarioUpdate); err != nil {
			return fmt.Errorf("scenario %d: apply update: %w", i, err)
		}

		result, err := m.Calculate(calcOptions)
		if err != nil {
			return fmt.Errorf("scenario %d: calculate: %w", i, err)
		}

		node, ok := result.Buffer("node")
		if !ok {
			continue
		}
		fmt.Printf("-- scenario %d --\n", i)
		for _, n := range node.Elements {
			mag, _ := n["u"].(float64)
			angleRad, _ := n["u_angle"].(float64)
			fmt.Printf("node %v: %s\n", n["id"], util.FormatMagnitudePhase("u", mag, angleRad*180/math.Pi))
		}
	}

	return nil
}
