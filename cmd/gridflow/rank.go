package main

import (
	"fmt"
	"math"
	"math/cmplx"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridflow-go/gridflow/pkg/dataset"
	"github.com/gridflow-go/gridflow/pkg/model"
	"github.com/gridflow-go/gridflow/pkg/tapopt"
	"github.com/gridflow-go/gridflow/pkg/util"
)

// rankCmd runs the C6 tap-position optimizer over the dataset's regulated
// transformers, reporting the optimal result without committing tap changes
// (Optimize always restores live state; see pkg/tapopt).
var rankCmd = &cobra.Command{
	Use:   "rank",
	Args:  cobra.NoArgs,
	Short: "Optimize regulated transformers' tap positions and report the resulting bus voltages",
	RunE:  runRank,
}

func init() {
	rankCmd.Flags().String("input", "", "path to the input dataset JSON file")
	rankCmd.Flags().String("strategy", "", "tap-changing strategy override (any, local_minimum, local_maximum, global_minimum, global_maximum)")
}

func runRank(cmd *cobra.Command, args []string) error {
	inputPath, _ := cmd.Flags().GetString("input")
	if inputPath == "" {
		return fmt.Errorf("--input flag is required")
	}
	strategyOverride, _ := cmd.Flags().GetString("strategy")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if strategyOverride != "" {
		cfg.TapChanging.Strategy = strategyOverride
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

	method, err := cfg.Method()
	if err != nil {
		return err
	}
	strategy, err := cfg.Strategy()
	if err != nil {
		return err
	}

	logger.Info("optimizing tap positions")
	output, err := m.OptimizeTaps(
		model.Options{Method: method, Tolerance: cfg.Calculation.ErrorTolerance, MaxIter: cfg.Calculation.MaxIterations},
		tapopt.Options{
			Strategy:        strategy,
			MaxDiscreteIter: cfg.TapChanging.MaxDiscreteIter,
			OnDiscreteLoopExhausted: func(iterations int) {
				logger.Warn(fmt.Sprintf("tap-changing loop exhausted after %d iterations without settling", iterations))
			},
		},
	)
	if err != nil {
		return fmt.Errorf("optimize tap positions: %w", err)
	}

	for i, u := range output.U {
		mag, angleRad := cmplx.Polar(u[0])
		fmt.Printf("bus %d: %s\n", i, util.FormatMagnitudePhase("u", mag, angleRad*180/math.Pi))
	}
	return nil
}
