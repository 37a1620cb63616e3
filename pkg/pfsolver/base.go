package pfsolver

import (
	"github.com/gridflow-go/gridflow/internal/pgmerr"
	"github.com/gridflow-go/gridflow/pkg/pgmmath"
	"github.com/gridflow-go/gridflow/pkg/ybus"
)

// derivedSolver is what a concrete PF variant (only IterativeCurrentSolver in
// this core) provides to BaseSolver. This mirrors the teacher's analysis
// interface (pkg/analysis.Analysis) generalized from Setup/Execute to the
// four-step loop spec.md §4.4 names.
type derivedSolver interface {
	InitializeDerivedSolver(y *ybus.Matrix, input *Input) error
	PrepareMatrixAndRHS(y *ybus.Matrix, input *Input, u []pgmmath.PhaseValue) error
	SolveMatrix() error
	IterateUnknown(u []pgmmath.PhaseValue) float64
}

// BaseSolver implements C4: the outer solve(input, output) loop shared by
// every PF variant, driving a derivedSolver through initialize / prepare /
// solve / iterate until convergence or divergence.
type BaseSolver struct {
	Topology *Topology
	YBus     *ybus.Matrix
	Options  Options
}

// NewBaseSolver builds the skeleton over a fixed topology and Y-bus.
func NewBaseSolver(topo *Topology, y *ybus.Matrix, opts Options) *BaseSolver {
	if opts.MaxIter == 0 {
		opts = DefaultOptions()
	}
	return &BaseSolver{Topology: topo, YBus: y, Options: opts}
}

// Run drives derived through the iteration loop described in spec.md §4.4:
// initialize once, then repeatedly prepare/solve/iterate until the maximum
// per-bus deviation falls at or below tolerance, or the iteration cap is
// exceeded (IterationDiverge), or Abort is observed between iterations.
func (b *BaseSolver) Run(derived derivedSolver, input *Input) (*Output, error) {
	if err := derived.InitializeDerivedSolver(b.YBus, input); err != nil {
		return nil, err
	}

	u := InitialVoltage(b.Topology, input)

	var maxDev float64
	iter := 0
	for ; iter < b.Options.MaxIter; iter++ {
		if b.Options.Abort != nil && b.Options.Abort() {
			return nil, pgmerr.NewIterationDiverge(maxDev, iter)
		}

		if err := derived.PrepareMatrixAndRHS(b.YBus, input, u); err != nil {
			return nil, err
		}
		if err := derived.SolveMatrix(); err != nil {
			return nil, err
		}
		maxDev = derived.IterateUnknown(u)

		if maxDev <= b.Options.Tolerance {
			return &Output{U: u, Iterations: iter + 1, MaxDeviation: maxDev}, nil
		}
	}

	return nil, pgmerr.NewIterationDiverge(maxDev, iter)
}

// InitialVoltage seeds U as the per-bus weighted average of incident
// sources' u_ref (phase shifts already folded into URef), else 1<0 per
// phase (spec.md §4.3 "Initial voltage").
func InitialVoltage(topo *Topology, input *Input) []pgmmath.PhaseValue {
	u := make([]pgmmath.PhaseValue, topo.NBus)
	weight := make([]int, topo.NBus)

	for i := range u {
		u[i] = pgmmath.NewPhaseValue(topo.Sym)
	}

	for _, src := range input.Sources {
		pgmmath.AddInPlace(u[src.Bus], src.URef)
		weight[src.Bus]++
	}

	for bus := 0; bus < topo.NBus; bus++ {
		if weight[bus] > 0 {
			scale := complex(1/float64(weight[bus]), 0)
			for p := range u[bus] {
				u[bus][p] *= scale
			}
			continue
		}
		u[bus] = pgmmath.FromPolar(topo.Sym, 1.0, 0.0)
	}

	return u
}
