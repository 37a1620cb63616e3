// Package pfsolver implements C3 (the iterative-current PF solver) and C4
// (the PF solver skeleton that drives it), grounded on the teacher's
// pkg/analysis iteration style (doNRiter / CheckConvergence in
// pkg/analysis/{op,dc,anlysis}.go) generalized from a Newton-Raphson MNA
// sweep to the fixed-point current-injection loop spec.md §4.3 describes.
package pfsolver

import (
	"github.com/gridflow-go/gridflow/pkg/pgmmath"
)

// LoadGenType selects how a load's nominal apparent power enters the
// current-injection equation (spec.md §3, §4.3 step 3).
type LoadGenType int

const (
	ConstPQ LoadGenType = iota
	ConstY
	ConstI
)

// Source is a voltage source behind a fixed admittance attached to one bus.
type Source struct {
	Bus int
	// URef is the reference voltage, per phase, magnitude and angle already combined.
	URef pgmmath.PhaseValue
	// Y is the source admittance, per phase, added to the Y-bus diagonal by
	// InitializeDerivedSolver (never part of the bare Y-bus from pkg/ybus).
	Y pgmmath.PhaseValue
}

// Topology is the fixed-per-calculation structure shared between the
// skeleton and the solver: which buses have which load indices attached.
// Lifetime >= the solver instance holding it (spec.md §3, §5).
type Topology struct {
	NBus           int
	Sym            pgmmath.Symmetry
	LoadGensPerBus [][]int // per bus, the load indices attached
}

// Input is the per-scenario power-flow input (spec.md §3).
type Input struct {
	SInjection  []pgmmath.PhaseValue // per load, signed apparent power
	LoadGenType []LoadGenType        // per load
	Sources     []Source
}

// Output is what a converged (or diverged) solve produces.
type Output struct {
	U            []pgmmath.PhaseValue // per-bus voltage
	Iterations   int
	MaxDeviation float64
}

// Method enumerates calculation_method values recognized by the public API
// (spec.md §6). Only IterativeCurrent is implemented by this core; the
// others are recognized enum values a caller may select, but no solver for
// them exists here and pkg/model runs IterativeCurrentSolver for every value.
type Method int

const (
	Linear Method = iota
	LinearCurrent
	IterativeCurrent
	IterativeLinear
	NewtonRaphson
)

// Options configures convergence behavior (spec.md §6).
type Options struct {
	Tolerance float64
	MaxIter   int
	// Abort is polled between iterations; if it returns true the solver
	// returns IterationDiverge without further work (spec.md §5 cancellation).
	Abort func() bool
}

// DefaultOptions matches spec.md §4.3's default tolerance (1e-8) and
// iteration cap (20).
func DefaultOptions() Options {
	return Options{Tolerance: 1e-8, MaxIter: 20}
}

