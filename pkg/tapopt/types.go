// Package tapopt implements C6: the tap-position optimizer, a
// discrete-continuous outer loop that wraps a steady-state calculator and
// adjusts tap positions of voltage regulators until every set-point is
// satisfied or the discrete search gives up. It drives its calculator and
// state through narrow interfaces rather than a concrete PF type, the same
// way the teacher's pkg/analysis.Analysis drives a concrete circuit matrix
// through Setup/Execute without knowing which analysis mode called it --
// generalized here because the calculator this wraps (PF, SE, or SC) is an
// external collaborator this core does not implement in full (spec.md §2).
package tapopt

import "github.com/gridflow-go/gridflow/pkg/pfsolver"

// RegulatorRef identifies one tap-changing voltage regulator by the
// component group and position the caller's dataset assigns it.
type RegulatorRef struct {
	Group int
	Index int
}

// Strategy selects the tap-changing search strategy (spec.md §4.6, §6).
type Strategy int

const (
	Any Strategy = iota
	LocalMinimum
	LocalMaximum
	GlobalMinimum
	GlobalMaximum
)

// isPreSeeded reports whether initialize forces every regulated tap to an
// extreme before the inner loop runs (every strategy but Any).
func (s Strategy) isPreSeeded() bool { return s != Any }

// seedsToMax reports whether pre-seeding drives tap_pos to tap_max rather
// than tap_min.
func (s Strategy) seedsToMax() bool { return s == LocalMaximum || s == GlobalMaximum }

// Descriptor is the static, calculation-independent description of one
// regulator: its controlled transformer's bounds and direction, and its
// own set-point, band and compensation impedance (spec.md §3).
type Descriptor struct {
	TapMin       int
	TapMax       int
	TapDirection int // +1 if increasing tap_pos lowers the controlled voltage, -1 otherwise
	USet         float64
	UBand        float64
	ZComp        complex128
}

// Measurement is what control_transformer reads out of a calculation
// result for one regulator: connectivity and the raw control-side
// voltage/current needed to project the regulated voltage (spec.md §4.6).
type Measurement struct {
	TapSideConnected     bool
	ControlSideConnected bool
	UControlSide         complex128
	IControlSideBranch   complex128
}

// Result is an opaque calculation result, produced by Calculator and
// consumed only through StateAccessor.Measure -- tapopt never interprets
// it directly, matching the calculator itself being out of this core's
// scope.
type Result interface{}

// Calculator runs one steady-state calculation at the given method,
// matching the optimizer's calculate_(state, method) collaborator
// (spec.md §4.6).
type Calculator interface {
	Calculate(method pfsolver.Method) (Result, error)
}

// StateAccessor is the external state this optimizer reads descriptors and
// tap positions from, reads post-calculation measurements through, and
// commits batched tap changes to (spec.md §4.6 "committed through the
// external state updater in one batch").
type StateAccessor interface {
	Descriptor(ref RegulatorRef) Descriptor
	TapPos(ref RegulatorRef) int
	Measure(result Result, ref RegulatorRef) Measurement
	ApplyTapPositions(updates map[RegulatorRef]int) error
}

// Options configures one Optimize call.
type Options struct {
	Strategy Strategy
	// MaxDiscreteIter caps the inner control loop; zero selects the
	// spec's default (sum of (tap_max-tap_min+1) over every regulator).
	MaxDiscreteIter int
	// OnDiscreteLoopExhausted is called, if non-nil, when the inner loop
	// hits MaxDiscreteIter without settling (spec.md §4.6 "a diagnostic is
	// emitted"), instead of this package depending directly on a logger.
	OnDiscreteLoopExhausted func(iterations int)
}
