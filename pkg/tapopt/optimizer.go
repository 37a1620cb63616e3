package tapopt

import (
	"math/cmplx"

	"github.com/gridflow-go/gridflow/internal/pgmerr"
	"github.com/gridflow-go/gridflow/pkg/pfsolver"
)

// Optimizer drives one calculation method through the tap-changing outer
// loop over a fixed, pre-ranked regulator order (spec.md §4.6).
type Optimizer struct {
	calc    Calculator
	state   StateAccessor
	order   [][]RegulatorRef // ranked groups, nearest-to-source first
	options Options
}

// New builds an Optimizer over a ranked regulator order, typically produced
// by mapping pkg/trafograph's RankedTransformerGroups to the regulators
// bound to each ranked transformer.
func New(calc Calculator, state StateAccessor, order [][]RegulatorRef, opts Options) *Optimizer {
	return &Optimizer{calc: calc, state: state, order: order, options: opts}
}

// Optimize runs the full C6 algorithm: cache, pre-seed, converge, and (for
// every strategy but Any) step every tap one notch further toward the
// seeded extreme and converge again, restoring cached tap positions before
// returning (spec.md §4.6 steps 1-6).
func (o *Optimizer) Optimize(method pfsolver.Method) (Result, error) {
	cache := o.cacheState()

	if err := o.initialize(); err != nil {
		o.restore(cache)
		return nil, err
	}

	result, err := o.tryCalculationWithRegulation(method)
	if err != nil {
		o.restore(cache)
		return nil, err
	}

	if o.options.Strategy.isPreSeeded() {
		if err := o.stepAll(); err != nil {
			o.restore(cache)
			return nil, err
		}
		result, err = o.tryCalculationWithRegulation(method)
		if err != nil {
			o.restore(cache)
			return nil, err
		}
	}

	o.restore(cache)
	return result, nil
}

// flatten returns every regulator ref across all rank groups, in rank order.
func (o *Optimizer) flatten() []RegulatorRef {
	var refs []RegulatorRef
	for _, group := range o.order {
		refs = append(refs, group...)
	}
	return refs
}

func (o *Optimizer) cacheState() map[RegulatorRef]int {
	cache := make(map[RegulatorRef]int)
	for _, ref := range o.flatten() {
		cache[ref] = o.state.TapPos(ref)
	}
	return cache
}

func (o *Optimizer) restore(cache map[RegulatorRef]int) {
	_ = o.state.ApplyTapPositions(cache)
}

// initialize pre-seeds every regulated tap to its extreme for every
// strategy but Any (spec.md §4.6 step 3).
func (o *Optimizer) initialize() error {
	if !o.options.Strategy.isPreSeeded() {
		return nil
	}

	updates := make(map[RegulatorRef]int)
	toMax := o.options.Strategy.seedsToMax()
	for _, ref := range o.flatten() {
		desc := o.state.Descriptor(ref)
		if toMax {
			updates[ref] = desc.TapMax
		} else {
			updates[ref] = desc.TapMin
		}
	}
	return o.state.ApplyTapPositions(updates)
}

// stepAll shifts every regulated tap one notch toward the pre-seeded
// extreme (down for minimum strategies, up for maximum strategies), clamped
// to bounds (spec.md §4.6 step 5).
func (o *Optimizer) stepAll() error {
	delta := 1
	if !o.options.Strategy.seedsToMax() {
		delta = -1
	}

	updates := make(map[RegulatorRef]int)
	for _, ref := range o.flatten() {
		desc := o.state.Descriptor(ref)
		pos := clamp(o.state.TapPos(ref)+delta, desc.TapMin, desc.TapMax)
		updates[ref] = pos
	}
	return o.state.ApplyTapPositions(updates)
}

// tryCalculationWithRegulation is the inner loop: calculate, then repeatedly
// let the nearest unsettled rank group propose one batch of tap changes and
// recalculate, until a full pass makes no change or the iteration cap is
// hit (spec.md §4.6 "Inner loop").
func (o *Optimizer) tryCalculationWithRegulation(method pfsolver.Method) (Result, error) {
	result, err := o.calculateWithFallback(method)
	if err != nil {
		return nil, err
	}

	maxIter := o.options.MaxDiscreteIter
	if maxIter == 0 {
		maxIter = o.defaultMaxIter()
	}

	for iter := 0; iter < maxIter; iter++ {
		updates, tapChanged := o.proposeOneGroup(result)
		if !tapChanged {
			return result, nil
		}

		if err := o.state.ApplyTapPositions(updates); err != nil {
			return nil, err
		}
		result, err = o.calculateWithFallback(method)
		if err != nil {
			return nil, err
		}

		if iter == maxIter-1 && o.options.OnDiscreteLoopExhausted != nil {
			o.options.OnDiscreteLoopExhausted(iter + 1)
		}
	}

	return result, nil
}

// proposeOneGroup walks rank groups ascending and asks every connected
// regulator in the first group with any change to propose one, then stops
// (spec.md §4.6 "If any tap changed in this group, break out of the group
// walk").
func (o *Optimizer) proposeOneGroup(result Result) (map[RegulatorRef]int, bool) {
	updates := make(map[RegulatorRef]int)
	for _, group := range o.order {
		groupChanged := false
		for _, ref := range group {
			meas := o.state.Measure(result, ref)
			if !meas.TapSideConnected || !meas.ControlSideConnected {
				continue
			}
			desc := o.state.Descriptor(ref)
			if newPos, changed := controlTransformer(desc, o.state.TapPos(ref), meas); changed {
				updates[ref] = newPos
				groupChanged = true
			}
		}
		if groupChanged {
			return updates, true
		}
	}
	return updates, false
}

// defaultMaxIter matches spec.md §4.6's cap: the sum of each regulator's
// tap range.
func (o *Optimizer) defaultMaxIter() int {
	total := 0
	for _, ref := range o.flatten() {
		desc := o.state.Descriptor(ref)
		total += desc.TapMax - desc.TapMin + 1
	}
	if total == 0 {
		return 1
	}
	return total
}

// calculateWithFallback retries once with a linear method on the two
// recoverable failures; every other error propagates (spec.md §4.6 "Inner
// loop").
func (o *Optimizer) calculateWithFallback(method pfsolver.Method) (Result, error) {
	result, err := o.calc.Calculate(method)
	if err == nil {
		return result, nil
	}
	if pgmerr.Is(err, pgmerr.SingularMatrix) || pgmerr.Is(err, pgmerr.IterationDiverge) {
		return o.calc.Calculate(pfsolver.Linear)
	}
	return nil, err
}

// controlTransformer proposes at most one tap step for a single regulator
// (spec.md §4.6 "control_transformer decision"). step is desc.TapDirection
// when the measured voltage is too high (TapDirection is defined as exactly
// the step that lowers voltage), and its negation when too low.
func controlTransformer(desc Descriptor, tapPos int, meas Measurement) (int, bool) {
	uMeasured := meas.UControlSide + desc.ZComp*meas.IControlSideBranch
	v := cmplx.Abs(uMeasured)

	var step int
	switch {
	case v > desc.USet+0.5*desc.UBand:
		step = desc.TapDirection
	case v < desc.USet-0.5*desc.UBand:
		step = -desc.TapDirection
	default:
		return tapPos, false
	}

	newPos := tapPos + step
	if newPos > desc.TapMax || newPos < desc.TapMin {
		return tapPos, false
	}
	return newPos, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
