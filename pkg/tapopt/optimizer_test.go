package tapopt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridflow-go/gridflow/pkg/pfsolver"
	"github.com/gridflow-go/gridflow/pkg/tapopt"
)

// fakeResult carries the measured control-side voltage used by the single
// regulator in these tests; recalculated after every tap change.
type fakeResult struct {
	uControl complex128
}

// fakeState is a minimal StateAccessor/Calculator over one regulator, whose
// measured voltage moves by a fixed step per tap position -- enough to
// exercise control_transformer's threshold crossing without a real PF solve.
type fakeState struct {
	desc       tapopt.Descriptor
	tapPos     int
	voltsAtTap func(tapPos int) complex128
	applyCalls int
}

func (f *fakeState) Descriptor(tapopt.RegulatorRef) tapopt.Descriptor { return f.desc }
func (f *fakeState) TapPos(tapopt.RegulatorRef) int                   { return f.tapPos }

func (f *fakeState) Measure(result tapopt.Result, _ tapopt.RegulatorRef) tapopt.Measurement {
	r := result.(*fakeResult)
	return tapopt.Measurement{
		TapSideConnected:     true,
		ControlSideConnected: true,
		UControlSide:         r.uControl,
		IControlSideBranch:   0,
	}
}

func (f *fakeState) ApplyTapPositions(updates map[tapopt.RegulatorRef]int) error {
	f.applyCalls++
	for _, pos := range updates {
		f.tapPos = pos
	}
	return nil
}

func (f *fakeState) Calculate(pfsolver.Method) (tapopt.Result, error) {
	return &fakeResult{uControl: f.voltsAtTap(f.tapPos)}, nil
}

func reg(group, index int) tapopt.RegulatorRef { return tapopt.RegulatorRef{Group: group, Index: index} }

// TestOptimizer_S7_FindsVoltageLoweringStep reproduces spec scenario S7:
// u_set=1.0, u_band=0.02, tap_pos starts at 0 with |u_control|=1.05 (above
// the 1.01 upper threshold), tap_max=10, tap_direction=+1. One control step
// should move tap_pos to 1 and settle the measured voltage inside the band;
// the final returned result must reflect that settled state, while the
// observable tap position is restored to its pre-call value (spec.md §4.6
// step 6 -- the caller applies the optimum from the result, not from the
// live state this optimizer searched with).
func TestOptimizer_S7_FindsVoltageLoweringStep(t *testing.T) {
	ref := reg(1, 0)
	state := &fakeState{
		desc: tapopt.Descriptor{TapMin: 0, TapMax: 10, TapDirection: 1, USet: 1.0, UBand: 0.02},
		voltsAtTap: func(tapPos int) complex128 {
			if tapPos == 0 {
				return complex(1.05, 0)
			}
			// one step toward tap_max settles the voltage inside the band.
			return complex(1.0, 0)
		},
	}

	opt := tapopt.New(state, state, [][]tapopt.RegulatorRef{{ref}}, tapopt.Options{Strategy: tapopt.Any})
	result, err := opt.Optimize(pfsolver.IterativeCurrent)
	require.NoError(t, err)

	assert.Equal(t, complex(1.0, 0), result.(*fakeResult).uControl)
	assert.Equal(t, 0, state.tapPos, "tap position is restored after the search")
}

// TestOptimizer_Any_LeavesTapUnchangedWithinBand asserts no change is
// proposed when the measured voltage is already within the deadband.
func TestOptimizer_Any_LeavesTapUnchangedWithinBand(t *testing.T) {
	ref := reg(1, 0)
	state := &fakeState{
		desc:       tapopt.Descriptor{TapMin: -5, TapMax: 5, TapDirection: 1, USet: 1.0, UBand: 0.02},
		tapPos:     2,
		voltsAtTap: func(int) complex128 { return complex(1.0, 0) },
	}

	opt := tapopt.New(state, state, [][]tapopt.RegulatorRef{{ref}}, tapopt.Options{Strategy: tapopt.Any})
	_, err := opt.Optimize(pfsolver.IterativeCurrent)
	require.NoError(t, err)

	assert.Equal(t, 2, state.tapPos)
	assert.Equal(t, 1, state.applyCalls, "an unchanged search still restores the cached tap once")
}

// TestOptimizer_GlobalMinimum_PreSeedsThenRestores verifies initialize seeds
// tap_min and every commit (seed, step, restore) goes through
// ApplyTapPositions, leaving the observable tap position exactly as found
// before the call (spec.md §4.6 step 6).
func TestOptimizer_GlobalMinimum_PreSeedsThenRestores(t *testing.T) {
	ref := reg(1, 0)
	state := &fakeState{
		desc:       tapopt.Descriptor{TapMin: -3, TapMax: 3, TapDirection: 1, USet: 1.0, UBand: 0.02},
		tapPos:     0,
		voltsAtTap: func(int) complex128 { return complex(1.0, 0) },
	}

	opt := tapopt.New(state, state, [][]tapopt.RegulatorRef{{ref}}, tapopt.Options{Strategy: tapopt.GlobalMinimum})
	_, err := opt.Optimize(pfsolver.IterativeCurrent)
	require.NoError(t, err)

	assert.Equal(t, 0, state.tapPos, "tap position must be restored to its pre-call value")
	assert.GreaterOrEqual(t, state.applyCalls, 2, "initialize and restore must each commit a batch")
}
