package pgmmath_test

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridflow-go/gridflow/pkg/pgmmath"
)

func TestSymmetryPhases(t *testing.T) {
	assert.Equal(t, 1, pgmmath.Symmetric.Phases())
	assert.Equal(t, 3, pgmmath.Asymmetric.Phases())
}

func TestNewPhaseValue_AllocatesZeroedSlots(t *testing.T) {
	sym := pgmmath.NewPhaseValue(pgmmath.Symmetric)
	require.Len(t, sym, 1)
	assert.Equal(t, complex128(0), sym[0])

	asym := pgmmath.NewPhaseValue(pgmmath.Asymmetric)
	require.Len(t, asym, 3)
}

func TestAddAndSub_AreInverses(t *testing.T) {
	a := pgmmath.PhaseValue{complex(1, 2)}
	b := pgmmath.PhaseValue{complex(3, -1)}

	sum := pgmmath.Add(a, b)
	assert.Equal(t, pgmmath.PhaseValue{complex(4, 1)}, sum)

	diff := pgmmath.Sub(sum, b)
	assert.Equal(t, a, diff)
}

func TestAddInPlace_MutatesFirstArgument(t *testing.T) {
	a := pgmmath.PhaseValue{complex(1, 0), complex(2, 0)}
	b := pgmmath.PhaseValue{complex(0, 1), complex(0, 2)}

	pgmmath.AddInPlace(a, b)

	assert.Equal(t, pgmmath.PhaseValue{complex(1, 1), complex(2, 2)}, a)
}

func TestMulAndDivElem_AreInverses(t *testing.T) {
	a := pgmmath.PhaseValue{complex(2, 3)}
	b := pgmmath.PhaseValue{complex(1, 1)}

	product := pgmmath.Mul(a, b)
	quotient := pgmmath.DivElem(product, b)

	assert.InDelta(t, real(a[0]), real(quotient[0]), 1e-9)
	assert.InDelta(t, imag(a[0]), imag(quotient[0]), 1e-9)
}

func TestConj(t *testing.T) {
	a := pgmmath.PhaseValue{complex(3, 4)}
	assert.Equal(t, pgmmath.PhaseValue{complex(3, -4)}, pgmmath.Conj(a))
}

func TestAbsAndMaxVal(t *testing.T) {
	a := pgmmath.PhaseValue{complex(3, 4), complex(1, 0)}

	mags := pgmmath.Abs(a)
	require.Len(t, mags, 2)
	assert.InDelta(t, 5.0, mags[0], 1e-9)
	assert.InDelta(t, 1.0, mags[1], 1e-9)

	assert.InDelta(t, 5.0, pgmmath.MaxVal(a), 1e-9)
}

func TestScaleReal(t *testing.T) {
	a := pgmmath.PhaseValue{complex(1, 1)}
	scaled := pgmmath.ScaleReal(a, []float64{2})
	assert.Equal(t, pgmmath.PhaseValue{complex(2, 2)}, scaled)
}

func TestFromPolar_MatchesEveryPhase(t *testing.T) {
	v := pgmmath.FromPolar(pgmmath.Asymmetric, 1.0, 0)
	require.Len(t, v, 3)
	for _, phase := range v {
		assert.InDelta(t, 1.0, cmplx.Abs(phase), 1e-9)
		assert.InDelta(t, 0.0, cmplx.Phase(phase), 1e-9)
	}
}
