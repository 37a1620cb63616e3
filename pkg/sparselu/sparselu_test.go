package sparselu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridflow-go/gridflow/pkg/sparselu"
)

func TestNew_AllocatesMatrixOfGivenSize(t *testing.T) {
	m, err := sparselu.New(3)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Size())
}

func TestFactorizeAndSolve_DiagonalMatrix_SolvesExactly(t *testing.T) {
	m, err := sparselu.New(2)
	require.NoError(t, err)

	m.AddElement(1, 1, complex(2, 0))
	m.AddElement(2, 2, complex(4, 0))
	m.SetupElements()

	handle, err := sparselu.Factorize(m)
	require.NoError(t, err)
	assert.Equal(t, 1, handle.FactorCount())

	rhs := []complex128{complex(2, 0), complex(8, 0)}
	out := make([]complex128, 2)
	require.NoError(t, sparselu.Solve(handle, rhs, out))

	assert.InDelta(t, 1.0, real(out[0]), 1e-9)
	assert.InDelta(t, 2.0, real(out[1]), 1e-9)
}

func TestSolve_RhsAndOutMayAlias(t *testing.T) {
	m, err := sparselu.New(1)
	require.NoError(t, err)
	m.AddElement(1, 1, complex(2, 0))
	m.SetupElements()

	handle, err := sparselu.Factorize(m)
	require.NoError(t, err)

	buf := []complex128{complex(6, 0)}
	require.NoError(t, sparselu.Solve(handle, buf, buf))
	assert.InDelta(t, 3.0, real(buf[0]), 1e-9)
}

func TestSolve_LengthMismatch_ReturnsError(t *testing.T) {
	m, err := sparselu.New(2)
	require.NoError(t, err)
	m.AddElement(1, 1, complex(1, 0))
	m.AddElement(2, 2, complex(1, 0))
	m.SetupElements()

	handle, err := sparselu.Factorize(m)
	require.NoError(t, err)

	err = sparselu.Solve(handle, []complex128{1}, make([]complex128, 2))
	assert.Error(t, err)
}

func TestInvalidate_RequiresRefactorizeBeforeSolve(t *testing.T) {
	m, err := sparselu.New(1)
	require.NoError(t, err)
	m.AddElement(1, 1, complex(2, 0))
	m.SetupElements()

	handle, err := sparselu.Factorize(m)
	require.NoError(t, err)

	handle.Invalidate()
	out := make([]complex128, 1)
	err = sparselu.Solve(handle, []complex128{complex(2, 0)}, out)
	assert.Error(t, err)

	require.NoError(t, handle.Refactorize())
	require.NoError(t, sparselu.Solve(handle, []complex128{complex(2, 0)}, out))
	assert.Equal(t, 2, handle.FactorCount())
}

func TestDiag_ReturnsNilOutOfRange(t *testing.T) {
	m, err := sparselu.New(2)
	require.NoError(t, err)
	assert.Nil(t, m.Diag(0))
	assert.Nil(t, m.Diag(3))
	assert.NotNil(t, m.Diag(1))
}

func TestClear_PreservesPatternButZeroesValues(t *testing.T) {
	m, err := sparselu.New(1)
	require.NoError(t, err)
	m.AddElement(1, 1, complex(5, 0))
	m.SetupElements()
	m.Clear()
	m.AddElement(1, 1, complex(3, 0))

	handle, err := sparselu.Factorize(m)
	require.NoError(t, err)
	assert.NotNil(t, handle)
}
