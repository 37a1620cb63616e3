package ybus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridflow-go/gridflow/pkg/pgmmath"
	"github.com/gridflow-go/gridflow/pkg/ybus"
)

func TestBuild_TwoBusSingleBranch_SizesRowsCorrectly(t *testing.T) {
	branches := []ybus.Branch{
		{FromBus: 0, ToBus: 1, Y: pgmmath.PhaseValue{complex(0, -10)}},
	}

	m, err := ybus.Build(2, pgmmath.Symmetric, branches, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, m.NBus)
	assert.Equal(t, 2, m.Size())
	assert.Equal(t, 1, m.Row(0, 0))
	assert.Equal(t, 2, m.Row(1, 0))
}

func TestBuild_AsymmetricPhasesExpandRowIndexing(t *testing.T) {
	m, err := ybus.Build(2, pgmmath.Asymmetric, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 6, m.Size())
	assert.Equal(t, 1, m.Row(0, 0))
	assert.Equal(t, 3, m.Row(0, 2))
	assert.Equal(t, 4, m.Row(1, 0))
}

func TestBuild_ShuntStampsDiagonalOnly(t *testing.T) {
	shunts := []ybus.Shunt{
		{Bus: 0, Y: pgmmath.PhaseValue{complex(0, 1)}},
	}

	m, err := ybus.Build(1, pgmmath.Symmetric, nil, shunts)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Size())
}

func TestAddDiagonal_StampsWithoutPanicking(t *testing.T) {
	m, err := ybus.Build(1, pgmmath.Symmetric, nil, nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		m.AddDiagonal(0, 0, complex(1, 0))
	})
	assert.NotNil(t, m.Raw())
}
