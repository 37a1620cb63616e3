package pfsolver_test

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridflow-go/gridflow/pkg/pfsolver"
	"github.com/gridflow-go/gridflow/pkg/pgmmath"
	"github.com/gridflow-go/gridflow/pkg/ybus"
)

// twoBusTopology builds a source-bus/load-bus system: bus 0 carries a source
// behind admittance 0+1000j, bus 1 carries one const_pq load, tied together
// by a line of admittance 0-10j.
func twoBusTopology(t *testing.T) (*pfsolver.Topology, *ybus.Matrix, *pfsolver.Input) {
	t.Helper()

	branches := []ybus.Branch{
		{FromBus: 0, ToBus: 1, Y: pgmmath.PhaseValue{complex(0, -10)}},
	}
	y, err := ybus.Build(2, pgmmath.Symmetric, branches, nil)
	require.NoError(t, err)

	topo := &pfsolver.Topology{
		NBus:           2,
		Sym:            pgmmath.Symmetric,
		LoadGensPerBus: [][]int{nil, {0}},
	}

	input := &pfsolver.Input{
		SInjection:  []pgmmath.PhaseValue{{complex(0.1, 0.02)}},
		LoadGenType: []pfsolver.LoadGenType{pfsolver.ConstPQ},
		Sources: []pfsolver.Source{
			{Bus: 0, URef: pgmmath.FromPolar(pgmmath.Symmetric, 1.0, 0), Y: pgmmath.PhaseValue{complex(0, 1000)}},
		},
	}

	return topo, y, input
}

func TestBaseSolver_Run_ConvergesToStableVoltage(t *testing.T) {
	topo, y, input := twoBusTopology(t)
	solver := pfsolver.NewIterativeCurrentSolver(topo)
	base := pfsolver.NewBaseSolver(topo, y, pfsolver.DefaultOptions())

	output, err := base.Run(solver, input)
	require.NoError(t, err)

	assert.Greater(t, output.Iterations, 0)
	assert.LessOrEqual(t, output.MaxDeviation, pfsolver.DefaultOptions().Tolerance)
	require.Len(t, output.U, 2)

	sourceMag := cmplx.Abs(output.U[0][0])
	loadMag := cmplx.Abs(output.U[1][0])
	assert.InDelta(t, 1.0, sourceMag, 0.05)
	assert.Less(t, loadMag, sourceMag+0.05)
}

func TestBaseSolver_Run_DivergesWhenIterationCapTooLow(t *testing.T) {
	topo, y, input := twoBusTopology(t)
	solver := pfsolver.NewIterativeCurrentSolver(topo)
	base := pfsolver.NewBaseSolver(topo, y, pfsolver.Options{Tolerance: 1e-30, MaxIter: 1})

	_, err := base.Run(solver, input)
	assert.Error(t, err)
}

func TestBaseSolver_Run_AbortStopsEarly(t *testing.T) {
	topo, y, input := twoBusTopology(t)
	solver := pfsolver.NewIterativeCurrentSolver(topo)
	base := pfsolver.NewBaseSolver(topo, y, pfsolver.Options{
		Tolerance: 1e-8,
		MaxIter:   20,
		Abort:     func() bool { return true },
	})

	_, err := base.Run(solver, input)
	assert.Error(t, err)
}

func TestBaseSolver_Run_UnhandledLoadGenTypeReturnsError(t *testing.T) {
	topo, y, input := twoBusTopology(t)
	input.LoadGenType[0] = pfsolver.LoadGenType(99)

	solver := pfsolver.NewIterativeCurrentSolver(topo)
	base := pfsolver.NewBaseSolver(topo, y, pfsolver.DefaultOptions())

	_, err := base.Run(solver, input)
	assert.Error(t, err)
}

func TestInitialVoltage_SeedsSourceBusesFromURefAndRestFlatStart(t *testing.T) {
	topo := &pfsolver.Topology{NBus: 2, Sym: pgmmath.Symmetric, LoadGensPerBus: [][]int{nil, nil}}
	input := &pfsolver.Input{
		Sources: []pfsolver.Source{
			{Bus: 0, URef: pgmmath.FromPolar(pgmmath.Symmetric, 1.0, 0), Y: pgmmath.PhaseValue{complex(0, 1)}},
		},
	}

	u := pfsolver.InitialVoltage(topo, input)
	require.Len(t, u, 2)
	assert.InDelta(t, 1.0, cmplx.Abs(u[0][0]), 1e-9)
	assert.InDelta(t, 1.0, cmplx.Abs(u[1][0]), 1e-9)
}
