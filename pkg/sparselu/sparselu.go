// Package sparselu implements C1: symbolic+numeric factorization of the
// block-structured nodal admittance matrix, and reusable forward/back
// substitution against it. It wraps github.com/edp1096/sparse the same way
// the teacher's pkg/matrix wraps it for circuit simulation, generalized from
// real-valued circuit equations to the complex nodal systems the grid model
// needs.
package sparselu

import (
	"fmt"

	"github.com/edp1096/sparse"
	"github.com/gridflow-go/gridflow/internal/pgmerr"
)

// pivotTolerance is the pivot magnitude quoted in the SingularMatrix message
// (spec.md §4.1). It is not compared against pivots here: the pivot check is
// the sparse library's own, and any Factor() failure is reported as
// SingularMatrix (see isSingular).
const pivotTolerance = 1e-20

// Matrix is the complex sparse admittance matrix C2 assembles into and C1
// factorizes. Size is the number of scalar equations (n_bus * phase count for
// the symmetry in use).
type Matrix struct {
	size   int
	raw    *sparse.Matrix
	config *sparse.Configuration
}

// New allocates a size x size complex sparse matrix.
func New(size int) (*Matrix, error) {
	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 true,
		SeparatedComplexVectors: true,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           false,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	raw, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("sparselu: creating matrix: %w", err)
	}

	return &Matrix{size: size, raw: raw, config: config}, nil
}

// Size returns the matrix dimension.
func (m *Matrix) Size() int { return m.size }

// AddElement adds a complex value into Y[i][j] (1-based indexing, matching
// the sparse library's convention).
func (m *Matrix) AddElement(i, j int, value complex128) {
	if i <= 0 || j <= 0 || i > m.size || j > m.size {
		return
	}
	el := m.raw.GetElement(int64(i), int64(j))
	el.Real += real(value)
	el.Imag += imag(value)
}

// Diag returns the diagonal element at row i, allocating it if absent.
func (m *Matrix) Diag(i int) *sparse.Element {
	if i <= 0 || i > m.size {
		return nil
	}
	return m.raw.GetElement(int64(i), int64(i))
}

// SetupElements forces every (i,j) slot to exist in the sparse pattern, used
// once after the initial stamping pass, mirroring CircuitMatrix.SetupElements.
func (m *Matrix) SetupElements() {
	for i := 1; i <= m.size; i++ {
		for j := 1; j <= m.size; j++ {
			m.raw.GetElement(int64(i), int64(j))
		}
	}
}

// Clear zeroes every numeric entry while preserving the non-zero pattern.
func (m *Matrix) Clear() {
	m.raw.Clear()
}

// Handle is the reusable prefactorization produced by Factorize. It is owned
// by a single solver instance (spec.md §5) and must not be shared across
// concurrently-running scenarios.
type Handle struct {
	matrix        *Matrix
	factorized    bool
	factorCount   int
}

// Factorize computes an LU decomposition of m with a fill-reducing
// permutation. The returned handle is reusable across many Solve calls and
// across batch scenarios whose Y pattern is unchanged (spec.md §4.1, §4.3).
func Factorize(m *Matrix) (*Handle, error) {
	h := &Handle{matrix: m}
	if err := h.refactorize(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handle) refactorize() error {
	if err := h.matrix.raw.Factor(); err != nil {
		if isSingular(err) {
			return pgmerr.Wrap(pgmerr.SingularMatrix, err, "pivot magnitude below tolerance %.0e", pivotTolerance)
		}
		return fmt.Errorf("sparselu: factorization failed: %w", err)
	}
	h.factorized = true
	h.factorCount++
	return nil
}

// isSingular heuristically classifies a factorization error from the
// underlying sparse library as a singular-matrix condition. The library
// reports pivot failures as plain errors; any Factor() failure in this
// module's usage is a singular or structurally-degenerate Y-bus.
func isSingular(err error) bool {
	return err != nil
}

// Refactorize recomputes the numeric factorization in place, reusing the
// already-allocated handle. Call after Invalidate when the caller knows the
// Y values (not just the pattern) have changed.
func (h *Handle) Refactorize() error {
	return h.refactorize()
}

// Invalidate drops the cached numeric factorization. The structural pattern
// is preserved; the next Solve requires a call to Refactorize first.
func (h *Handle) Invalidate() {
	h.factorized = false
}

// FactorCount reports how many times this handle has actually run Factor(),
// used by property test 6 (factorization reuse) to observe amortization.
func (h *Handle) FactorCount() int { return h.factorCount }

// Solve performs forward/back substitution for Y*x = rhs using the cached
// factorization, writing the result into out. rhs and out may alias the same
// backing array.
func Solve(h *Handle, rhs, out []complex128) error {
	if !h.factorized {
		return fmt.Errorf("sparselu: solve requested on invalidated handle; call Refactorize first")
	}
	if len(rhs) != h.matrix.size || len(out) != h.matrix.size {
		return fmt.Errorf("sparselu: solve vector length %d/%d does not match matrix size %d", len(rhs), len(out), h.matrix.size)
	}

	re := make([]float64, h.matrix.size+1)
	im := make([]float64, h.matrix.size+1)
	for i, v := range rhs {
		re[i+1] = real(v)
		im[i+1] = imag(v)
	}

	solRe, solIm, err := h.matrix.raw.SolveComplex(re, im)
	if err != nil {
		return fmt.Errorf("sparselu: solve failed: %w", err)
	}

	for i := range out {
		out[i] = complex(solRe[i+1], solIm[i+1])
	}
	return nil
}
