// Package ybus implements C2: assembly of the sparse nodal admittance matrix
// from branch admittances and bus shunts. Source admittance is deliberately
// NOT included here (spec.md §4.2) -- the PF solver (pkg/pfsolver) adds it
// after C1 factorization so the bare Y-bus can be shared with other routines
// that do not "see" sources.
package ybus

import (
	"github.com/gridflow-go/gridflow/pkg/pgmmath"
	"github.com/gridflow-go/gridflow/pkg/sparselu"
)

// Branch is a two-terminal series admittance between two buses. Each phase
// is modeled independently (no inter-phase mutual coupling term), which is
// sufficient for the balanced-network scope this core covers.
type Branch struct {
	FromBus int
	ToBus   int
	Y       pgmmath.PhaseValue // series admittance, per phase
}

// Shunt is a single-terminal admittance to ground at a bus (e.g. line
// charging or a shunt reactor/capacitor bank). Loads are NOT shunts: they are
// current injections handled by pkg/pfsolver, not part of the Y-bus.
type Shunt struct {
	Bus int
	Y   pgmmath.PhaseValue
}

// Matrix is the assembled nodal admittance matrix together with the bus
// indexing convention (phase-expanded rows) used to build it.
type Matrix struct {
	NBus int
	Sym  pgmmath.Symmetry
	raw  *sparselu.Matrix
}

// row returns the 1-based sparse-matrix row for (bus, phase), bus is 0-based.
func (m *Matrix) row(bus, phase int) int {
	return bus*m.Sym.Phases() + phase + 1
}

// Raw exposes the underlying sparselu.Matrix for factorization.
func (m *Matrix) Raw() *sparselu.Matrix { return m.raw }

// Build assembles a Y-bus of nBus buses (each with sym.Phases() scalar
// equations) from the given branches and shunts. Diagonal of row i is the
// sum of self-admittance of every element incident to bus i; off-diagonal
// (i,j) is the negated mutual admittance of any direct branch, matching
// spec.md §4.2.
func Build(nBus int, sym pgmmath.Symmetry, branches []Branch, shunts []Shunt) (*Matrix, error) {
	size := nBus * sym.Phases()
	raw, err := sparselu.New(size)
	if err != nil {
		return nil, err
	}

	m := &Matrix{NBus: nBus, Sym: sym, raw: raw}

	for _, b := range branches {
		for p := 0; p < sym.Phases(); p++ {
			y := b.Y[p]
			fi, ti := m.row(b.FromBus, p), m.row(b.ToBus, p)
			raw.AddElement(fi, fi, y)
			raw.AddElement(ti, ti, y)
			raw.AddElement(fi, ti, -y)
			raw.AddElement(ti, fi, -y)
		}
	}

	for _, s := range shunts {
		for p := 0; p < sym.Phases(); p++ {
			bi := m.row(s.Bus, p)
			raw.AddElement(bi, bi, s.Y[p])
		}
	}

	raw.SetupElements()
	return m, nil
}

// AddDiagonal adds value into the diagonal at (bus, phase), used by the PF
// solver to stamp source admittance onto an already-built Y-bus (spec.md §4.3
// step 1).
func (m *Matrix) AddDiagonal(bus, phase int, value complex128) {
	m.raw.AddElement(m.row(bus, phase), m.row(bus, phase), value)
}

// Row exposes the 1-based sparse row index for (bus, phase), used by callers
// that build RHS vectors aligned with this Y-bus's indexing.
func (m *Matrix) Row(bus, phase int) int { return m.row(bus, phase) }

// Size returns the scalar matrix dimension (n_bus * phases).
func (m *Matrix) Size() int { return m.NBus * m.Sym.Phases() }
