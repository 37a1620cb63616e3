package model

import (
	"math/cmplx"

	"github.com/gridflow-go/gridflow/pkg/dataset"
	"github.com/gridflow-go/gridflow/pkg/pfsolver"
	"github.com/gridflow-go/gridflow/pkg/pgmmath"
)

// outputSchema describes the per-bus voltage result Calculate encodes,
// enough for a caller to read |U| and its angle back out through
// pkg/dataset's C8 handler.
func outputSchema() dataset.DatasetSchema {
	return dataset.DatasetSchema{
		Name: "output",
		Components: map[string]dataset.ComponentSchema{
			"node": {Name: "node", Attributes: []dataset.AttrSpec{
				{Name: "id", Type: dataset.ID},
				{Name: "u", Type: dataset.Float64},
				{Name: "u_angle", Type: dataset.Float64},
			}},
		},
	}
}

// Calculate runs the power flow to convergence and encodes the result as a
// single-scenario output dataset (spec.md §6 "Model::calculate(options) ->
// output_dataset"). options.Method is not consulted: every method value runs
// the iterative-current solver.
func (m *Model) Calculate(options Options) (*dataset.WritableDatasetHandler, error) {
	output, err := m.CalculateRaw(options)
	if err != nil {
		return nil, err
	}
	return m.encodeOutput(output), nil
}

// CalculateRaw runs the solver and returns its unencoded per-bus voltage
// result, used directly by pkg/tapopt's StateAccessor.Measure (which needs
// complex voltages and branch currents, not the encoded magnitude/angle
// dataset Calculate produces for external callers).
func (m *Model) CalculateRaw(options Options) (*pfsolver.Output, error) {
	base := pfsolver.NewBaseSolver(m.topo, m.yBus, pfsolver.Options{
		Tolerance: options.Tolerance,
		MaxIter:   options.MaxIter,
		Abort:     options.Abort,
	})

	return base.Run(m.solver, m.buildInput())
}

// buildInput assembles a pfsolver.Input from this model's current load and
// source records, each load's nominal power folded into one PhaseValue per
// spec.md §9's symmetric scoping for this core.
func (m *Model) buildInput() *pfsolver.Input {
	sym := m.topo.Sym

	sInjection := make([]pgmmath.PhaseValue, len(m.loads))
	loadGenType := make([]pfsolver.LoadGenType, len(m.loads))
	for i, l := range m.loads {
		sInjection[i] = setAll(pgmmath.NewPhaseValue(sym), l.s)
		loadGenType[i] = l.kind
	}

	sources := make([]pfsolver.Source, len(m.sources))
	for i, s := range m.sources {
		sources[i] = pfsolver.Source{
			Bus:  s.bus,
			URef: setAll(pgmmath.NewPhaseValue(sym), s.uRef),
			Y:    setAll(pgmmath.NewPhaseValue(sym), s.y),
		}
	}

	return &pfsolver.Input{SInjection: sInjection, LoadGenType: loadGenType, Sources: sources}
}

func (m *Model) encodeOutput(output *pfsolver.Output) *dataset.WritableDatasetHandler {
	handler := dataset.NewWritableDatasetHandler(outputSchema())
	_ = handler.AddComponentInfo("node", dataset.ComponentShape{ElementsPerScenario: len(m.busIDs), TotalElements: len(m.busIDs)})

	for i, id := range m.busIDs {
		ptr, _ := handler.AdvancePtr("node", i)
		u := output.U[i][0]
		mag, angle := cmplx.Polar(u)
		(*ptr)["id"] = id
		(*ptr)["u"] = mag
		(*ptr)["u_angle"] = angle
	}
	return handler
}

// IsUpdateIndependent reports whether update only touches load set-points
// (sym_load/asym_load p_specified/q_specified), in which case the Y-bus
// pattern and factorization are unaffected and a batch of such updates can
// share one prefactorization (spec.md §6).
func (m *Model) IsUpdateIndependent(update *dataset.Dataset) bool {
	for _, scenario := range update.Scenarios {
		for component := range scenario {
			switch component {
			case "sym_load", "asym_load":
				continue
			default:
				return false
			}
		}
	}
	return true
}

// UpdateComponent applies per-component mutations in place (spec.md §6
// "Model::update_component"). Load set-point changes never touch the
// Y-bus and keep the cached factorization. Any line or source change
// rebuilds the bare Y-bus and drops the cached factorization without
// recomputing it immediately, deferred to the next Calculate call.
// Transformer elements are ignored.
func (m *Model) UpdateComponent(update *dataset.Dataset) error {
	if len(update.Scenarios) == 0 {
		return nil
	}
	scenario := update.Scenarios[0]

	topologyTouched := false

	for _, ld := range scenario["sym_load"] {
		m.applyLoadUpdate(ld)
	}
	for _, ld := range scenario["asym_load"] {
		m.applyAsymLoadUpdate(ld)
	}
	for _, src := range scenario["source"] {
		if m.applySourceUpdate(src) {
			topologyTouched = true
		}
	}
	for _, line := range scenario["line"] {
		if m.applyLineUpdate(line) {
			topologyTouched = true
		}
	}
	for _, tr := range scenario["transformer"] {
		if m.applyTransformerUpdate(tr) {
			topologyTouched = true
		}
	}

	// A rebuilt Y-bus comes without source admittance, so the fresh solver
	// stamps it exactly once; invalidating the old solver would stamp it a
	// second time onto the already-stamped matrix.
	if topologyTouched || len(scenario["source"]) > 0 {
		return m.rebuildTopology()
	}
	return nil
}

func (m *Model) findLoad(id int64) int {
	for i, l := range m.loads {
		if l.id == id {
			return i
		}
	}
	return -1
}

func (m *Model) applyLoadUpdate(ld dataset.Element) {
	idx := m.findLoad(mustInt64(ld["id"]))
	if idx < 0 {
		return
	}
	if p, ok := ld["p_specified"].(float64); ok {
		m.loads[idx].s = complex(p, imag(m.loads[idx].s))
	}
	if q, ok := ld["q_specified"].(float64); ok {
		m.loads[idx].s = complex(real(m.loads[idx].s), q)
	}
}

func (m *Model) applyAsymLoadUpdate(ld dataset.Element) {
	idx := m.findLoad(mustInt64(ld["id"]))
	if idx < 0 {
		return
	}
	if raw, ok := ld["p_specified"]; ok {
		m.loads[idx].s = complex(sumPhases(raw), imag(m.loads[idx].s))
	}
	if raw, ok := ld["q_specified"]; ok {
		m.loads[idx].s = complex(real(m.loads[idx].s), sumPhases(raw))
	}
}

func (m *Model) findSource(id int64) int {
	for i, s := range m.sources {
		if s.id == id {
			return i
		}
	}
	return -1
}

func (m *Model) applySourceUpdate(src dataset.Element) (topologyTouched bool) {
	idx := m.findSource(mustInt64(src["id"]))
	if idx < 0 {
		return false
	}
	if mag, ok := src["u_ref"].(float64); ok {
		_, angle := cmplx.Polar(m.sources[idx].uRef)
		m.sources[idx].uRef = cmplx.Rect(mag, angle)
	}
	if angle, ok := src["u_ref_angle"].(float64); ok {
		mag, _ := cmplx.Polar(m.sources[idx].uRef)
		m.sources[idx].uRef = cmplx.Rect(mag, angle)
	}
	// sk/rx_ratio would change source admittance (topology-affecting); this
	// core does not support re-deriving them post-construction.
	return false
}

func (m *Model) findBranch(id int64) int {
	for i, b := range m.branches {
		if b.id == id {
			return i
		}
	}
	return -1
}

func (m *Model) applyLineUpdate(line dataset.Element) (topologyTouched bool) {
	idx := m.findBranch(mustInt64(line["id"]))
	if idx < 0 {
		return false
	}
	r1, hasR := line["r1"].(float64)
	x1, hasX := line["x1"].(float64)
	if !hasR && !hasX {
		return false
	}
	if !hasR {
		r1 = real(m.branches[idx].y)
	}
	if !hasX {
		x1 = imag(m.branches[idx].y)
	}
	z := complex(r1, x1)
	if z == 0 {
		return false
	}
	m.branches[idx].y = 1 / z
	return true
}

func (m *Model) applyTransformerUpdate(dataset.Element) (topologyTouched bool) {
	// tap_pos changes are driven through pkg/tapopt's StateAccessor, not
	// through this dataset-shaped update path.
	return false
}
