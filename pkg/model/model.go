// Package model implements the public calculation API facade (spec.md §6):
// Model.New decodes an input dataset into the C2 Y-bus and C3/C4 solver
// state, Model.UpdateComponent mutates it in place, and Model.Calculate
// drives the solver and re-encodes its output. It plays the same role the
// teacher's pkg/circuit.Circuit plays for a SPICE netlist -- node/branch
// maps built once, a matrix assembled from them, and an analysis run
// against the result -- generalized from a netlist's R/L/C/V elements to a
// grid model's nodes, lines, transformers, sources and loads.
package model

import (
	"math"
	"math/cmplx"

	"github.com/gridflow-go/gridflow/internal/pgmerr"
	"github.com/gridflow-go/gridflow/pkg/dataset"
	"github.com/gridflow-go/gridflow/pkg/pfsolver"
	"github.com/gridflow-go/gridflow/pkg/pgmmath"
	"github.com/gridflow-go/gridflow/pkg/ybus"
)

// Options configures one Calculate call (spec.md §6 "Options").
type Options struct {
	Method    pfsolver.Method
	Tolerance float64
	MaxIter   int
	Abort     func() bool
}

// DefaultOptions mirrors pfsolver.DefaultOptions for callers that only care
// about the calculation method.
func DefaultOptions() Options {
	return Options{Method: pfsolver.IterativeCurrent, Tolerance: 1e-8, MaxIter: 20}
}

// loadRecord is this model's working copy of one sym_load/asym_load
// element: only the fields the solver consumes and UpdateComponent can
// mutate.
type loadRecord struct {
	id   int64
	bus  int
	kind pfsolver.LoadGenType
	s    complex128
}

// sourceRecord is the working copy of one source element.
type sourceRecord struct {
	id  int64
	bus int
	y   complex128
	uRef complex128
}

// branchRecord remembers which buses a line/transformer connects so
// UpdateComponent can re-stamp the Y-bus when a topology-affecting
// attribute changes.
type branchRecord struct {
	id      int64
	from    int
	to      int
	y       complex128
	isTrafo bool

	// Transformer-only fields, read by pkg/tapopt through this model's
	// tapAdapter (spec.md §3 "tap-regulator binding").
	tapPos, tapMin, tapMax, tapDirection int
	nominalY                            complex128 // base series admittance at tap_pos == 0
}

// Model is one decoded, solvable grid: everything pfsolver needs plus the
// bookkeeping UpdateComponent and Calculate's re-encoding step need.
//
// Asymmetric (3-phase) components are accepted on input but folded to a
// single-phase equivalent (spec.md §9 "Variant over symmetry" scopes the
// hot path to one symmetry tag at a time; this core only wires up the
// symmetric tag end to end -- see DESIGN.md).
type Model struct {
	systemFrequency float64

	nodeIndex map[int64]int
	busIDs    []int64

	branches []branchRecord
	loads    []loadRecord
	sources  []sourceRecord

	topo   *pfsolver.Topology
	yBus   *ybus.Matrix
	solver *pfsolver.IterativeCurrentSolver

	transformerByID map[int64]int // transformer element id -> branches index
	tapRegulators   []tapRegulatorRecord
}

// tapRegulatorRecord is the working copy of one transformer_tap_regulator
// element, resolved to the branch it controls.
type tapRegulatorRecord struct {
	id             int64
	branchIdx      int
	controlNode    int // bus index of the transformer's control (to) side
	uSet, uBand    float64
	zComp          complex128
}

// New decodes input (its first scenario; batching is the caller's
// responsibility per spec.md §5's per-scenario Model clone) into a solvable
// Y-bus and load topology.
func New(systemFrequency float64, input *dataset.Dataset) (*Model, error) {
	if len(input.Scenarios) == 0 {
		return nil, pgmerr.New(pgmerr.SerializationError, "input dataset has no scenarios")
	}
	scenario := input.Scenarios[0]

	m := &Model{
		systemFrequency: systemFrequency,
		nodeIndex:       make(map[int64]int),
		transformerByID: make(map[int64]int),
	}

	for _, n := range scenario["node"] {
		id, _ := n["id"].(int64)
		m.nodeIndex[id] = len(m.busIDs)
		m.busIDs = append(m.busIDs, id)
	}

	omega := 2 * math.Pi * systemFrequency

	for _, l := range scenario["line"] {
		from, to, y, ok := decodeLine(l, m.nodeIndex, omega)
		if !ok {
			continue
		}
		m.branches = append(m.branches, branchRecord{id: mustInt64(l["id"]), from: from, to: to, y: y})
	}

	for _, tr := range scenario["transformer"] {
		rec, ok := decodeTransformer(tr, m.nodeIndex)
		if !ok {
			continue
		}
		m.transformerByID[rec.id] = len(m.branches)
		m.branches = append(m.branches, rec)
	}

	for _, reg := range scenario["transformer_tap_regulator"] {
		rec, ok := m.decodeTapRegulator(reg)
		if !ok {
			continue
		}
		m.tapRegulators = append(m.tapRegulators, rec)
	}

	for _, src := range scenario["source"] {
		rec, ok := decodeSource(src, m.nodeIndex)
		if !ok {
			continue
		}
		m.sources = append(m.sources, rec)
	}

	for _, ld := range scenario["sym_load"] {
		rec, ok := decodeLoad(ld, m.nodeIndex)
		if !ok {
			continue
		}
		m.loads = append(m.loads, rec)
	}
	for _, ld := range scenario["asym_load"] {
		rec, ok := decodeAsymLoad(ld, m.nodeIndex)
		if !ok {
			continue
		}
		m.loads = append(m.loads, rec)
	}

	if err := m.rebuildTopology(); err != nil {
		return nil, err
	}

	return m, nil
}

func mustInt64(v interface{}) int64 {
	n, _ := v.(int64)
	return n
}

func decodeLine(l dataset.Element, nodeIndex map[int64]int, omega float64) (from, to int, y complex128, ok bool) {
	fromID, _ := l["from_node"].(int64)
	toID, _ := l["to_node"].(int64)
	from, okFrom := nodeIndex[fromID]
	to, okTo := nodeIndex[toID]
	if !okFrom || !okTo {
		return 0, 0, 0, false
	}
	r1, _ := l["r1"].(float64)
	x1, _ := l["x1"].(float64)
	z := complex(r1, x1)
	if z == 0 {
		return 0, 0, 0, false
	}
	return from, to, 1 / z, true
}

// tapStepRatio is the fractional turns-ratio change per tap position this
// core assumes absent a per-transformer ratio table in the input schema
// (spec.md's value objects do not carry one; see DESIGN.md).
const tapStepRatio = 0.0125

// decodeTransformer builds a branchRecord for one transformer element. Its
// admittance is tap_pos-dependent: applyTapRatio derives the effective
// series admittance from the nominal one each time tap_pos changes.
func decodeTransformer(tr dataset.Element, nodeIndex map[int64]int) (branchRecord, bool) {
	fromID, _ := tr["from_node"].(int64)
	toID, _ := tr["to_node"].(int64)
	from, okFrom := nodeIndex[fromID]
	to, okTo := nodeIndex[toID]
	if !okFrom || !okTo {
		return branchRecord{}, false
	}

	tapPos := int(mustInt64(tr["tap_pos"]))
	tapMin := int(mustInt64(tr["tap_min"]))
	tapMax := int(mustInt64(tr["tap_max"]))
	tapDirection := 1
	if d := mustInt64(tr["tap_direction"]); d < 0 {
		tapDirection = -1
	}

	// Nominal (tap_pos == 0) series admittance; tap-changing reactance swing
	// is the dominant effect so only the imaginary part is modeled.
	nominalY := complex(0, -10)

	rec := branchRecord{
		id: mustInt64(tr["id"]), from: from, to: to, isTrafo: true,
		tapPos: tapPos, tapMin: tapMin, tapMax: tapMax, tapDirection: tapDirection,
		nominalY: nominalY,
	}
	rec.y = applyTapRatio(nominalY, tapPos, tapDirection)
	return rec, true
}

// applyTapRatio scales a transformer's nominal admittance for the given tap
// position, tapStepRatio per step, in the direction tap_direction names.
func applyTapRatio(nominalY complex128, tapPos, tapDirection int) complex128 {
	ratio := 1.0 + float64(tapDirection)*float64(tapPos)*tapStepRatio
	if ratio == 0 {
		ratio = 1e-9
	}
	return nominalY * complex(ratio, 0)
}

// decodeTapRegulator resolves one transformer_tap_regulator element to its
// controlled branch, recording the control-side bus as the transformer's
// "to" node (spec.md §3's regulated_object reference).
func (m *Model) decodeTapRegulator(reg dataset.Element) (tapRegulatorRecord, bool) {
	regulatedID := mustInt64(reg["regulated_object"])
	branchIdx, ok := m.transformerByID[regulatedID]
	if !ok {
		return tapRegulatorRecord{}, false
	}
	zRe, _ := reg["z_comp_re"].(float64)
	zIm, _ := reg["z_comp_im"].(float64)
	return tapRegulatorRecord{
		id:          mustInt64(reg["id"]),
		branchIdx:   branchIdx,
		controlNode: m.branches[branchIdx].to,
		uSet:        floatAttr(reg, "u_set"),
		uBand:       floatAttr(reg, "u_band"),
		zComp:       complex(zRe, zIm),
	}, true
}

func floatAttr(e dataset.Element, key string) float64 {
	f, _ := e[key].(float64)
	return f
}

func decodeSource(src dataset.Element, nodeIndex map[int64]int) (sourceRecord, bool) {
	nodeID, _ := src["node"].(int64)
	bus, ok := nodeIndex[nodeID]
	if !ok {
		return sourceRecord{}, false
	}
	uRefMag, _ := src["u_ref"].(float64)
	uRefAngle, _ := src["u_ref_angle"].(float64)
	sk, _ := src["sk"].(float64)
	rxRatio, _ := src["rx_ratio"].(float64)

	y := complex(0, 0)
	if sk > 0 {
		zMag := (uRefMag * uRefMag) / sk
		r := zMag / math.Sqrt(1+rxRatio*rxRatio)
		x := r * rxRatio
		y = 1 / complex(r, x)
	}

	return sourceRecord{
		id:   mustInt64(src["id"]),
		bus:  bus,
		y:    y,
		uRef: cmplx.Rect(uRefMag, uRefAngle),
	}, true
}

func decodeLoad(ld dataset.Element, nodeIndex map[int64]int) (loadRecord, bool) {
	nodeID, _ := ld["node"].(int64)
	bus, ok := nodeIndex[nodeID]
	if !ok {
		return loadRecord{}, false
	}
	p, _ := ld["p_specified"].(float64)
	q, _ := ld["q_specified"].(float64)
	kind, _ := ld["type"].(int64)
	return loadRecord{id: mustInt64(ld["id"]), bus: bus, kind: pfsolver.LoadGenType(kind), s: complex(p, q)}, true
}

// decodeAsymLoad folds a 3-phase load's per-phase p/q into the single-phase
// equivalent this model solves, per the symmetry scoping noted on Model.
func decodeAsymLoad(ld dataset.Element, nodeIndex map[int64]int) (loadRecord, bool) {
	nodeID, _ := ld["node"].(int64)
	bus, ok := nodeIndex[nodeID]
	if !ok {
		return loadRecord{}, false
	}
	p := sumPhases(ld["p_specified"])
	q := sumPhases(ld["q_specified"])
	kind, _ := ld["type"].(int64)
	return loadRecord{id: mustInt64(ld["id"]), bus: bus, kind: pfsolver.LoadGenType(kind), s: complex(p, q)}, true
}

func sumPhases(raw interface{}) float64 {
	phases, ok := raw.([3]interface{})
	if !ok {
		return 0
	}
	var total float64
	for _, v := range phases {
		if f, ok := v.(float64); ok {
			total += f
		}
	}
	return total
}

// rebuildTopology re-derives the Y-bus, fixed-per-scenario Topology and a
// fresh solver from the model's current branch/load/source records. Called
// from New and from UpdateComponent whenever a topology-affecting field
// changed.
func (m *Model) rebuildTopology() error {
	nBus := len(m.busIDs)
	sym := pgmmath.Symmetric

	branches := make([]ybus.Branch, 0, len(m.branches))
	for _, b := range m.branches {
		branches = append(branches, ybus.Branch{
			FromBus: b.from,
			ToBus:   b.to,
			Y:       setAll(pgmmath.NewPhaseValue(sym), b.y),
		})
	}

	y, err := ybus.Build(nBus, sym, branches, nil)
	if err != nil {
		return err
	}

	loadsPerBus := make([][]int, nBus)
	for i, l := range m.loads {
		loadsPerBus[l.bus] = append(loadsPerBus[l.bus], i)
	}

	m.yBus = y
	m.topo = &pfsolver.Topology{NBus: nBus, Sym: sym, LoadGensPerBus: loadsPerBus}
	m.solver = pfsolver.NewIterativeCurrentSolver(m.topo)
	return nil
}

// setAll is a tiny convenience: every phase of a freshly allocated
// PhaseValue set to the same scalar, used when this model's symmetric
// (single-phase-equivalent) components fill a per-phase slot.
func setAll(pv pgmmath.PhaseValue, v complex128) pgmmath.PhaseValue {
	for i := range pv {
		pv[i] = v
	}
	return pv
}
