package model

import (
	"fmt"

	"github.com/gridflow-go/gridflow/pkg/pfsolver"
	"github.com/gridflow-go/gridflow/pkg/tapopt"
	"github.com/gridflow-go/gridflow/pkg/trafograph"
)

// OptimizeTaps runs pkg/tapopt's discrete-continuous control loop over this
// model's tap regulators, using calcOptions for every inner calculation
// (spec.md §6 "Model::optimize_tap_positions"). The model's own tap
// positions are left exactly as they were -- the optimizer restores them
// unconditionally. The returned Output holds the bus voltages of the final
// calculation; it does not carry the tap positions that produced them, and
// UpdateComponent ignores transformer elements, so the optimum is not
// committed to the model.
func (m *Model) OptimizeTaps(calcOptions Options, tapOptions tapopt.Options) (*pfsolver.Output, error) {
	order, err := m.rankedRegulatorOrder()
	if err != nil {
		return nil, err
	}

	adapter := &tapAdapter{model: m, calcOptions: calcOptions}
	opt := tapopt.New(adapter, adapter, order, tapOptions)

	result, err := opt.Optimize(calcOptions.Method)
	if err != nil {
		return nil, err
	}
	return result.(*pfsolver.Output), nil
}

// rankedRegulatorOrder builds the C5 electrical-distance ranking per
// spec.md §3: one vertex per electrical node, one edge per transformer from
// its source-nearer side to its tap side, is_source marking every node an
// actual voltage source energizes. Buses joined only by lines (no
// intervening transformer) are contracted into a single electrical-node
// vertex first (pkg/model.electricalIslands), so two regulated transformers
// separated by a plain line still chain correctly -- the downstream one's
// "from" side is the same electrical node as the upstream one's "to" side,
// not a disconnected vertex with no edge reaching it (see DESIGN.md).
func (m *Model) rankedRegulatorOrder() ([][]tapopt.RegulatorRef, error) {
	islands := m.electricalIslands()

	sourceIsland := make(map[int]bool, len(m.sources))
	for _, s := range m.sources {
		sourceIsland[islands.find(s.bus)] = true
	}

	var vertices []trafograph.TransformerRef
	isSource := make(map[trafograph.TransformerRef]bool)
	nodeRefs := make(map[string]trafograph.TransformerRef)
	seen := make(map[int]bool, len(m.busIDs))
	for bus := range m.busIDs {
		root := islands.find(bus)
		if seen[root] {
			continue
		}
		seen[root] = true

		ref := trafograph.TransformerRef{Group: 0, Index: root}
		vertices = append(vertices, ref)
		nodeRefs[vertexKey(ref)] = ref
		if sourceIsland[root] {
			isSource[ref] = true
		}
	}

	var edges []trafograph.Edge
	for _, b := range m.branches {
		if !b.isTrafo {
			continue
		}
		edges = append(edges, trafograph.Edge{
			From:   trafograph.TransformerRef{Group: 0, Index: islands.find(b.from)},
			To:     trafograph.TransformerRef{Group: 0, Index: islands.find(b.to)},
			Weight: 1,
		})
	}

	graph, err := trafograph.New(vertices, isSource, edges)
	if err != nil {
		return nil, err
	}
	nodeWeights, err := graph.EdgeWeights(nodeRefs)
	if err != nil {
		return nil, err
	}

	distanceByIsland := make(map[int]int64, len(nodeWeights))
	for _, wt := range nodeWeights {
		distanceByIsland[wt.Ref.Index] = wt.Weight
	}

	regulatorWeights := make([]trafograph.WeightedTransformer, len(m.tapRegulators))
	for i, reg := range m.tapRegulators {
		regulatorWeights[i] = trafograph.WeightedTransformer{
			Ref:    trafograph.TransformerRef{Group: 0, Index: reg.branchIdx},
			Weight: distanceByIsland[islands.find(reg.controlNode)],
		}
	}

	groups := trafograph.RankTransformers(regulatorWeights)
	order := make([][]tapopt.RegulatorRef, len(groups))
	for i, group := range groups {
		order[i] = make([]tapopt.RegulatorRef, len(group))
		for j, ref := range group {
			order[i][j] = tapopt.RegulatorRef{Group: ref.Group, Index: ref.Index}
		}
	}
	return order, nil
}

// unionFind is a minimal disjoint-set over bus indices, used only to
// contract line-connected buses into one electrical-node vertex before C5
// ranking runs.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra != rb {
		uf.parent[ra] = rb
	}
}

// electricalIslands unions every pair of buses joined directly by a line
// (never a transformer), so the result's find(bus) identifies which
// electrical node a bus belongs to for C5 ranking purposes.
func (m *Model) electricalIslands() *unionFind {
	uf := newUnionFind(len(m.busIDs))
	for _, b := range m.branches {
		if b.isTrafo {
			continue
		}
		uf.union(b.from, b.to)
	}
	return uf
}

// vertexKey reproduces trafograph's unexported vertex-id format so this
// package can index the map EdgeWeights expects.
func vertexKey(ref trafograph.TransformerRef) string {
	return fmt.Sprintf("%d:%d", ref.Group, ref.Index)
}

// tapAdapter implements tapopt.Calculator and tapopt.StateAccessor over a
// *Model, the narrow collaborator boundary pkg/tapopt expects rather than a
// concrete dependency on this package (spec.md §2, §9).
type tapAdapter struct {
	model       *Model
	calcOptions Options
}

func (a *tapAdapter) Calculate(method pfsolver.Method) (tapopt.Result, error) {
	opts := a.calcOptions
	opts.Method = method
	output, err := a.model.CalculateRaw(opts)
	if err != nil {
		return nil, err
	}
	return output, nil
}

func (a *tapAdapter) Descriptor(ref tapopt.RegulatorRef) tapopt.Descriptor {
	reg := a.model.tapRegulatorFor(ref)
	br := a.model.branches[reg.branchIdx]
	return tapopt.Descriptor{
		TapMin: br.tapMin, TapMax: br.tapMax, TapDirection: br.tapDirection,
		USet: reg.uSet, UBand: reg.uBand, ZComp: reg.zComp,
	}
}

func (a *tapAdapter) TapPos(ref tapopt.RegulatorRef) int {
	reg := a.model.tapRegulatorFor(ref)
	return a.model.branches[reg.branchIdx].tapPos
}

func (a *tapAdapter) Measure(result tapopt.Result, ref tapopt.RegulatorRef) tapopt.Measurement {
	output := result.(*pfsolver.Output)
	reg := a.model.tapRegulatorFor(ref)
	br := a.model.branches[reg.branchIdx]

	uControl := output.U[br.to][0]
	uFrom := output.U[br.from][0]
	iBranch := (uFrom - uControl) * br.y

	return tapopt.Measurement{
		TapSideConnected: true, ControlSideConnected: true,
		UControlSide: uControl, IControlSideBranch: iBranch,
	}
}

func (a *tapAdapter) ApplyTapPositions(updates map[tapopt.RegulatorRef]int) error {
	for ref, pos := range updates {
		reg := a.model.tapRegulatorFor(ref)
		br := &a.model.branches[reg.branchIdx]
		br.tapPos = pos
		br.y = applyTapRatio(br.nominalY, pos, br.tapDirection)
	}
	return a.model.rebuildTopology()
}

// tapRegulatorFor finds the regulator record controlling the given branch
// index, matching tapopt.RegulatorRef.Index to a branch.
func (m *Model) tapRegulatorFor(ref tapopt.RegulatorRef) tapRegulatorRecord {
	for _, reg := range m.tapRegulators {
		if reg.branchIdx == ref.Index {
			return reg
		}
	}
	return tapRegulatorRecord{}
}
