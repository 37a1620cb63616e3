package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridflow-go/gridflow/pkg/tapopt"
)

// TestRankedRegulatorOrder_ChainsAcrossIntervalLine reproduces the exact
// topology a transformer-only-vertex model mis-ranks: source -> T1 -> bus1
// -> (line) -> bus2 -> T2 -> bus3. T2's control side is two transformer-hops
// from the source only once bus1/bus2 are recognized as the same electrical
// node; a model that never contracts line-connected buses would see no edge
// reaching T2 at all and place it in the disconnected group.
func TestRankedRegulatorOrder_ChainsAcrossIntervalLine(t *testing.T) {
	m := &Model{
		busIDs: []int64{0, 1, 2, 3},
		sources: []sourceRecord{
			{id: 1, bus: 0},
		},
		branches: []branchRecord{
			{id: 10, from: 0, to: 1, isTrafo: true}, // T1
			{id: 11, from: 1, to: 2},                // line, bus1 == bus2 electrically
			{id: 12, from: 2, to: 3, isTrafo: true}, // T2
		},
		tapRegulators: []tapRegulatorRecord{
			{id: 20, branchIdx: 0, controlNode: 1}, // regulates T1
			{id: 21, branchIdx: 2, controlNode: 3}, // regulates T2
		},
	}

	order, err := m.rankedRegulatorOrder()
	require.NoError(t, err)
	require.Len(t, order, 2)

	assert.Equal(t, []tapopt.RegulatorRef{{Group: 0, Index: 0}}, order[0])
	assert.Equal(t, []tapopt.RegulatorRef{{Group: 0, Index: 2}}, order[1])
}

// TestRankedRegulatorOrder_TiesWhenEquidistant confirms two regulators the
// same transformer-hop distance from the source land in one group.
func TestRankedRegulatorOrder_TiesWhenEquidistant(t *testing.T) {
	m := &Model{
		busIDs: []int64{0, 1, 2},
		sources: []sourceRecord{
			{id: 1, bus: 0},
		},
		branches: []branchRecord{
			{id: 10, from: 0, to: 1, isTrafo: true},
			{id: 11, from: 0, to: 2, isTrafo: true},
		},
		tapRegulators: []tapRegulatorRecord{
			{id: 20, branchIdx: 0, controlNode: 1},
			{id: 21, branchIdx: 1, controlNode: 2},
		},
	}

	order, err := m.rankedRegulatorOrder()
	require.NoError(t, err)
	require.Len(t, order, 1)
	assert.ElementsMatch(t, []tapopt.RegulatorRef{{Group: 0, Index: 0}, {Group: 0, Index: 1}}, order[0])
}
