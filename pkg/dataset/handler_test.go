package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridflow-go/gridflow/pkg/dataset"
)

func outputSchema() dataset.DatasetSchema {
	return dataset.DatasetSchema{
		Name: "test_output",
		Components: map[string]dataset.ComponentSchema{
			"node": {Name: "node", Attributes: []dataset.AttrSpec{
				{Name: "id", Type: dataset.ID},
				{Name: "u", Type: dataset.Float64},
			}},
		},
	}
}

func TestWritableDatasetHandler_UniformScenarioSlicing(t *testing.T) {
	h := dataset.NewWritableDatasetHandler(outputSchema())
	require.NoError(t, h.AddComponentInfo("node", dataset.ComponentShape{ElementsPerScenario: 2, TotalElements: 4}))

	for i := 0; i < 4; i++ {
		ptr, err := h.AdvancePtr("node", i)
		require.NoError(t, err)
		(*ptr)["u"] = float64(i)
	}

	scenario1, err := h.Scenario("node", 1)
	require.NoError(t, err)
	require.Len(t, scenario1, 2)
	assert.Equal(t, 2.0, scenario1[0]["u"])
	assert.Equal(t, 3.0, scenario1[1]["u"])
}

func TestWritableDatasetHandler_RaggedScenarioSlicing(t *testing.T) {
	h := dataset.NewWritableDatasetHandler(outputSchema())
	require.NoError(t, h.AddComponentInfo("node", dataset.ComponentShape{
		ElementsPerScenario: -1,
		TotalElements:       3,
		IndPtr:              []int64{0, 1, 3},
	}))

	scenario0, err := h.Scenario("node", 0)
	require.NoError(t, err)
	assert.Len(t, scenario0, 1)

	scenario1, err := h.Scenario("node", 1)
	require.NoError(t, err)
	assert.Len(t, scenario1, 2)
}

func TestWritableDatasetHandler_UnknownComponent_IsRejected(t *testing.T) {
	h := dataset.NewWritableDatasetHandler(outputSchema())
	err := h.AddComponentInfo("not_a_component", dataset.ComponentShape{TotalElements: 1})
	assert.Error(t, err)
}
