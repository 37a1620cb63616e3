package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridflow-go/gridflow/pkg/dataset"
)

func TestInferShapes_UniformAcrossScenarios(t *testing.T) {
	ds := &dataset.Dataset{
		Scenarios: []dataset.Scenario{
			{"sym_load": []dataset.Element{{}, {}}},
			{"sym_load": []dataset.Element{{}, {}}},
		},
	}

	shapes := dataset.InferShapes(ds)
	require.Contains(t, shapes, "sym_load")
	assert.Equal(t, 2, shapes["sym_load"].ElementsPerScenario)
	assert.Equal(t, 4, shapes["sym_load"].TotalElements)
	assert.Nil(t, shapes["sym_load"].IndPtr)
}

func TestInferShapes_ComponentAbsentFromScenario_CountsAsZero(t *testing.T) {
	ds := &dataset.Dataset{
		Scenarios: []dataset.Scenario{
			{"sym_load": []dataset.Element{{}, {}}},
			{}, // sym_load key entirely absent, not an empty list
			{"sym_load": []dataset.Element{{}, {}}},
		},
	}

	shapes := dataset.InferShapes(ds)
	shape := shapes["sym_load"]
	assert.Equal(t, -1, shape.ElementsPerScenario)
	assert.Equal(t, 4, shape.TotalElements)
	assert.Equal(t, []int64{0, 2, 2, 4}, shape.IndPtr)
}

func TestInferShapes_RaggedProducesIndPtr(t *testing.T) {
	ds := &dataset.Dataset{
		Scenarios: []dataset.Scenario{
			{"sym_load": []dataset.Element{{}}},
			{"sym_load": []dataset.Element{{}, {}, {}}},
		},
	}

	shapes := dataset.InferShapes(ds)
	shape := shapes["sym_load"]
	assert.Equal(t, -1, shape.ElementsPerScenario)
	assert.Equal(t, 4, shape.TotalElements)
	assert.Equal(t, []int64{0, 1, 4}, shape.IndPtr)
}
