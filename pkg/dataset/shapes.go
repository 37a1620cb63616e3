package dataset

// ComponentShape is the inferred per-component batch layout: either
// uniform (every scenario has the same element count) or ragged, in which
// case IndPtr gives the cumulative offsets a caller needs to slice the flat
// buffer back into per-scenario runs (spec.md §4.7 "Batch-shape inference
// pass").
type ComponentShape struct {
	// ElementsPerScenario is -1 for a ragged component.
	ElementsPerScenario int
	TotalElements       int
	IndPtr              []int64
}

// InferShapes computes, for every component appearing in at least one
// scenario, whether its element count is uniform across scenarios or
// ragged, matching spec.md §4.7 steps 1-2.
func InferShapes(ds *Dataset) map[string]ComponentShape {
	components := make(map[string]bool)
	for _, scenario := range ds.Scenarios {
		for component := range scenario {
			components[component] = true
		}
	}

	counts := make(map[string][]int, len(components))
	for component := range components {
		perScenario := make([]int, len(ds.Scenarios))
		for s, scenario := range ds.Scenarios {
			perScenario[s] = len(scenario[component])
		}
		counts[component] = perScenario
	}

	shapes := make(map[string]ComponentShape, len(counts))
	for component, perScenario := range counts {
		shapes[component] = shapeFromCounts(perScenario)
	}
	return shapes
}

func shapeFromCounts(perScenario []int) ComponentShape {
	uniform := true
	total := 0
	for i, c := range perScenario {
		total += c
		if i > 0 && c != perScenario[0] {
			uniform = false
		}
	}

	if uniform {
		elementsPerScenario := 0
		if len(perScenario) > 0 {
			elementsPerScenario = perScenario[0]
		}
		return ComponentShape{ElementsPerScenario: elementsPerScenario, TotalElements: total}
	}

	indptr := make([]int64, len(perScenario)+1)
	cursor := int64(0)
	for i, c := range perScenario {
		indptr[i] = cursor
		cursor += int64(c)
	}
	indptr[len(perScenario)] = cursor

	return ComponentShape{ElementsPerScenario: -1, TotalElements: total, IndPtr: indptr}
}
