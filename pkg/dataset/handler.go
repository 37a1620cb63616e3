package dataset

import "fmt"

// ComponentBuffer is one component's flat, pre-allocated output buffer: one
// Element per (scenario, position) pair, plus an IndPtr when the component
// is ragged across scenarios.
type ComponentBuffer struct {
	Name     string
	Elements []Element
	// ElementsPerScenario is -1 for a ragged component; IndPtr is then the
	// authoritative per-scenario offset table.
	ElementsPerScenario int
	IndPtr              []int64
}

// WritableDatasetHandler is C8: the mutable output buffers a calculation
// writes into, keyed by component name and sized from the batch-shape
// inference pass C7 (pkg/dataset.InferShapes) already ran. Buffers are
// owned by the handler for its whole lifetime; everything callers get back
// is a non-owning view into it (spec.md §4.8).
type WritableDatasetHandler struct {
	schema  DatasetSchema
	buffers map[string]*ComponentBuffer
}

// NewWritableDatasetHandler builds an empty handler for the given output
// dataset schema.
func NewWritableDatasetHandler(schema DatasetSchema) *WritableDatasetHandler {
	return &WritableDatasetHandler{schema: schema, buffers: make(map[string]*ComponentBuffer)}
}

// AddComponentInfo allocates the output buffer for one component at the
// given shape (spec.md §4.8 "add_component_info(name, elements_per_scenario,
// total_elements)"), rejecting component names the schema does not know.
func (h *WritableDatasetHandler) AddComponentInfo(name string, shape ComponentShape) error {
	if _, ok := h.schema.Components[name]; !ok {
		return unknownComponentError(name)
	}

	elems := make([]Element, shape.TotalElements)
	for i := range elems {
		elems[i] = Element{}
	}

	h.buffers[name] = &ComponentBuffer{
		Name:                name,
		Elements:            elems,
		ElementsPerScenario: shape.ElementsPerScenario,
		IndPtr:              shape.IndPtr,
	}
	return nil
}

// AdvancePtr returns the addressable slot for element i of component name's
// flat buffer (spec.md §4.8 "typed pointers advance_ptr(base, i)"), a
// pointer a writer can dereference and mutate in place.
func (h *WritableDatasetHandler) AdvancePtr(name string, i int) (*Element, error) {
	buf, ok := h.buffers[name]
	if !ok {
		return nil, unknownComponentError(name)
	}
	if i < 0 || i >= len(buf.Elements) {
		return nil, fmt.Errorf("dataset: index %d out of range for component %q buffer of length %d", i, name, len(buf.Elements))
	}
	return &buf.Elements[i], nil
}

// Scenario returns the slice of component name's buffer belonging to
// scenario index s, honoring the uniform-stride or ragged IndPtr layout
// InferShapes chose.
func (h *WritableDatasetHandler) Scenario(name string, s int) ([]Element, error) {
	buf, ok := h.buffers[name]
	if !ok {
		return nil, unknownComponentError(name)
	}

	if buf.ElementsPerScenario >= 0 {
		start := s * buf.ElementsPerScenario
		end := start + buf.ElementsPerScenario
		if start < 0 || end > len(buf.Elements) {
			return nil, fmt.Errorf("dataset: scenario %d out of range for component %q", s, name)
		}
		return buf.Elements[start:end], nil
	}

	if s < 0 || s+1 >= len(buf.IndPtr) {
		return nil, fmt.Errorf("dataset: scenario %d out of range for component %q", s, name)
	}
	return buf.Elements[buf.IndPtr[s]:buf.IndPtr[s+1]], nil
}

// Buffer exposes the raw component buffer for a writer that wants to walk
// it directly rather than through AdvancePtr/Scenario.
func (h *WritableDatasetHandler) Buffer(name string) (*ComponentBuffer, bool) {
	buf, ok := h.buffers[name]
	return buf, ok
}
