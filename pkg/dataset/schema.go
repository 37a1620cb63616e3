// Package dataset implements C7 (the self-describing dataset deserializer)
// and C8 (the writable dataset handler solvers read/write against). The
// decoder walks a generic JSON/"A"-tree the same line-by-line, fail-fast way
// the teacher's pkg/netlist.Parse walks a netlist: one pass, wrap every
// violation with where it happened, return immediately (spec.md §4.7).
package dataset

import "fmt"

// AttrType is the scalar type a schema declares for one attribute
// (spec.md §4.7 "declared scalar type").
type AttrType int

const (
	Int32 AttrType = iota
	Int8
	Float64
	Float64x3
	ID
)

func (t AttrType) String() string {
	switch t {
	case Int32:
		return "int32"
	case Int8:
		return "int8"
	case Float64:
		return "float64"
	case Float64x3:
		return "float64x3"
	case ID:
		return "id"
	default:
		return "unknown"
	}
}

// AttrSpec names one attribute and its scalar type, in the order used for
// positional (list-form) elements.
type AttrSpec struct {
	Name string
	Type AttrType
}

// ComponentSchema is the ordered attribute list for one component type.
type ComponentSchema struct {
	Name       string
	Attributes []AttrSpec
}

func (c ComponentSchema) indexOf(attrName string) (int, bool) {
	for i, a := range c.Attributes {
		if a.Name == attrName {
			return i, true
		}
	}
	return 0, false
}

// DatasetSchema is a named collection of component schemas, resolved from
// the root "type" key (spec.md §4.7 "resolves via the meta-data registry").
type DatasetSchema struct {
	Name       string
	Components map[string]ComponentSchema
}

// Registry resolves a dataset "type" string to its DatasetSchema. Analogous
// to the teacher's device.Registry mapping a netlist element type letter to
// a constructor, generalized to map a dataset type name to its component
// catalogue.
type Registry struct {
	schemas map[string]DatasetSchema
}

// NewRegistry builds an empty registry; callers register every dataset
// schema their deployment supports before decoding.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]DatasetSchema)}
}

// Register adds or replaces a dataset schema under its own Name.
func (r *Registry) Register(schema DatasetSchema) {
	r.schemas[schema.Name] = schema
}

// Lookup resolves a dataset type name to its schema.
func (r *Registry) Lookup(name string) (DatasetSchema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// StandardRegistry returns a registry pre-populated with the component
// schemas this core's solvers consume directly (spec.md §3's Source,
// load/generator, and tap-regulator value objects), enough to decode the
// input/update datasets pkg/model builds Model.New and UpdateComponent from.
func StandardRegistry() *Registry {
	r := NewRegistry()
	r.Register(DatasetSchema{
		Name: "input",
		Components: map[string]ComponentSchema{
			"node": {Name: "node", Attributes: []AttrSpec{
				{Name: "id", Type: ID},
			}},
			"source": {Name: "source", Attributes: []AttrSpec{
				{Name: "id", Type: ID},
				{Name: "node", Type: ID},
				{Name: "status", Type: Int8},
				{Name: "u_ref", Type: Float64},
				{Name: "u_ref_angle", Type: Float64},
				{Name: "sk", Type: Float64},
				{Name: "rx_ratio", Type: Float64},
			}},
			"sym_load": {Name: "sym_load", Attributes: []AttrSpec{
				{Name: "id", Type: ID},
				{Name: "node", Type: ID},
				{Name: "status", Type: Int8},
				{Name: "type", Type: Int8},
				{Name: "p_specified", Type: Float64},
				{Name: "q_specified", Type: Float64},
			}},
			"asym_load": {Name: "asym_load", Attributes: []AttrSpec{
				{Name: "id", Type: ID},
				{Name: "node", Type: ID},
				{Name: "status", Type: Int8},
				{Name: "type", Type: Int8},
				{Name: "p_specified", Type: Float64x3},
				{Name: "q_specified", Type: Float64x3},
			}},
			"line": {Name: "line", Attributes: []AttrSpec{
				{Name: "id", Type: ID},
				{Name: "from_node", Type: ID},
				{Name: "to_node", Type: ID},
				{Name: "from_status", Type: Int8},
				{Name: "to_status", Type: Int8},
				{Name: "r1", Type: Float64},
				{Name: "x1", Type: Float64},
				{Name: "c1", Type: Float64},
			}},
			"transformer": {Name: "transformer", Attributes: []AttrSpec{
				{Name: "id", Type: ID},
				{Name: "from_node", Type: ID},
				{Name: "to_node", Type: ID},
				{Name: "from_status", Type: Int8},
				{Name: "to_status", Type: Int8},
				{Name: "tap_pos", Type: Int32},
				{Name: "tap_min", Type: Int32},
				{Name: "tap_max", Type: Int32},
				{Name: "tap_direction", Type: Int8},
			}},
			"transformer_tap_regulator": {Name: "transformer_tap_regulator", Attributes: []AttrSpec{
				{Name: "id", Type: ID},
				{Name: "regulated_object", Type: ID},
				{Name: "status", Type: Int8},
				{Name: "u_set", Type: Float64},
				{Name: "u_band", Type: Float64},
				{Name: "z_comp_re", Type: Float64},
				{Name: "z_comp_im", Type: Float64},
			}},
		},
	})
	return r
}

// unknownComponentError is a shared constructor so handler.go's call sites
// stay one-liners.
func unknownComponentError(name string) error {
	return fmt.Errorf("unknown component type %q", name)
}
