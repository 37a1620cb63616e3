package dataset

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gridflow-go/gridflow/internal/pgmerr"
)

// Element is one decoded component instance: attribute name to value.
// A missing key or an explicit nil value both mean "unset" (spec.md §4.7
// "A leaf nil in any form leaves the attribute unset"). Float64x3 values are
// stored as [3]interface{}, one nil-or-float64 slot per phase.
type Element map[string]interface{}

// Scenario maps component name to its decoded elements.
type Scenario map[string][]Element

// Dataset is the fully decoded result of C7: the root metadata plus every
// scenario (a single-element slice when !IsBatch).
type Dataset struct {
	Version string
	Type    string
	IsBatch bool
	// Attributes is the root-level positional attribute layout per
	// component, used to decode list-form elements.
	Attributes map[string][]string
	Scenarios  []Scenario
}

// pathStack tracks (root-key, scenario-index, component-key, element-index,
// attribute-key) as decoding descends, so any violation can be reported with
// its exact <root>/<scenario>/<component>/<element>/<attribute> path
// (spec.md §4.7 "Implementers MUST maintain a stack"). Each push returns a
// pop func, used the same way the teacher scopes bufio.Scanner lines: enter,
// work, leave.
type pathStack struct {
	segments []string
}

func (p *pathStack) push(segment string) func() {
	p.segments = append(p.segments, segment)
	n := len(p.segments)
	return func() { p.segments = p.segments[:n-1] }
}

func (p *pathStack) path() string {
	return strings.Join(p.segments, "/")
}

func (p *pathStack) errorf(format string, args ...interface{}) error {
	return pgmerr.New(pgmerr.SerializationError, format, args...).WithPath(p.path())
}

// DecodeJSON converts a UTF-8 JSON document to the internal tree form and
// decodes it, matching spec.md §4.7's "first losslessly converted to A"
// for the JSON input variant.
func DecodeJSON(raw []byte, registry *Registry) (*Dataset, error) {
	var root interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, pgmerr.Wrap(pgmerr.SerializationError, err, "invalid JSON document")
	}
	return Decode(root, registry)
}

// Decode walks an already-parsed generic tree (as produced by
// encoding/json.Unmarshal, or supplied directly for the binary "A" form)
// and validates it against registry, producing a Dataset or a
// pgmerr.SerializationError carrying the exact violation path.
//
// Byte-level decoding of the binary "A" dictionary format itself is out of
// scope here (see DESIGN.md); this accepts its already-parsed tree form,
// which is the one place this core's scope is narrower than the full
// schema it validates.
func Decode(root interface{}, registry *Registry) (*Dataset, error) {
	stack := &pathStack{}

	rootMap, ok := root.(map[string]interface{})
	if !ok {
		return nil, stack.errorf("root must be a dictionary")
	}

	version, _ := rootMap["version"].(string)

	typeName, ok := rootMap["type"].(string)
	if !ok {
		return nil, stack.errorf("root key %q must be a string", "type")
	}
	schema, ok := registry.Lookup(typeName)
	if !ok {
		return nil, stack.errorf("unknown dataset type %q", typeName)
	}

	isBatch, _ := rootMap["is_batch"].(bool)

	attributes, err := decodeAttributes(rootMap["attributes"], schema, stack)
	if err != nil {
		return nil, err
	}

	pop := stack.push("data")
	scenarios, err := decodeData(rootMap["data"], isBatch, schema, attributes, stack)
	pop()
	if err != nil {
		return nil, err
	}

	return &Dataset{
		Version:    version,
		Type:       typeName,
		IsBatch:    isBatch,
		Attributes: attributes,
		Scenarios:  scenarios,
	}, nil
}

// decodeAttributes validates and flattens the root "attributes" dictionary:
// component name -> ordered attribute name list, used later to decode
// list-form elements positionally (spec.md §4.7).
func decodeAttributes(raw interface{}, schema DatasetSchema, stack *pathStack) (map[string][]string, error) {
	pop := stack.push("attributes")
	defer pop()

	result := make(map[string][]string)
	if raw == nil {
		return result, nil
	}

	attrMap, ok := raw.(map[string]interface{})
	if !ok {
		return nil, stack.errorf("attributes must be a dictionary")
	}

	for component, rawNames := range attrMap {
		if _, ok := schema.Components[component]; !ok {
			return nil, stack.errorf("unknown component %q in attributes", component)
		}
		namesList, ok := rawNames.([]interface{})
		if !ok {
			return nil, stack.errorf("attributes[%q] must be a list", component)
		}
		names := make([]string, len(namesList))
		for i, n := range namesList {
			name, ok := n.(string)
			if !ok {
				return nil, stack.errorf("attributes[%q][%d] must be a string", component, i)
			}
			names[i] = name
		}
		result[component] = names
	}
	return result, nil
}

// decodeData decodes the root "data" value: a single scenario dictionary,
// or (is_batch) an ordered list of them.
func decodeData(raw interface{}, isBatch bool, schema DatasetSchema, attributes map[string][]string, stack *pathStack) ([]Scenario, error) {
	if !isBatch {
		scenario, err := decodeScenario(raw, schema, attributes, stack)
		if err != nil {
			return nil, err
		}
		return []Scenario{scenario}, nil
	}

	list, ok := raw.([]interface{})
	if !ok {
		return nil, stack.errorf("data must be a list when is_batch is true")
	}

	scenarios := make([]Scenario, len(list))
	for i, rawScenario := range list {
		pop := stack.push(fmt.Sprintf("%d", i))
		scenario, err := decodeScenario(rawScenario, schema, attributes, stack)
		pop()
		if err != nil {
			return nil, err
		}
		scenarios[i] = scenario
	}
	return scenarios, nil
}

// decodeScenario decodes one scenario dictionary: component name to its
// element list.
func decodeScenario(raw interface{}, schema DatasetSchema, attributes map[string][]string, stack *pathStack) (Scenario, error) {
	sceneMap, ok := raw.(map[string]interface{})
	if !ok {
		return nil, stack.errorf("scenario must be a dictionary")
	}

	scenario := make(Scenario, len(sceneMap))
	for component, rawElements := range sceneMap {
		compSchema, ok := schema.Components[component]
		if !ok {
			return nil, stack.errorf("unknown component %q", component)
		}

		pop := stack.push(component)
		elements, err := decodeElements(rawElements, compSchema, attributes[component], stack)
		pop()
		if err != nil {
			return nil, err
		}
		scenario[component] = elements
	}
	return scenario, nil
}

// decodeElements decodes the element list for one component within one
// scenario.
func decodeElements(raw interface{}, compSchema ComponentSchema, positional []string, stack *pathStack) ([]Element, error) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, stack.errorf("component %q must be a list of elements", compSchema.Name)
	}

	elements := make([]Element, len(list))
	for i, rawElement := range list {
		pop := stack.push(fmt.Sprintf("%d", i))
		element, err := decodeElement(rawElement, compSchema, positional, stack)
		pop()
		if err != nil {
			return nil, err
		}
		elements[i] = element
	}
	return elements, nil
}

// decodeElement decodes one element, positional (list) or keyed
// (dictionary) form (spec.md §4.7).
func decodeElement(raw interface{}, compSchema ComponentSchema, positional []string, stack *pathStack) (Element, error) {
	switch v := raw.(type) {
	case []interface{}:
		return decodePositionalElement(v, compSchema, positional, stack)
	case map[string]interface{}:
		return decodeKeyedElement(v, compSchema, stack)
	case nil:
		return Element{}, nil
	default:
		return nil, stack.errorf("element must be a list or a dictionary")
	}
}

func decodePositionalElement(values []interface{}, compSchema ComponentSchema, positional []string, stack *pathStack) (Element, error) {
	if positional == nil {
		return nil, stack.errorf("component %q has no positional attribute layout declared", compSchema.Name)
	}
	if len(values) != len(positional) {
		return nil, stack.errorf("expected %d positional values for component %q, got %d", len(positional), compSchema.Name, len(values))
	}

	element := make(Element, len(values))
	for i, raw := range values {
		attrName := positional[i]
		attrIdx, ok := compSchema.indexOf(attrName)
		if !ok {
			return nil, stack.errorf("attribute %q is not part of component %q's schema", attrName, compSchema.Name)
		}
		pop := stack.push(attrName)
		value, err := decodeAttrValue(raw, compSchema.Attributes[attrIdx].Type, stack)
		pop()
		if err != nil {
			return nil, err
		}
		if value != nil {
			element[attrName] = value
		}
	}
	return element, nil
}

func decodeKeyedElement(raw map[string]interface{}, compSchema ComponentSchema, stack *pathStack) (Element, error) {
	element := make(Element, len(raw))
	for key, rawValue := range raw {
		idx, ok := compSchema.indexOf(key)
		if !ok {
			// Unknown keys are silently ignored for forward compatibility.
			continue
		}
		pop := stack.push(key)
		value, err := decodeAttrValue(rawValue, compSchema.Attributes[idx].Type, stack)
		pop()
		if err != nil {
			return nil, err
		}
		if value != nil {
			element[key] = value
		}
	}
	return element, nil
}

// decodeAttrValue decodes one scalar attribute value against its declared
// type. A nil leaf leaves the attribute unset, returned here as a nil
// interface{} the caller skips assigning.
func decodeAttrValue(raw interface{}, attrType AttrType, stack *pathStack) (interface{}, error) {
	if raw == nil {
		return nil, nil
	}

	switch attrType {
	case Int32, Int8, ID:
		n, ok := asInt(raw)
		if !ok {
			return nil, stack.errorf("expected an integer for a %s attribute", attrType)
		}
		return n, nil
	case Float64:
		f, ok := asFloat(raw)
		if !ok {
			return nil, stack.errorf("expected a number for a %s attribute", attrType)
		}
		return f, nil
	case Float64x3:
		list, ok := raw.([]interface{})
		if !ok || len(list) != 3 {
			return nil, stack.errorf("expected a 3-element list for a %s attribute", attrType)
		}
		var phases [3]interface{}
		for i, v := range list {
			if v == nil {
				continue
			}
			f, ok := asFloat(v)
			if !ok {
				return nil, stack.errorf("expected a number in phase %d of a %s attribute", i, attrType)
			}
			phases[i] = f
		}
		return phases, nil
	default:
		return nil, stack.errorf("unhandled attribute type %s", attrType)
	}
}

func asInt(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func asFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
