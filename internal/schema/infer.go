package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// SchemaURI is stamped on the root of every inferred schema
const SchemaURI = "http://json-schema.org/schema#"

// Infer builds the minimal schema that every given value satisfies. Values are
// the generic trees produced by a Parser: map[string]any, []any, string,
// json.Number, float64, bool and nil.
func Infer(values ...any) (map[string]any, error) {
	n := &node{}
	for _, v := range values {
		if err := n.add(v); err != nil {
			return nil, err
		}
	}
	out := n.schema()
	out["$schema"] = SchemaURI
	return out, nil
}

// node accumulates observations made at a single position of the document.
type node struct {
	null    bool
	boolean bool
	str     bool
	number  bool
	float   bool // at least one non-integral number seen
	object  *objectNode
	array   *arrayNode
}

type objectNode struct {
	props    map[string]*node
	required map[string]bool // nil until the first object is seen
}

type arrayNode struct {
	items *node // nil while only empty arrays were seen
}

func (n *node) add(v any) error {
	switch val := v.(type) {
	case nil:
		n.null = true
	case bool:
		n.boolean = true
	case string:
		n.str = true
	case json.Number:
		n.number = true
		if strings.ContainsAny(val.String(), ".eE") {
			n.float = true
		}
	case float64:
		n.number = true
		if math.Trunc(val) != val {
			n.float = true
		}
	case int, int64:
		n.number = true
	case map[string]any:
		if n.object == nil {
			n.object = &objectNode{props: map[string]*node{}}
		}
		return n.object.add(val)
	case []any:
		if n.array == nil {
			n.array = &arrayNode{}
		}
		for _, item := range val {
			if n.array.items == nil {
				n.array.items = &node{}
			}
			if err := n.array.items.add(item); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("cannot infer schema for %T", v)
	}
	return nil
}

func (o *objectNode) add(m map[string]any) error {
	for key, value := range m {
		child, ok := o.props[key]
		if !ok {
			child = &node{}
			o.props[key] = child
		}
		if err := child.add(value); err != nil {
			return err
		}
	}

	if o.required == nil {
		o.required = make(map[string]bool, len(m))
		for key := range m {
			o.required[key] = true
		}
		return nil
	}
	for key := range o.required {
		if _, ok := m[key]; !ok {
			delete(o.required, key)
		}
	}
	return nil
}

// schema renders the node. Scalar types collapse into a single "type" entry;
// when containers are mixed with anything else the alternatives go to "anyOf".
func (n *node) schema() map[string]any {
	var types []string
	if n.null {
		types = append(types, "null")
	}
	if n.boolean {
		types = append(types, "boolean")
	}
	if n.number {
		if n.float {
			types = append(types, "number")
		} else {
			types = append(types, "integer")
		}
	}
	if n.str {
		types = append(types, "string")
	}

	var alternatives []map[string]any
	switch len(types) {
	case 0:
	case 1:
		alternatives = append(alternatives, map[string]any{"type": types[0]})
	default:
		sort.Strings(types)
		list := make([]any, len(types))
		for i, t := range types {
			list[i] = t
		}
		alternatives = append(alternatives, map[string]any{"type": list})
	}
	if n.array != nil {
		alternatives = append(alternatives, n.array.schema())
	}
	if n.object != nil {
		alternatives = append(alternatives, n.object.schema())
	}

	switch len(alternatives) {
	case 0:
		return map[string]any{}
	case 1:
		return alternatives[0]
	}
	anyOf := make([]any, len(alternatives))
	for i, alt := range alternatives {
		anyOf[i] = alt
	}
	return map[string]any{"anyOf": anyOf}
}

func (a *arrayNode) schema() map[string]any {
	out := map[string]any{"type": "array"}
	if a.items != nil {
		out["items"] = a.items.schema()
	}
	return out
}

func (o *objectNode) schema() map[string]any {
	out := map[string]any{"type": "object"}
	if len(o.props) > 0 {
		props := make(map[string]any, len(o.props))
		for key, child := range o.props {
			props[key] = child.schema()
		}
		out["properties"] = props
	}
	if len(o.required) > 0 {
		keys := make([]string, 0, len(o.required))
		for key := range o.required {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		required := make([]any, len(keys))
		for i, key := range keys {
			required[i] = key
		}
		out["required"] = required
	}
	return out
}
