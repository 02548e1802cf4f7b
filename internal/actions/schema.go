package actions

import (
	"fmt"
	"sort"
	"strings"
)

// ParamType is the closed vocabulary reported for indexed parameters.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
	TypeUnknown ParamType = "unknown"
)

// SchemaKind identifies a schema node variant.
type SchemaKind int

const (
	KindUnknown SchemaKind = iota
	KindString
	KindNumber
	KindBoolean
	KindArray
	KindObject
	KindOptional
	KindDefault
)

// Field is one named entry of an object schema. Fields keep declaration
// order so introspection and validation are deterministic.
type Field struct {
	Name   string
	Schema *Schema
}

// Schema is an explicit, validation-library-independent description of an
// action's parameters. It is a small closed variant: primitive kinds, array,
// object, plus Optional and WithDefault wrappers around an inner schema.
type Schema struct {
	kind   SchemaKind
	desc   string
	fields []Field // object only
	elem   *Schema // array element or wrapper inner schema
	defVal any     // KindDefault only
}

func String() *Schema  { return &Schema{kind: KindString} }
func Number() *Schema  { return &Schema{kind: KindNumber} }
func Boolean() *Schema { return &Schema{kind: KindBoolean} }
func Unknown() *Schema { return &Schema{kind: KindUnknown} }

// Array describes a homogeneous list. A nil element schema is allowed and
// leaves the element type unconstrained.
func Array(elem *Schema) *Schema { return &Schema{kind: KindArray, elem: elem} }

// Object describes a named-field mapping in declaration order.
func Object(fields ...Field) *Schema { return &Schema{kind: KindObject, fields: fields} }

// F builds one object field.
func F(name string, s *Schema) Field { return Field{Name: name, Schema: s} }

// Optional marks the inner schema as omissible.
func Optional(inner *Schema) *Schema { return &Schema{kind: KindOptional, elem: inner} }

// WithDefault marks the inner schema as omissible with a fallback value.
func WithDefault(inner *Schema, value any) *Schema {
	return &Schema{kind: KindDefault, elem: inner, defVal: value}
}

// Describe attaches human-readable documentation to the node and returns it
// for chaining.
func (s *Schema) Describe(desc string) *Schema {
	s.desc = desc
	return s
}

// Kind returns the node's variant.
func (s *Schema) Kind() SchemaKind {
	if s == nil {
		return KindUnknown
	}
	return s.kind
}

// Fields returns the object fields in declaration order, or nil for
// non-object nodes.
func (s *Schema) Fields() []Field {
	if s == nil || s.kind != KindObject {
		return nil
	}
	return s.fields
}

// innermost unwraps Optional and WithDefault nodes down to the underlying
// type node.
func (s *Schema) innermost() *Schema {
	cur := s
	for cur != nil && (cur.kind == KindOptional || cur.kind == KindDefault) {
		cur = cur.elem
	}
	return cur
}

// ParamType maps the node (through any wrappers) onto the closed reporting
// vocabulary.
func (s *Schema) ParamType() ParamType {
	inner := s.innermost()
	if inner == nil {
		return TypeUnknown
	}
	switch inner.kind {
	case KindString:
		return TypeString
	case KindNumber:
		return TypeNumber
	case KindBoolean:
		return TypeBoolean
	case KindArray:
		return TypeArray
	case KindObject:
		return TypeObject
	default:
		return TypeUnknown
	}
}

// Description returns the node's documentation, falling back to the inner
// schema when a wrapper carries none.
func (s *Schema) Description() string {
	cur := s
	for cur != nil {
		if cur.desc != "" {
			return cur.desc
		}
		if cur.kind != KindOptional && cur.kind != KindDefault {
			break
		}
		cur = cur.elem
	}
	return ""
}

// optional reports whether the value may be omitted: an Optional wrapper or
// a default above the type node.
func (s *Schema) optional() bool {
	return s != nil && (s.kind == KindOptional || s.kind == KindDefault)
}

// defaultValue returns the outermost default along the wrapper chain.
func (s *Schema) defaultValue() (any, bool) {
	cur := s
	for cur != nil && (cur.kind == KindOptional || cur.kind == KindDefault) {
		if cur.kind == KindDefault {
			return cur.defVal, true
		}
		cur = cur.elem
	}
	return nil, false
}

// Validate checks params against an object schema and returns a copy with
// defaults applied. Non-object schemas accept any input unchanged. Extra
// keys not named by the schema pass through untouched.
func (s *Schema) Validate(params map[string]any) (map[string]any, error) {
	inner := s.innermost()
	if inner == nil || inner.kind != KindObject {
		return params, nil
	}

	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}

	var missing []string
	for _, f := range inner.fields {
		v, present := out[f.Name]
		if !present {
			if dv, ok := f.Schema.defaultValue(); ok {
				out[f.Name] = dv
				continue
			}
			if f.Schema.optional() {
				continue
			}
			missing = append(missing, f.Name)
			continue
		}
		if err := checkValue(f.Name, f.Schema.ParamType(), v); err != nil {
			return nil, err
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required parameter(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func checkValue(name string, t ParamType, v any) error {
	if v == nil {
		return fmt.Errorf("parameter %q must not be null", name)
	}
	switch t {
	case TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("parameter %q must be a string", name)
		}
	case TypeNumber:
		switch v.(type) {
		case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		default:
			return fmt.Errorf("parameter %q must be a number", name)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("parameter %q must be a boolean", name)
		}
	case TypeArray:
		switch v.(type) {
		case []any, []string, []float64, []int, []map[string]any:
		default:
			return fmt.Errorf("parameter %q must be an array", name)
		}
	case TypeObject:
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("parameter %q must be an object", name)
		}
	}
	return nil
}
