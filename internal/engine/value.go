package engine

import (
	"encoding/json"
	"fmt"
)

// Kind classifies a runtime value into the closed set the adapter handles.
// The engine returns loosely-typed structured values; lifting them into a
// tagged variant keeps downstream formatting a total function instead of
// ad hoc type probing.
type Kind int

const (
	KindPrimitive Kind = iota
	KindFunction
	KindStructured
	KindIndexed
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindFunction:
		return "function"
	case KindStructured:
		return "object"
	case KindIndexed:
		return "array"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is an engine-native runtime value lifted into the adapter's model.
//
// Primitive values carry their literal text. Functions carry a name and
// arity and are treated as opaque leaves. Structured and indexed values
// carry a type tag (constructor name), an engine-side object id for lazy
// expansion, a child count, and one level of shallow children for preview
// rendering. Children of children are not populated; previews abbreviate
// them to a type+size tag.
type Value struct {
	Kind     Kind
	Type     string // constructor or primitive type tag
	Literal  string // primitive literal text
	FuncName string // function name, may be empty
	Arity    int    // function parameter count
	ObjectID string // engine handle for structured/indexed expansion
	Size     int    // child count for structured/indexed
	Children []Property
}

// Property is a named child of a structured or indexed value. For indexed
// values the name is the decimal element index.
type Property struct {
	Name  string
	Value Value
}

// EvalError is an engine-reported expression failure.
type EvalError struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Unresolved bool   `json:"unresolved,omitempty"`
}

func (e *EvalError) Error() string {
	if e.Kind == "" {
		return e.Message
	}
	return e.Kind + ": " + e.Message
}

// wireValue is the JSON shape the engine sends for runtime values.
type wireValue struct {
	Kind       string         `json:"kind"`
	Type       string         `json:"type,omitempty"`
	Value      string         `json:"value,omitempty"`
	Name       string         `json:"name,omitempty"`
	Arity      int            `json:"arity,omitempty"`
	ObjectID   string         `json:"objectId,omitempty"`
	Size       int            `json:"size,omitempty"`
	Properties []wireProperty `json:"properties,omitempty"`
}

type wireProperty struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// UnmarshalJSON decodes the engine's wire representation of a value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "primitive", "":
		v.Kind = KindPrimitive
	case "function":
		v.Kind = KindFunction
	case "object":
		v.Kind = KindStructured
	case "array":
		v.Kind = KindIndexed
	default:
		return fmt.Errorf("unknown value kind %q", w.Kind)
	}
	v.Type = w.Type
	v.Literal = w.Value
	v.FuncName = w.Name
	v.Arity = w.Arity
	v.ObjectID = w.ObjectID
	v.Size = w.Size
	v.Children = nil
	for _, p := range w.Properties {
		var child Value
		if err := json.Unmarshal(p.Value, &child); err != nil {
			return fmt.Errorf("property %q: %w", p.Name, err)
		}
		v.Children = append(v.Children, Property{Name: p.Name, Value: child})
	}
	if v.Size == 0 {
		v.Size = len(v.Children)
	}
	return nil
}

// Expandable reports whether the value has engine-side children the editor
// can request on demand.
func (v Value) Expandable() bool {
	return v.Kind == KindStructured || v.Kind == KindIndexed
}

// Constructors used by engine decoders and by tests driving fake engines.

// Primitive returns a primitive value with the given type tag and literal.
func Primitive(typ, literal string) Value {
	return Value{Kind: KindPrimitive, Type: typ, Literal: literal}
}

// Function returns a function value summarized by name and arity.
func Function(name string, arity int) Value {
	return Value{Kind: KindFunction, Type: "function", FuncName: name, Arity: arity}
}

// Object returns a structured value with the given constructor name and
// shallow children.
func Object(typ, objectID string, children ...Property) Value {
	return Value{
		Kind:     KindStructured,
		Type:     typ,
		ObjectID: objectID,
		Size:     len(children),
		Children: children,
	}
}

// Array returns an indexed value with the given type tag and elements.
func Array(typ, objectID string, elems ...Value) Value {
	children := make([]Property, len(elems))
	for i, e := range elems {
		children[i] = Property{Name: fmt.Sprintf("%d", i), Value: e}
	}
	return Value{
		Kind:     KindIndexed,
		Type:     typ,
		ObjectID: objectID,
		Size:     len(elems),
		Children: children,
	}
}
