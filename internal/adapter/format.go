package adapter

import (
	"fmt"
	"strings"

	"github.com/tmajors/dapbridge/internal/engine"
)

// maxPreviewItems bounds how many members a structured/indexed preview
// spells out before eliding the rest.
const maxPreviewItems = 8

// formatValue renders a runtime value as its editor-facing preview text.
// Primitives render as their literal form; functions as a synthetic
// signature; structured and indexed values as one level of member previews
// with nested containers abbreviated to a type+size tag. The full closed
// variant set is covered, so this never falls through to reflection-style
// probing.
func formatValue(v engine.Value) string {
	switch v.Kind {
	case engine.KindPrimitive:
		return v.Literal
	case engine.KindFunction:
		return formatFunction(v)
	case engine.KindStructured:
		return formatStructured(v)
	case engine.KindIndexed:
		return formatIndexed(v)
	default:
		return v.Literal
	}
}

func formatFunction(v engine.Value) string {
	name := v.FuncName
	if name == "" {
		name = "(anonymous)"
	}
	if v.Arity == 0 {
		return fmt.Sprintf("function %s() { … }", name)
	}
	return fmt.Sprintf("function %s(%d args) { … }", name, v.Arity)
}

func formatStructured(v engine.Value) string {
	typ := v.Type
	if typ == "" {
		typ = "Object"
	}
	var b strings.Builder
	b.WriteString(typ)
	b.WriteString(" {")
	for i, p := range v.Children {
		if i == maxPreviewItems {
			b.WriteString(", …")
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(previewShallow(p.Value))
	}
	if len(v.Children) == 0 && v.Size > 0 {
		b.WriteString("…")
	}
	b.WriteString("}")
	return b.String()
}

func formatIndexed(v engine.Value) string {
	typ := v.Type
	if typ == "" {
		typ = "Array"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d] [", typ, v.Size)
	for i, p := range v.Children {
		if i == maxPreviewItems {
			b.WriteString(", …")
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(previewShallow(p.Value))
	}
	b.WriteString("]")
	return b.String()
}

// previewShallow renders a member inside a container preview. Containers
// are abbreviated to keep preview size bounded: a nested indexed value
// becomes Type[n], a nested structured value its constructor name.
func previewShallow(v engine.Value) string {
	switch v.Kind {
	case engine.KindPrimitive:
		return v.Literal
	case engine.KindFunction:
		return "function"
	case engine.KindIndexed:
		typ := v.Type
		if typ == "" {
			typ = "Array"
		}
		return fmt.Sprintf("%s[%d]", typ, v.Size)
	case engine.KindStructured:
		if v.Type == "" {
			return "Object"
		}
		return v.Type
	default:
		return v.Literal
	}
}

// formatEvalError maps an engine-reported expression failure to its
// user-facing message. An unresolved identifier always reads "not
// available"; anything else surfaces the failure's own kind and message
// verbatim.
func formatEvalError(e *engine.EvalError) string {
	if e.Unresolved || e.Kind == "ReferenceError" {
		return "not available"
	}
	if e.Kind == "" {
		return e.Message
	}
	return e.Kind + ": " + e.Message
}

// isTruthy applies the engine's truthiness rules to a primitive result.
// Structured values, arrays and functions are always truthy.
func isTruthy(v engine.Value) bool {
	if v.Kind != engine.KindPrimitive {
		return true
	}
	switch v.Literal {
	case "false", "0", "-0", "null", "undefined", "NaN", "", `""`, "''":
		return false
	default:
		return true
	}
}
