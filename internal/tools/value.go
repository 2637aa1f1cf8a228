package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a tagged union for dynamically typed tool arguments. Models emit
// arbitrary JSON; Value keeps it typed until dispatch-time validation
// decides whether a call is acceptable.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

// Constructors.

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array wraps a slice of values.
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// Object wraps a map of values.
func Object(fields map[string]Value) Value { return Value{kind: KindObject, obj: fields} }

// FromInterface converts a decoded-JSON value into a Value. Unknown Go
// types degrade to their string representation rather than failing.
func FromInterface(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	case string:
		return String(t)
	case []interface{}:
		items := make([]Value, 0, len(t))
		for _, e := range t {
			items = append(items, FromInterface(e))
		}
		return Array(items...)
	case map[string]interface{}:
		fields := make(map[string]Value, len(t))
		for k, e := range t {
			fields[k] = FromInterface(e)
		}
		return Object(fields)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// Kind returns the dynamic type tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean value and whether the kind matched.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsNumber returns the numeric value and whether the kind matched.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.n, true
}

// AsInt returns the value truncated to int and whether the kind matched.
func (v Value) AsInt() (int, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return int(v.n), true
}

// AsString returns the string value and whether the kind matched.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsArray returns the array elements and whether the kind matched.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// AsObject returns the object fields and whether the kind matched.
func (v Value) AsObject() (map[string]Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

// Interface converts back to the generic JSON representation.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]interface{}, 0, len(v.arr))
		for _, e := range v.arr {
			out = append(out, e.Interface())
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// ParseScalar interprets a raw text fragment the way a lenient JSON reader
// would: JSON first, then bool/null literals, then numbers, finally the
// string itself. Used by the tag-based and pseudo tool-call parsers where
// argument values arrive as plain text.
func ParseScalar(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return String("")
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var decoded interface{}
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return FromInterface(decoded)
		}
	}

	switch strings.ToLower(trimmed) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	case "null", "none":
		return Null()
	}

	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Number(n)
	}

	// Quoted strings lose their quotes.
	if len(trimmed) >= 2 {
		if (trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"') ||
			(trimmed[0] == '\'' && trimmed[len(trimmed)-1] == '\'') {
			return String(trimmed[1 : len(trimmed)-1])
		}
	}

	return String(trimmed)
}

// Args is a dynamically typed argument map.
type Args map[string]Value

// ArgsFromMap converts a generic map into Args.
func ArgsFromMap(m map[string]interface{}) Args {
	args := make(Args, len(m))
	for k, v := range m {
		args[k] = FromInterface(v)
	}
	return args
}

// Interface converts back to a generic map for serialization and dispatch.
func (a Args) Interface() map[string]interface{} {
	out := make(map[string]interface{}, len(a))
	for k, v := range a {
		out[k] = v.Interface()
	}
	return out
}
