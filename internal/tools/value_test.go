package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromInterfaceRoundTrip(t *testing.T) {
	in := map[string]interface{}{
		"name":    "Cube",
		"count":   3.0,
		"visible": true,
		"color":   []interface{}{0.8, 0.0, 0.0, 1.0},
		"nested":  map[string]interface{}{"depth": 2.0},
		"nothing": nil,
	}

	args := ArgsFromMap(in)
	assert.Equal(t, KindString, args["name"].Kind())
	assert.Equal(t, KindNumber, args["count"].Kind())
	assert.Equal(t, KindBool, args["visible"].Kind())
	assert.Equal(t, KindArray, args["color"].Kind())
	assert.Equal(t, KindObject, args["nested"].Kind())
	assert.True(t, args["nothing"].IsNull())

	out := args.Interface()
	assert.Equal(t, in, out)
}

func TestValueAccessors(t *testing.T) {
	s, ok := String("hi").AsString()
	require.True(t, ok)
	assert.Equal(t, "hi", s)

	_, ok = String("hi").AsNumber()
	assert.False(t, ok)

	n, ok := Number(4.5).AsNumber()
	require.True(t, ok)
	assert.Equal(t, 4.5, n)

	i, ok := Number(4.9).AsInt()
	require.True(t, ok)
	assert.Equal(t, 4, i)

	b, ok := Bool(true).AsBool()
	require.True(t, ok)
	assert.True(t, b)

	arr, ok := Array(Number(1), Number(2)).AsArray()
	require.True(t, ok)
	assert.Len(t, arr, 2)
}

func TestParseScalar(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected Value
	}{
		{"bool true", "true", Bool(true)},
		{"bool mixed case", "True", Bool(true)},
		{"null", "null", Null()},
		{"none literal", "None", Null()},
		{"integer", "42", Number(42)},
		{"float", "-3.5", Number(-3.5)},
		{"plain string", "Water", String("Water")},
		{"quoted string", `"Water"`, String("Water")},
		{"single quoted", "'Water'", String("Water")},
		{"empty", "", String("")},
		{"json array", "[1, 2, 3]", Array(Number(1), Number(2), Number(3))},
		{"broken json degrades", "{oops", String("{oops")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseScalar(tt.in))
		})
	}
}

func TestParseScalarObject(t *testing.T) {
	v := ParseScalar(`{"r": 1, "g": 0}`)
	obj, ok := v.AsObject()
	require.True(t, ok)
	assert.Equal(t, Number(1), obj["r"])
}

func TestValidateArgsTypes(t *testing.T) {
	def := &ToolDefinition{
		Name: "probe",
		InputSchema: Schema{
			Properties: map[string]Property{
				"name":  {Type: "string"},
				"count": {Type: "integer"},
				"flags": {Type: "array", Items: &Property{Type: "boolean"}},
				"any":   {},
			},
			Required: []string{"name"},
		},
	}

	assert.NoError(t, def.ValidateArgs(ArgsFromMap(map[string]interface{}{
		"name":  "x",
		"count": 2.0,
		"flags": []interface{}{true, false},
		"any":   map[string]interface{}{"k": "v"},
	})))

	err := def.ValidateArgs(ArgsFromMap(map[string]interface{}{"name": 7.0}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected string")

	err = def.ValidateArgs(ArgsFromMap(map[string]interface{}{
		"name":  "x",
		"flags": []interface{}{true, "nope"},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element 1")
}

func TestNormalizeArgsDefaults(t *testing.T) {
	out := NormalizeArgs("shader_get_material_summary", map[string]interface{}{
		"material_name":    "Water",
		"node_index_limit": 5000.0,
	})
	assert.Equal(t, "basic", out["detail_level"])
	assert.Equal(t, true, out["include_node_index"])
	assert.Equal(t, 200.0, out["node_index_limit"])

	// Unrelated tools pass through untouched.
	in := map[string]interface{}{"name": "Cube"}
	out = NormalizeArgs("delete_object", in)
	assert.Equal(t, in, out)

	// Input map is never mutated.
	orig := map[string]interface{}{"material_name": "W"}
	NormalizeArgs("shader_search_index", orig)
	_, present := orig["top_k"]
	assert.False(t, present)
}
