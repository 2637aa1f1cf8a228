package parse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenecraft/scenecraft/internal/tools"
)

func TestRouteFromJSON(t *testing.T) {
	text := `Routing decision: {"intent": "Create", "domain": "scene", "complexity": "COMPLEX", "confidence": 0.9} done`
	fields, ok := Route(text)
	require.True(t, ok)
	assert.Equal(t, "create", fields.Intent)
	assert.Equal(t, "scene", fields.Domain)
	assert.Equal(t, "complex", fields.Complexity)
	assert.Equal(t, 0.9, fields.Confidence)
}

func TestRouteFromTags(t *testing.T) {
	text := "<intent>material</intent>\n<domain>shading</domain>\n<complexity>weird</complexity>"
	fields, ok := Route(text)
	require.True(t, ok)
	assert.Equal(t, "material", fields.Intent)
	// Unknown complexity defaults to simple, absent confidence to 0.5.
	assert.Equal(t, "simple", fields.Complexity)
	assert.Equal(t, 0.5, fields.Confidence)
}

func TestRouteUnparseable(t *testing.T) {
	for _, in := range []string{"", "no structure here", `{"passed": true}`, "{\"intent\":"} {
		_, ok := Route(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestValidationVerdict(t *testing.T) {
	v, ok := ValidationVerdict(`All good. {"passed": true, "suggestion": "none"}`)
	require.True(t, ok)
	assert.True(t, v.Passed)

	v, ok = ValidationVerdict(`{"passed": false, "suggestion": "add a light"}`)
	require.True(t, ok)
	assert.False(t, v.Passed)
	assert.Equal(t, "add a light", v.Suggestion)

	_, ok = ValidationVerdict("the result looks fine to me")
	assert.False(t, ok)
}

func TestToolCallTags(t *testing.T) {
	text := `I'll set that up.
<tool_call name="create_primitive">
  <param name="shape">cube</param>
  <param name="size">2.5</param>
  <param name="location">[0, 0, 1]</param>
</tool_call>
<tool_call name="set_material_color">{"object_name": "Cube", "color": [1, 0, 0, 1]}</tool_call>`

	calls := ToolCallTags(text, map[string]bool{"create_primitive": true, "set_material_color": true})
	require.Len(t, calls, 2)

	assert.Equal(t, "create_primitive", calls[0].Name)
	assert.Equal(t, "cube", calls[0].Args["shape"])
	assert.Equal(t, 2.5, calls[0].Args["size"])
	assert.Equal(t, []interface{}{1.0, 0.0, 0.0, 1.0}, calls[1].Args["color"])
}

func TestToolCallTagsFiltersUnknown(t *testing.T) {
	text := `<tool_call name="rm_rf"><param name="path">/</param></tool_call>`
	assert.Nil(t, ToolCallTags(text, map[string]bool{"create_primitive": true}))
	assert.Nil(t, ToolCallTags("plain prose", nil))
}

func TestPseudoCallsFunctionLine(t *testing.T) {
	known := map[string]bool{"create_primitive": true, "add_light": true}
	text := `Let me do that:
create_primitive(shape="sphere", size=1.5, location=[0, 0, 2])
add_light(light_type="sun")
not_a_tool(x=1)
printf("hello")`

	calls := PseudoCalls(text, known)
	require.Len(t, calls, 2)
	assert.Equal(t, "create_primitive", calls[0].Name)
	assert.Equal(t, "sphere", calls[0].Args["shape"])
	assert.Equal(t, 1.5, calls[0].Args["size"])
	assert.Equal(t, []interface{}{0.0, 0.0, 2.0}, calls[0].Args["location"])
	assert.Equal(t, "add_light", calls[1].Name)
}

func TestPseudoCallsJSONLine(t *testing.T) {
	known := map[string]bool{"delete_object": true}
	calls := PseudoCalls(`{"tool": "delete_object", "arguments": {"name": "Cube"}}`, known)
	require.Len(t, calls, 1)
	assert.Equal(t, "Cube", calls[0].Args["name"])

	calls = PseudoCalls(`{"delete_object": {"name": "Sphere"}}`, known)
	require.Len(t, calls, 1)
	assert.Equal(t, "Sphere", calls[0].Args["name"])

	assert.Nil(t, PseudoCalls(`{"unknown_tool": {}}`, known))
}

func TestSummarizeToolResultFailure(t *testing.T) {
	res := &tools.Result{Tool: "delete_object", Success: false, Error: "object not found: Cube"}
	assert.Equal(t, "FAIL: object not found: Cube", SummarizeToolResult(res, 100))

	long := &tools.Result{Tool: "x", Success: false, Error: strings.Repeat("e", 500)}
	out := SummarizeToolResult(long, 40)
	assert.Len(t, out, 40)
	assert.True(t, strings.HasPrefix(out, "FAIL: "))
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestSummarizeToolResultStructured(t *testing.T) {
	res := &tools.Result{
		Tool:    "list_objects",
		Success: true,
		Data: map[string]interface{}{
			"objects": []interface{}{"Cube", "Lamp", "Camera"},
		},
		Duration: 12 * time.Millisecond,
	}
	assert.Equal(t, "3 objects: Cube, Lamp, Camera", SummarizeToolResult(res, 400))

	stats := &tools.Result{
		Tool:    "query_scene_stats",
		Success: true,
		Data:    map[string]interface{}{"objects": 4.0, "materials": 2.0},
	}
	assert.Equal(t, "materials=2 objects=4", SummarizeToolResult(stats, 400))
}

func TestSummarizeToolResultDefaults(t *testing.T) {
	assert.Equal(t, "OK", SummarizeToolResult(&tools.Result{Tool: "x", Success: true}, 400))
	assert.Equal(t, "FAIL: no result", SummarizeToolResult(nil, 400))
	assert.Equal(t, "FAIL: unknown error", SummarizeToolResult(&tools.Result{Tool: "x"}, 0))
}

func TestLooksLikeScript(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		script bool
	}{
		{"python fence", "Here you go:\n```python\nprint('hi')\n```", true},
		{"bpy import", "import bpy\nbpy.ops.mesh.primitive_cube_add()", true},
		{"bpy call inline", "Run bpy.data.objects.remove as needed", true},
		{"def", "def build_scene():\n    pass", true},
		{"for loop", "for obj in objects:\n", true},
		{"prose", "I created a cube and painted it red.", false},
		{"tool tag", `<tool_call name="create_primitive"></tool_call>`, false},
		{"empty", "", false},
		{"import in prose", "This is important to note.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.script, LooksLikeScript(tt.in))
		})
	}
}

// Every parser is total: arbitrary junk never panics.
func TestParserTotality(t *testing.T) {
	junk := []string{
		"", "{", "}", "<", `<tool_call name="">`, "((((", `a=b,c=`,
		strings.Repeat(`{"intent":`, 100),
		"\x00\x01\x02", strings.Repeat("<intent>", 1000),
	}
	known := map[string]bool{"create_primitive": true}
	for _, in := range junk {
		assert.NotPanics(t, func() {
			Route(in)
			ValidationVerdict(in)
			ToolCallTags(in, known)
			PseudoCalls(in, known)
			LooksLikeScript(in)
			Plan(in, known)
		})
	}
}
