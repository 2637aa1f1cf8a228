package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoInvoker succeeds and records the dispatched calls.
type echoInvoker struct {
	calls []string
}

func (e *echoInvoker) Invoke(ctx context.Context, name string, args map[string]interface{}) *Result {
	e.calls = append(e.calls, name)
	return &Result{Tool: name, Success: true, Output: "ok"}
}

func TestBuiltinCatalogRegisters(t *testing.T) {
	r := NewBuiltinRegistry(&echoInvoker{})
	assert.Greater(t, r.Len(), 30)
	assert.True(t, r.Has("create_primitive"))
	assert.True(t, r.Has("shader_inspect_nodes"))
	assert.True(t, r.Has(DisabledToolName))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry(nil)
	def := &ToolDefinition{Name: "x", Description: "d"}
	require.NoError(t, r.Register(def))
	assert.Error(t, r.Register(def))
	assert.Error(t, r.Register(&ToolDefinition{}))
}

func TestForIntentPreservesFirstSeenOrder(t *testing.T) {
	r := NewBuiltinRegistry(nil)

	defs := r.ForIntent("create")
	require.NotEmpty(t, defs)

	// basic group comes before query group; no duplicates.
	seen := map[string]int{}
	for i, def := range defs {
		_, dup := seen[def.Name]
		assert.False(t, dup, "duplicate %s", def.Name)
		seen[def.Name] = i
	}
	// list_objects is in both basic and query; it must appear exactly once,
	// at its basic-group position (first).
	assert.Equal(t, 0, seen["list_objects"])
}

func TestForIntentNeverEmpty(t *testing.T) {
	r := NewBuiltinRegistry(nil)

	intents := []string{
		"create", "modify", "delete", "query", "material", "shader_simple",
		"shader_complex", "toon_shader", "scene_setup", "animation", "render",
		"generate_3d", "search", "file_io", "general",
		// Unmapped intents fall back to the full registry.
		"nonsense", "",
	}
	for _, intent := range intents {
		assert.NotEmpty(t, r.ForIntent(intent), "intent %q returned no tools", intent)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewBuiltinRegistry(&echoInvoker{})
	res := r.Execute(context.Background(), "warp_reality", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown tool")
}

func TestExecuteDisabledTool(t *testing.T) {
	inv := &echoInvoker{}
	r := NewBuiltinRegistry(inv)
	res := r.Execute(context.Background(), DisabledToolName, map[string]interface{}{"code": "print(1)"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "disabled")
	assert.Empty(t, inv.calls, "disabled tool must never reach the host")
}

func TestExecuteValidatesArgs(t *testing.T) {
	inv := &echoInvoker{}
	r := NewBuiltinRegistry(inv)

	// Missing required parameter.
	res := r.Execute(context.Background(), "create_primitive", map[string]interface{}{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "missing required parameter")

	// Unknown parameter.
	res = r.Execute(context.Background(), "create_primitive", map[string]interface{}{
		"primitive_type": "cube",
		"flavour":        "vanilla",
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown parameter")

	// Enum violation.
	res = r.Execute(context.Background(), "create_primitive", map[string]interface{}{
		"primitive_type": "dodecahedron",
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not in enum")

	// Valid call reaches the invoker.
	res = r.Execute(context.Background(), "create_primitive", map[string]interface{}{
		"primitive_type": "cube",
		"location":       []interface{}{0.0, 0.0, 1.0},
	})
	assert.True(t, res.Success)
	assert.Equal(t, []string{"create_primitive"}, inv.calls)
}

func TestExecuteAppliesNormalization(t *testing.T) {
	var got map[string]interface{}
	r := NewBuiltinRegistry(InvokerFunc(func(ctx context.Context, name string, args map[string]interface{}) *Result {
		got = args
		return &Result{Success: true}
	}))

	res := r.Execute(context.Background(), "shader_inspect_nodes", map[string]interface{}{
		"material_name": "Water",
		"limit":         500.0,
	})
	require.True(t, res.Success)
	assert.Equal(t, 80.0, got["limit"], "limit must be clamped")
	assert.Equal(t, true, got["compact"], "compact forced without node_names")
	assert.Equal(t, false, got["include_values"])
}

func TestSummariesTruncate(t *testing.T) {
	long := &ToolDefinition{
		Name:        "verbose_tool",
		Description: "this description is deliberately padded out to be much longer than the eighty character budget allowed per line",
	}
	s := long.Summary()
	assert.LessOrEqual(t, len(s), len("verbose_tool: ")+80)

	r := NewRegistry(nil)
	require.NoError(t, r.Register(long))
	text := Summaries(r.All())
	assert.Contains(t, text, "- verbose_tool: ")
}

func TestCatalogText(t *testing.T) {
	r := NewBuiltinRegistry(nil)
	text := CatalogText(r.ForIntent("create"))
	assert.Contains(t, text, "### create_primitive")
	assert.Contains(t, text, "primitive_type (string, required)")
	assert.Contains(t, text, "[cube|sphere|cylinder|cone|plane|torus|monkey]")
}

func TestLoadCatalogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extra.yaml")
	doc := `
- name: bake_lighting
  description: Bake lighting into textures
  input_schema:
    properties:
      resolution:
        type: integer
        description: Bake resolution
    required: []
  groups: [render]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	r := NewBuiltinRegistry(nil)
	require.NoError(t, r.LoadCatalogFile(path))
	def, ok := r.Get("bake_lighting")
	require.True(t, ok)
	assert.True(t, def.InGroup("render"))

	// A second load collides and reports the duplicate.
	assert.Error(t, r.LoadCatalogFile(path))
}

func TestSchemasWireShape(t *testing.T) {
	r := NewBuiltinRegistry(nil)
	def, _ := r.Get("create_primitive")
	schemas := Schemas([]*ToolDefinition{def})
	require.Len(t, schemas, 1)

	assert.Equal(t, "create_primitive", schemas[0].Name)
	assert.Equal(t, "object", schemas[0].InputSchema["type"])
	props, ok := schemas[0].InputSchema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "primitive_type")
	assert.Equal(t, []string{"primitive_type"}, schemas[0].InputSchema["required"])
}
