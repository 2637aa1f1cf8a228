package tools

import (
	"sort"
	"strings"
)

// BuiltinCatalog returns the static tool catalog. It is rebuilt from source
// each run; there is no migration format. Definitions are grouped the way
// the router's intents select them.
func BuiltinCatalog() []*ToolDefinition {
	vec3 := func(desc string) Property {
		return Property{
			Type:        "array",
			Description: desc,
			Items:       &Property{Type: "number"},
		}
	}
	rgba := func(desc string) Property {
		return Property{
			Type:        "array",
			Description: desc + " as [r, g, b, a] in 0..1",
			Items:       &Property{Type: "number"},
		}
	}

	return []*ToolDefinition{
		// ── basic ────────────────────────────────────────────────────────
		{
			Name:        "list_objects",
			Description: "List all objects in the scene with their types",
			InputSchema: Schema{
				Properties: map[string]Property{
					"type_filter": {Type: "string", Description: "Only list objects of this type",
						Enum: []string{"MESH", "LIGHT", "CAMERA", "EMPTY", "CURVE"}},
				},
			},
			Groups: []string{GroupBasic, GroupQuery},
		},
		{
			Name:        "create_primitive",
			Description: "Create a primitive mesh object",
			InputSchema: Schema{
				Properties: map[string]Property{
					"primitive_type": {Type: "string", Description: "Kind of primitive to create",
						Enum: []string{"cube", "sphere", "cylinder", "cone", "plane", "torus", "monkey"}},
					"name":     {Type: "string", Description: "Object name"},
					"location": vec3("World location [x, y, z]"),
					"scale":    vec3("Scale [x, y, z]"),
				},
				Required: []string{"primitive_type"},
			},
			Groups: []string{GroupBasic},
		},
		{
			Name:        "delete_object",
			Description: "Delete an object from the scene",
			InputSchema: Schema{
				Properties: map[string]Property{
					"name": {Type: "string", Description: "Name of the object to delete"},
				},
				Required: []string{"name"},
			},
			Groups: []string{GroupBasic},
		},
		{
			Name:        "transform_object",
			Description: "Move, rotate, or scale an existing object",
			InputSchema: Schema{
				Properties: map[string]Property{
					"name":     {Type: "string", Description: "Object to transform"},
					"location": vec3("New location [x, y, z]"),
					"rotation": vec3("Euler rotation in radians [x, y, z]"),
					"scale":    vec3("New scale [x, y, z]"),
				},
				Required: []string{"name"},
			},
			Groups: []string{GroupBasic},
		},
		{
			Name:        "duplicate_object",
			Description: "Duplicate an object, optionally offsetting the copy",
			InputSchema: Schema{
				Properties: map[string]Property{
					"name":     {Type: "string", Description: "Object to duplicate"},
					"new_name": {Type: "string", Description: "Name for the copy"},
					"offset":   vec3("Translation applied to the copy"),
				},
				Required: []string{"name"},
			},
			Groups: []string{GroupBasic},
		},
		{
			Name:        "set_object_parent",
			Description: "Parent one object to another",
			InputSchema: Schema{
				Properties: map[string]Property{
					"child":  {Type: "string", Description: "Child object name"},
					"parent": {Type: "string", Description: "Parent object name"},
				},
				Required: []string{"child", "parent"},
			},
			Groups: []string{GroupBasic},
		},

		// ── query ────────────────────────────────────────────────────────
		{
			Name:        "get_object_info",
			Description: "Get location, dimensions, materials and modifiers of an object",
			InputSchema: Schema{
				Properties: map[string]Property{
					"name": {Type: "string", Description: "Object name"},
				},
				Required: []string{"name"},
			},
			Groups: []string{GroupQuery},
		},
		{
			Name:        "get_selected_objects",
			Description: "List the currently selected objects",
			InputSchema: Schema{Properties: map[string]Property{}},
			Groups:      []string{GroupQuery},
		},
		{
			Name:        "query_scene_stats",
			Description: "Summarize scene statistics: object, vertex, and material counts",
			InputSchema: Schema{Properties: map[string]Property{}},
			Groups:      []string{GroupQuery},
		},

		// ── material_basic ───────────────────────────────────────────────
		{
			Name:        "create_material",
			Description: "Create a new material",
			InputSchema: Schema{
				Properties: map[string]Property{
					"name":       {Type: "string", Description: "Material name"},
					"base_color": rgba("Base color"),
				},
				Required: []string{"name"},
			},
			Groups: []string{GroupMaterial},
		},
		{
			Name:        "assign_material",
			Description: "Assign an existing material to an object",
			InputSchema: Schema{
				Properties: map[string]Property{
					"object_name":   {Type: "string", Description: "Target object"},
					"material_name": {Type: "string", Description: "Material to assign"},
				},
				Required: []string{"object_name", "material_name"},
			},
			Groups: []string{GroupMaterial},
		},
		{
			Name:        "set_material_color",
			Description: "Set the base color of an object's active material, creating one if needed",
			InputSchema: Schema{
				Properties: map[string]Property{
					"object_name": {Type: "string", Description: "Target object; defaults to the active object"},
					"color":       rgba("Base color"),
				},
				Required: []string{"color"},
			},
			Groups: []string{GroupMaterial},
		},
		{
			Name:        "set_metallic_roughness",
			Description: "Set metallic and roughness on a material",
			InputSchema: Schema{
				Properties: map[string]Property{
					"material_name": {Type: "string", Description: "Material to modify"},
					"metallic":      {Type: "number", Description: "Metallic factor 0..1"},
					"roughness":     {Type: "number", Description: "Roughness factor 0..1"},
				},
				Required: []string{"material_name"},
			},
			Groups: []string{GroupMaterial},
		},

		// ── shader ───────────────────────────────────────────────────────
		{
			Name:        "shader_create_material",
			Description: "Create an empty node-based material for shader building",
			InputSchema: Schema{
				Properties: map[string]Property{
					"name": {Type: "string", Description: "Material name"},
				},
				Required: []string{"name"},
			},
			Groups: []string{GroupShader},
		},
		{
			Name:        "shader_clear_nodes",
			Description: "Remove all nodes from a material's node tree",
			InputSchema: Schema{
				Properties: map[string]Property{
					"material_name": {Type: "string", Description: "Material to clear"},
					"keep_output":   {Type: "boolean", Description: "Keep the output node"},
				},
				Required: []string{"material_name"},
			},
			Groups: []string{GroupShader},
		},
		{
			Name:        "shader_add_node",
			Description: "Add a shader node to a material's node tree",
			InputSchema: Schema{
				Properties: map[string]Property{
					"material_name": {Type: "string", Description: "Target material"},
					"node_type":     {Type: "string", Description: "Node type identifier, e.g. BSDF_PRINCIPLED"},
					"node_name":     {Type: "string", Description: "Name for the new node"},
					"location":      vec3("Editor position [x, y]"),
				},
				Required: []string{"material_name", "node_type"},
			},
			Groups: []string{GroupShader},
		},
		{
			Name:        "shader_link_nodes",
			Description: "Connect an output socket of one node to an input socket of another",
			InputSchema: Schema{
				Properties: map[string]Property{
					"material_name": {Type: "string", Description: "Target material"},
					"from_node":     {Type: "string", Description: "Source node name"},
					"from_socket":   {Type: "string", Description: "Source socket name"},
					"to_node":       {Type: "string", Description: "Destination node name"},
					"to_socket":     {Type: "string", Description: "Destination socket name"},
				},
				Required: []string{"material_name", "from_node", "from_socket", "to_node", "to_socket"},
			},
			Groups: []string{GroupShader},
		},
		{
			Name:        "shader_set_node_param",
			Description: "Set a parameter or default input value on a shader node",
			InputSchema: Schema{
				Properties: map[string]Property{
					"material_name": {Type: "string", Description: "Target material"},
					"node_name":     {Type: "string", Description: "Node to modify"},
					"param":         {Type: "string", Description: "Parameter or input socket name"},
					"value":         {Description: "New value; type depends on the socket"},
				},
				Required: []string{"material_name", "node_name", "param", "value"},
			},
			Groups: []string{GroupShader},
		},
		{
			Name:        "shader_get_material_summary",
			Description: "Summarize a material's node graph at a chosen detail level",
			InputSchema: Schema{
				Properties: map[string]Property{
					"material_name":      {Type: "string", Description: "Material to summarize"},
					"detail_level":       {Type: "string", Enum: []string{"basic", "full"}, Default: "basic"},
					"include_node_index": {Type: "boolean", Default: true},
					"node_index_limit":   {Type: "integer", Description: "Max nodes in the index", Default: 60},
				},
				Required: []string{"material_name"},
			},
			Groups: []string{GroupShader, GroupQuery},
		},
		{
			Name:        "shader_inspect_nodes",
			Description: "Inspect nodes of a material's node tree with paging",
			InputSchema: Schema{
				Properties: map[string]Property{
					"material_name":  {Type: "string", Description: "Material to inspect"},
					"node_names":     {Type: "array", Description: "Specific nodes to inspect", Items: &Property{Type: "string"}},
					"compact":        {Type: "boolean", Default: true},
					"include_links":  {Type: "boolean", Default: true},
					"include_values": {Type: "boolean", Default: false},
					"limit":          {Type: "integer", Default: 30},
					"offset":         {Type: "integer", Default: 0},
				},
				Required: []string{"material_name"},
			},
			Groups: []string{GroupShader, GroupQuery},
		},
		{
			Name:        "shader_search_index",
			Description: "Search the shader knowledge index for node recipes",
			InputSchema: Schema{
				Properties: map[string]Property{
					"query": {Type: "string", Description: "Search query"},
					"top_k": {Type: "integer", Description: "Number of hits", Default: 10},
				},
				Required: []string{"query"},
			},
			Groups: []string{GroupShader, GroupSearch},
		},

		// ── shader_preset ────────────────────────────────────────────────
		{
			Name:        "shader_apply_preset",
			Description: "Apply a ready-made shader preset to a material",
			InputSchema: Schema{
				Properties: map[string]Property{
					"material_name": {Type: "string", Description: "Target material"},
					"preset": {Type: "string", Description: "Preset name",
						Enum: []string{"glass", "water", "metal", "emission", "clay", "plastic", "wood"}},
				},
				Required: []string{"material_name", "preset"},
			},
			Groups: []string{GroupShaderPreset, GroupMaterial},
		},

		// ── toon ─────────────────────────────────────────────────────────
		{
			Name:        "toon_apply_shader",
			Description: "Apply a toon shader setup to an object",
			InputSchema: Schema{
				Properties: map[string]Property{
					"object_name": {Type: "string", Description: "Target object"},
					"bands":       {Type: "integer", Description: "Number of shading bands"},
					"base_color":  rgba("Base color"),
				},
				Required: []string{"object_name"},
			},
			Groups: []string{GroupToon},
		},
		{
			Name:        "toon_set_outline",
			Description: "Add or adjust an inverted-hull outline on a toon-shaded object",
			InputSchema: Schema{
				Properties: map[string]Property{
					"object_name": {Type: "string", Description: "Target object"},
					"thickness":   {Type: "number", Description: "Outline thickness"},
					"color":       rgba("Outline color"),
				},
				Required: []string{"object_name"},
			},
			Groups: []string{GroupToon},
		},

		// ── scene ────────────────────────────────────────────────────────
		{
			Name:        "add_light",
			Description: "Add a light to the scene",
			InputSchema: Schema{
				Properties: map[string]Property{
					"light_type": {Type: "string", Enum: []string{"POINT", "SUN", "SPOT", "AREA"}},
					"location":   vec3("World location [x, y, z]"),
					"energy":     {Type: "number", Description: "Light power"},
				},
				Required: []string{"light_type"},
			},
			Groups: []string{GroupScene},
		},
		{
			Name:        "set_camera",
			Description: "Position the active camera and aim it at a target",
			InputSchema: Schema{
				Properties: map[string]Property{
					"location": vec3("Camera location [x, y, z]"),
					"look_at":  vec3("Point the camera aims at"),
					"focal_mm": {Type: "number", Description: "Focal length in millimeters"},
				},
			},
			Groups: []string{GroupScene},
		},
		{
			Name:        "set_world_background",
			Description: "Set the world background color and strength",
			InputSchema: Schema{
				Properties: map[string]Property{
					"color":    rgba("Background color"),
					"strength": {Type: "number", Description: "Background strength"},
				},
			},
			Groups: []string{GroupScene},
		},

		// ── animation ────────────────────────────────────────────────────
		{
			Name:        "insert_keyframe",
			Description: "Insert a keyframe on an object's channel at a frame",
			InputSchema: Schema{
				Properties: map[string]Property{
					"object_name": {Type: "string", Description: "Target object"},
					"channel":     {Type: "string", Enum: []string{"location", "rotation", "scale"}},
					"frame":       {Type: "integer", Description: "Frame number"},
				},
				Required: []string{"object_name", "channel", "frame"},
			},
			Groups: []string{GroupAnimation},
		},
		{
			Name:        "set_animation_range",
			Description: "Set the scene's start and end frames",
			InputSchema: Schema{
				Properties: map[string]Property{
					"start": {Type: "integer", Description: "Start frame"},
					"end":   {Type: "integer", Description: "End frame"},
				},
				Required: []string{"start", "end"},
			},
			Groups: []string{GroupAnimation},
		},

		// ── render ───────────────────────────────────────────────────────
		{
			Name:        "set_render_settings",
			Description: "Configure render engine, resolution and samples",
			InputSchema: Schema{
				Properties: map[string]Property{
					"engine":  {Type: "string", Enum: []string{"EEVEE", "CYCLES"}},
					"width":   {Type: "integer", Description: "Resolution width"},
					"height":  {Type: "integer", Description: "Resolution height"},
					"samples": {Type: "integer", Description: "Sample count"},
				},
			},
			Groups: []string{GroupRender},
		},
		{
			Name:        "render_image",
			Description: "Render a still image to a file",
			InputSchema: Schema{
				Properties: map[string]Property{
					"output_path": {Type: "string", Description: "Where to write the image"},
				},
			},
			Groups: []string{GroupRender},
		},

		// ── generate ─────────────────────────────────────────────────────
		{
			Name:        "generate_3d_model",
			Description: "Generate a 3D model from a text prompt and import it into the scene",
			InputSchema: Schema{
				Properties: map[string]Property{
					"prompt": {Type: "string", Description: "Text description of the model"},
					"style":  {Type: "string", Enum: []string{"realistic", "sculpture", "lowpoly"}},
				},
				Required: []string{"prompt"},
			},
			Groups: []string{GroupGenerate},
		},

		// ── search ───────────────────────────────────────────────────────
		{
			Name:        "search_knowledge",
			Description: "Search the local knowledge snippets for techniques and recipes",
			InputSchema: Schema{
				Properties: map[string]Property{
					"query": {Type: "string", Description: "Search query"},
					"limit": {Type: "integer", Description: "Max results"},
				},
				Required: []string{"query"},
			},
			Groups: []string{GroupSearch},
		},

		// ── file ─────────────────────────────────────────────────────────
		{
			Name:        "import_asset",
			Description: "Import an external asset file into the scene",
			InputSchema: Schema{
				Properties: map[string]Property{
					"path":   {Type: "string", Description: "Path to the asset file"},
					"format": {Type: "string", Enum: []string{"obj", "fbx", "gltf", "stl"}},
				},
				Required: []string{"path"},
			},
			Groups: []string{GroupFile},
		},
		{
			Name:        "export_scene",
			Description: "Export the scene or selection to a file",
			InputSchema: Schema{
				Properties: map[string]Property{
					"path":           {Type: "string", Description: "Destination file path"},
					"format":         {Type: "string", Enum: []string{"obj", "fbx", "gltf", "stl"}},
					"selection_only": {Type: "boolean", Description: "Export only selected objects"},
				},
				Required: []string{"path", "format"},
			},
			Groups: []string{GroupFile},
		},

		// ── meta ─────────────────────────────────────────────────────────
		{
			Name:        "ask_user",
			Description: "Ask the user a clarifying question and pause until they answer",
			InputSchema: Schema{
				Properties: map[string]Property{
					"question": {Type: "string", Description: "Question for the user"},
				},
				Required: []string{"question"},
			},
			Groups: []string{GroupMeta},
		},
		{
			Name:        "report_progress",
			Description: "Report intermediate progress to the user without ending the turn",
			InputSchema: Schema{
				Properties: map[string]Property{
					"message": {Type: "string", Description: "Progress message"},
				},
				Required: []string{"message"},
			},
			Groups: []string{GroupMeta},
		},

		// Registered so the model gets a structured refusal instead of an
		// "unknown tool" error. Dispatch intercepts it before the bridge.
		{
			Name:        DisabledToolName,
			Description: "Execute a raw script in the host (disabled)",
			InputSchema: Schema{
				Properties: map[string]Property{
					"code": {Type: "string", Description: "Script source"},
				},
				Required: []string{"code"},
			},
		},
	}
}

// CatalogText renders the plain-text tool catalog embedded in the system
// prompt for providers without native tool calling.
func CatalogText(defs []*ToolDefinition) string {
	var sb strings.Builder
	for _, def := range defs {
		sb.WriteString("### ")
		sb.WriteString(def.Name)
		sb.WriteString("\n")
		sb.WriteString(def.Description)
		sb.WriteString("\n")
		names := make([]string, 0, len(def.InputSchema.Properties))
		for name := range def.InputSchema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			prop := def.InputSchema.Properties[name]
			sb.WriteString("- ")
			sb.WriteString(name)
			if prop.Type != "" {
				sb.WriteString(" (")
				sb.WriteString(prop.Type)
				if containsString(def.InputSchema.Required, name) {
					sb.WriteString(", required")
				}
				sb.WriteString(")")
			} else if containsString(def.InputSchema.Required, name) {
				sb.WriteString(" (required)")
			}
			if prop.Description != "" {
				sb.WriteString(": ")
				sb.WriteString(prop.Description)
			}
			if len(prop.Enum) > 0 {
				sb.WriteString(" [")
				sb.WriteString(strings.Join(prop.Enum, "|"))
				sb.WriteString("]")
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
