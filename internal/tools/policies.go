package tools

// Argument normalization policies. High-volume inspection tools get their
// limits clamped to safe defaults so one careless call cannot balloon the
// conversation.

func clampInt(v interface{}, def, lo, hi int) int {
	n := def
	switch t := v.(type) {
	case int:
		n = t
	case float64:
		n = int(t)
	}
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// NormalizeArgs applies per-tool defaults and clamps. The input map is not
// mutated.
func NormalizeArgs(toolName string, arguments map[string]interface{}) map[string]interface{} {
	args := make(map[string]interface{}, len(arguments))
	for k, v := range arguments {
		args[k] = v
	}

	switch toolName {
	case "shader_get_material_summary":
		if _, ok := args["detail_level"]; !ok {
			args["detail_level"] = "basic"
		}
		if _, ok := args["include_node_index"]; !ok {
			args["include_node_index"] = true
		}
		args["node_index_limit"] = float64(clampInt(args["node_index_limit"], 60, 20, 200))

	case "shader_inspect_nodes":
		if _, ok := args["compact"]; !ok {
			args["compact"] = true
		}
		if _, ok := args["include_links"]; !ok {
			args["include_links"] = true
		}
		if _, ok := args["include_values"]; !ok {
			args["include_values"] = false
		}
		args["limit"] = float64(clampInt(args["limit"], 30, 1, 80))
		args["offset"] = float64(clampInt(args["offset"], 0, 0, 1<<30))

		// Without explicit node names, force compact mode so a large graph
		// never comes back with full values.
		names, hasNames := args["node_names"]
		if !hasNames || names == nil {
			args["compact"] = true
			args["include_values"] = false
		}

	case "shader_search_index":
		args["top_k"] = float64(clampInt(args["top_k"], 10, 1, 30))
	}

	return args
}
