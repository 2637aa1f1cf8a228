package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/scenecraft/scenecraft/internal/tools"
)

// simulatedHost is an in-memory stand-in for the real 3D application. It
// tracks object and material names so queries and follow-up requests stay
// coherent within a CLI run, and acknowledges everything else.
type simulatedHost struct {
	mu        sync.Mutex
	objects   []string
	materials []string
	counter   int
}

func newSimulatedHost() *simulatedHost {
	return &simulatedHost{
		objects: []string{"Camera", "Light"},
	}
}

func (h *simulatedHost) ExecuteTool(name string, args map[string]interface{}) (*tools.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch name {
	case "create_primitive":
		obj := stringArg(args, "name")
		if obj == "" {
			h.counter++
			obj = fmt.Sprintf("%s.%03d", title(stringArg(args, "shape")), h.counter)
		}
		h.objects = append(h.objects, obj)
		return ok(name, fmt.Sprintf("Created %s", obj), map[string]interface{}{"name": obj}), nil

	case "delete_object":
		obj := stringArg(args, "name")
		for i, existing := range h.objects {
			if existing == obj {
				h.objects = append(h.objects[:i], h.objects[i+1:]...)
				return ok(name, fmt.Sprintf("Deleted %s", obj), nil), nil
			}
		}
		return fail(name, fmt.Sprintf("object not found: %s", obj)), nil

	case "list_objects":
		items := make([]interface{}, len(h.objects))
		for i, o := range h.objects {
			items[i] = o
		}
		return ok(name, fmt.Sprintf("%d objects", len(h.objects)),
			map[string]interface{}{"objects": items}), nil

	case "query_scene_stats":
		return ok(name, "scene stats", map[string]interface{}{
			"objects":   len(h.objects),
			"materials": len(h.materials),
		}), nil

	case "create_material", "shader_create_material":
		mat := stringArg(args, "name")
		if mat == "" {
			mat = stringArg(args, "material_name")
		}
		if mat == "" {
			h.counter++
			mat = fmt.Sprintf("Material.%03d", h.counter)
		}
		h.materials = append(h.materials, mat)
		return ok(name, fmt.Sprintf("Created material %s", mat), map[string]interface{}{"name": mat}), nil

	default:
		// Everything else is acknowledged; the simulated host has no real
		// scene graph behind it.
		return ok(name, fmt.Sprintf("%s acknowledged (simulated)", name), nil), nil
	}
}

func ok(tool, output string, data map[string]interface{}) *tools.Result {
	return &tools.Result{Tool: tool, Success: true, Output: output, Data: data}
}

func fail(tool, reason string) *tools.Result {
	return &tools.Result{Tool: tool, Success: false, Error: reason}
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func title(s string) string {
	if s == "" {
		return "Object"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
