// Package tools provides the tool registry of the SceneCraft agent core:
// the static catalog of host operations a model is allowed to call, grouped
// into intent-addressable subsets, with dispatch-time argument validation.
package tools

import (
	"fmt"
	"strings"

	"github.com/scenecraft/scenecraft/internal/llm"
)

// Property describes one parameter in a tool's input schema.
type Property struct {
	// Type is the JSON-Schema type: "string", "number", "integer",
	// "boolean", "array", "object".
	Type string `json:"type" yaml:"type"`

	// Description shown to the model.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Enum restricts string values to a fixed set.
	Enum []string `json:"enum,omitempty" yaml:"enum,omitempty"`

	// Items describes array elements.
	Items *Property `json:"items,omitempty" yaml:"items,omitempty"`

	// Default applied by normalization policies, not by validation.
	Default interface{} `json:"default,omitempty" yaml:"default,omitempty"`
}

// Schema is a JSON-Schema-like description of a tool's arguments.
type Schema struct {
	Properties map[string]Property `json:"properties" yaml:"properties"`
	Required   []string            `json:"required,omitempty" yaml:"required,omitempty"`
}

// ToolDefinition describes one registered host operation. Immutable after
// registration; the registry is built once and read many times.
type ToolDefinition struct {
	// Name is the unique tool key.
	Name string `json:"name" yaml:"name"`

	// Description shown to the model.
	Description string `json:"description" yaml:"description"`

	// InputSchema declares and constrains the arguments.
	InputSchema Schema `json:"input_schema" yaml:"input_schema"`

	// Groups lists the named subsets this tool belongs to.
	Groups []string `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// ToSchema converts the definition to the wire-agnostic shape offered to
// providers.
func (d *ToolDefinition) ToSchema() llm.ToolSchema {
	props := make(map[string]interface{}, len(d.InputSchema.Properties))
	for name, p := range d.InputSchema.Properties {
		props[name] = p.toWire()
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(d.InputSchema.Required) > 0 {
		schema["required"] = d.InputSchema.Required
	}

	return llm.ToolSchema{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: schema,
	}
}

func (p Property) toWire() map[string]interface{} {
	out := map[string]interface{}{"type": p.Type}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		out["enum"] = p.Enum
	}
	if p.Items != nil {
		out["items"] = p.Items.toWire()
	}
	return out
}

// Summary renders the compact one-line form used in low-token planning
// prompts: "name: description", description truncated to 80 chars.
func (d *ToolDefinition) Summary() string {
	desc := d.Description
	if len(desc) > 80 {
		desc = desc[:80]
	}
	return fmt.Sprintf("%s: %s", d.Name, desc)
}

// InGroup reports whether the tool belongs to the named group.
func (d *ToolDefinition) InGroup(group string) bool {
	for _, g := range d.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// ValidateArgs checks arguments against the schema at dispatch time.
// Missing required fields and unknown fields produce structured errors;
// declared types are checked loosely (numbers accept integers, enums are
// enforced for strings).
func (d *ToolDefinition) ValidateArgs(args Args) error {
	for _, req := range d.InputSchema.Required {
		v, ok := args[req]
		if !ok || v.IsNull() {
			return fmt.Errorf("tool %s: missing required parameter %q", d.Name, req)
		}
	}

	for name, v := range args {
		prop, ok := d.InputSchema.Properties[name]
		if !ok {
			return fmt.Errorf("tool %s: unknown parameter %q", d.Name, name)
		}
		if err := checkType(prop, v); err != nil {
			return fmt.Errorf("tool %s: parameter %q: %w", d.Name, name, err)
		}
	}

	return nil
}

func checkType(prop Property, v Value) error {
	if v.IsNull() {
		// Null for an optional parameter means "unset".
		return nil
	}

	switch prop.Type {
	case "string":
		s, ok := v.AsString()
		if !ok {
			return fmt.Errorf("expected string, got %s", v.Kind())
		}
		if len(prop.Enum) > 0 && !containsString(prop.Enum, s) {
			return fmt.Errorf("value %q not in enum [%s]", s, strings.Join(prop.Enum, ", "))
		}
	case "number", "integer":
		if _, ok := v.AsNumber(); !ok {
			return fmt.Errorf("expected %s, got %s", prop.Type, v.Kind())
		}
	case "boolean":
		if _, ok := v.AsBool(); !ok {
			return fmt.Errorf("expected boolean, got %s", v.Kind())
		}
	case "array":
		items, ok := v.AsArray()
		if !ok {
			return fmt.Errorf("expected array, got %s", v.Kind())
		}
		if prop.Items != nil {
			for i, item := range items {
				if err := checkType(*prop.Items, item); err != nil {
					return fmt.Errorf("element %d: %w", i, err)
				}
			}
		}
	case "object":
		if _, ok := v.AsObject(); !ok {
			return fmt.Errorf("expected object, got %s", v.Kind())
		}
	case "":
		// Untyped property accepts anything.
	default:
		return fmt.Errorf("unsupported schema type %q", prop.Type)
	}

	return nil
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
