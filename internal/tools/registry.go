package tools

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scenecraft/scenecraft/internal/llm"
	"github.com/scenecraft/scenecraft/internal/logging"
)

// DisabledToolName is intercepted before dispatch and answered with a
// structured error. The host script-execution escape hatch stays in the
// catalog so the model gets a clear refusal instead of "unknown tool".
const DisabledToolName = "execute_host_script"

// Group names. A tool may belong to several.
const (
	GroupBasic        = "basic"
	GroupMaterial     = "material_basic"
	GroupShader       = "shader"
	GroupShaderPreset = "shader_preset"
	GroupToon         = "toon"
	GroupScene        = "scene"
	GroupAnimation    = "animation"
	GroupRender       = "render"
	GroupGenerate     = "generate"
	GroupSearch       = "search"
	GroupQuery        = "query"
	GroupMeta         = "meta"
	GroupFile         = "file"
)

// intentGroups maps a routed intent onto an ordered list of tool groups.
// The resolved tool list is the union, de-duplicated, preserving first-seen
// order.
var intentGroups = map[string][]string{
	"create":         {GroupBasic, GroupQuery},
	"modify":         {GroupBasic, GroupQuery},
	"delete":         {GroupBasic},
	"query":          {GroupQuery, GroupBasic},
	"material":       {GroupMaterial, GroupQuery},
	"shader_simple":  {GroupShaderPreset, GroupMaterial},
	"shader_complex": {GroupShader, GroupMaterial, GroupQuery},
	"toon_shader":    {GroupToon, GroupShader, GroupMaterial},
	"scene_setup":    {GroupScene, GroupBasic},
	"animation":      {GroupAnimation, GroupBasic, GroupQuery},
	"render":         {GroupRender, GroupScene},
	"generate_3d":    {GroupGenerate, GroupBasic},
	"search":         {GroupSearch, GroupQuery},
	"file_io":        {GroupFile, GroupQuery},
	"general":        {GroupBasic, GroupQuery, GroupMeta},
}

// Result is the structured outcome of one tool dispatch.
type Result struct {
	// Tool that was executed.
	Tool string `json:"tool"`

	// Success indicates the host completed the operation.
	Success bool `json:"success"`

	// Output is the human-readable result.
	Output string `json:"output,omitempty"`

	// Data carries structured payload returned by the host.
	Data map[string]interface{} `json:"data,omitempty"`

	// Error contains details when Success is false.
	Error string `json:"error,omitempty"`

	// Duration of the dispatch, including the bridge wait.
	Duration time.Duration `json:"duration"`
}

// Invoker executes a validated tool call against the host. The execution
// bridge implements this; tests substitute fakes.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]interface{}) *Result
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, name string, args map[string]interface{}) *Result

// Invoke calls the wrapped function.
func (f InvokerFunc) Invoke(ctx context.Context, name string, args map[string]interface{}) *Result {
	return f(ctx, name, args)
}

// Registry holds all tool definitions. It is built once at startup and
// safe for concurrent reads afterwards; Register must not race with reads.
type Registry struct {
	mu      sync.RWMutex
	ordered []*ToolDefinition
	byName  map[string]*ToolDefinition
	invoker Invoker
	log     *logging.Logger
}

// NewRegistry creates an empty registry dispatching through invoker.
func NewRegistry(invoker Invoker) *Registry {
	return &Registry{
		byName:  make(map[string]*ToolDefinition),
		invoker: invoker,
		log:     logging.Global().WithComponent("tools"),
	}
}

// NewBuiltinRegistry creates a registry pre-loaded with the built-in
// catalog.
func NewBuiltinRegistry(invoker Invoker) *Registry {
	r := NewRegistry(invoker)
	for _, def := range BuiltinCatalog() {
		if err := r.Register(def); err != nil {
			r.log.Warn("skipping catalog entry: %v", err)
		}
	}
	return r
}

// Register adds a tool definition. Duplicate names are rejected.
func (r *Registry) Register(def *ToolDefinition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("tool definition must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	r.byName[def.Name] = def
	r.ordered = append(r.ordered, def)
	return nil
}

// Get returns a definition by name.
func (r *Registry) Get(name string) (*ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byName[name]
	return def, ok
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// All returns every registered definition in registration order.
func (r *Registry) All() []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ToolDefinition, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns the set of registered tool names.
func (r *Registry) Names() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make(map[string]bool, len(r.byName))
	for name := range r.byName {
		names[name] = true
	}
	return names
}

// ForGroups resolves an ordered group list to a de-duplicated tool list,
// preserving first-seen order.
func (r *Registry) ForGroups(groups []string) []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*ToolDefinition
	seen := make(map[string]bool)
	for _, group := range groups {
		for _, def := range r.ordered {
			if def.InGroup(group) && !seen[def.Name] {
				seen[def.Name] = true
				out = append(out, def)
			}
		}
	}
	return out
}

// ForIntent returns the tool subset for a routed intent. While the registry
// is non-empty the result is never empty: unmapped intents and groups that
// resolve to nothing fall back to the full registry rather than silently
// restricting the model to zero tools.
func (r *Registry) ForIntent(intent string) []*ToolDefinition {
	groups, ok := intentGroups[strings.ToLower(intent)]
	if ok {
		if defs := r.ForGroups(groups); len(defs) > 0 {
			return defs
		}
	}
	r.log.Debug("intent %q resolved to no tools, falling back to full registry", intent)
	return r.All()
}

// Schemas converts definitions to the wire-agnostic shape for a provider.
func Schemas(defs []*ToolDefinition) []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(defs))
	for _, def := range defs {
		out = append(out, def.ToSchema())
	}
	return out
}

// Summaries renders compact one-line descriptions, one per tool.
func Summaries(defs []*ToolDefinition) string {
	var sb strings.Builder
	for _, def := range defs {
		sb.WriteString("- ")
		sb.WriteString(def.Summary())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Execute validates and dispatches one tool call. It never panics on bad
// input: disabled tools, unknown tools, and schema violations all produce
// structured error results.
func (r *Registry) Execute(ctx context.Context, name string, rawArgs map[string]interface{}) *Result {
	start := time.Now()

	if name == DisabledToolName {
		return &Result{
			Tool:     name,
			Success:  false,
			Error:    "direct script execution is disabled; use the dedicated tools instead",
			Duration: time.Since(start),
		}
	}

	def, ok := r.Get(name)
	if !ok {
		return &Result{
			Tool:     name,
			Success:  false,
			Error:    fmt.Sprintf("unknown tool: %s", name),
			Duration: time.Since(start),
		}
	}

	normalized := NormalizeArgs(name, rawArgs)

	if err := def.ValidateArgs(ArgsFromMap(normalized)); err != nil {
		return &Result{
			Tool:     name,
			Success:  false,
			Error:    err.Error(),
			Duration: time.Since(start),
		}
	}

	if r.invoker == nil {
		return &Result{
			Tool:     name,
			Success:  false,
			Error:    "no host invoker configured",
			Duration: time.Since(start),
		}
	}

	r.log.Debug("dispatching %s", name)
	result := r.invoker.Invoke(ctx, name, normalized)
	if result == nil {
		result = &Result{Tool: name, Success: false, Error: "host returned no result"}
	}
	if result.Tool == "" {
		result.Tool = name
	}
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result
}

// LoadCatalogFile reads extra tool definitions from a YAML file. Entries
// whose names collide with already-registered tools are rejected by
// Register and reported.
func (r *Registry) LoadCatalogFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}

	var defs []*ToolDefinition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}

	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return fmt.Errorf("register %s: %w", def.Name, err)
		}
	}
	return nil
}
