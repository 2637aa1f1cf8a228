package agents

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/scenecraft/scenecraft/internal/config"
	"github.com/scenecraft/scenecraft/internal/llm"
	"github.com/scenecraft/scenecraft/internal/logging"
	"github.com/scenecraft/scenecraft/internal/parse"
)

// Route is the classification of one user request. Routing is total: every
// request gets a route, worst case the low-confidence general fallback.
type Route struct {
	Intent     string
	Domain     string
	Complexity string
	Confidence float64
	// Source records which path decided: "rules" or "llm".
	Source string
}

// Complex reports whether the request takes the planned path.
func (r Route) Complex() bool {
	return r.Complexity == "complex"
}

// RouteRule maps keywords to an intent. Rules are matched against the
// lowercased request; the rule with the most keyword hits wins.
type RouteRule struct {
	Intent   string   `yaml:"intent"`
	Domain   string   `yaml:"domain"`
	Keywords []string `yaml:"keywords"`
	// Complex marks intents whose requests are always planned.
	Complex bool `yaml:"complex,omitempty"`
}

// builtinRules is the default keyword table. A YAML overlay from
// router.rules_path is merged in front, so user rules win ties.
var builtinRules = []RouteRule{
	{Intent: "create", Domain: "scene", Keywords: []string{"create", "add", "make", "build", "spawn", "new cube", "new sphere"}},
	{Intent: "modify", Domain: "scene", Keywords: []string{"move", "rotate", "scale", "resize", "change", "transform", "adjust"}},
	{Intent: "delete", Domain: "scene", Keywords: []string{"delete", "remove", "clear", "erase", "get rid"}},
	{Intent: "query", Domain: "scene", Keywords: []string{"what", "which", "list", "show", "count", "how many", "inspect"}},
	{Intent: "material", Domain: "shading", Keywords: []string{"material", "color", "colour", "paint", "metallic", "roughness", "glossy"}},
	{Intent: "shader_simple", Domain: "shading", Keywords: []string{"shader", "emission", "transparent", "glass", "glow"}},
	{Intent: "shader_complex", Domain: "shading", Complex: true, Keywords: []string{"node setup", "shader graph", "procedural texture", "node tree", "mix shader"}},
	{Intent: "toon_shader", Domain: "shading", Complex: true, Keywords: []string{"toon", "cel shade", "cel-shade", "anime style", "outline"}},
	{Intent: "scene_setup", Domain: "scene", Keywords: []string{"light", "lighting", "camera", "background", "environment", "hdri", "world"}},
	{Intent: "animation", Domain: "animation", Keywords: []string{"animate", "animation", "keyframe", "frame range", "timeline"}},
	{Intent: "render", Domain: "render", Keywords: []string{"render", "snapshot", "screenshot", "output image"}},
	{Intent: "generate_3d", Domain: "generate", Complex: true, Keywords: []string{"generate 3d", "generate a model", "ai model", "text to 3d", "image to 3d"}},
	{Intent: "search", Domain: "knowledge", Keywords: []string{"search", "find reference", "look up", "documentation"}},
	{Intent: "file_io", Domain: "file", Keywords: []string{"import", "export", "save file", "load file", "obj", "fbx", "gltf"}},
}

// complexityMarkers suggest a multi-step request regardless of intent.
var complexityMarkers = []string{
	"then", "after that", "and also", "as well as", "several", "multiple",
	"scene with", "each", "all of", "first", "finally", "step",
}

// Router classifies requests by keyword rules, optionally escalating to
// the model for low-confidence cases.
type Router struct {
	rules     []RouteRule
	cfg       config.RouterConfig
	model     string
	maxTokens int
	provider  llm.Provider
	log       *logging.Logger
}

// NewRouter builds a router. provider may be nil; the LLM path is then
// disabled regardless of config.
func NewRouter(cfg *config.Config, provider llm.Provider) *Router {
	r := &Router{
		rules:     builtinRules,
		cfg:       cfg.Router,
		model:     cfg.LLM.Model,
		maxTokens: cfg.LLM.MaxTokens,
		provider:  provider,
		log:       logging.Global().WithComponent("router"),
	}
	if cfg.Router.RulesPath != "" {
		if extra, err := loadRuleFile(cfg.Router.RulesPath); err != nil {
			r.log.Warn("rules overlay %s: %v", cfg.Router.RulesPath, err)
		} else {
			r.rules = append(extra, builtinRules...)
			r.log.Info("loaded %d rule(s) from %s", len(extra), cfg.Router.RulesPath)
		}
	}
	return r
}

// Route classifies a request. It never fails; an unclassifiable request
// comes back as general/simple with confidence 0.5.
func (r *Router) Route(ctx context.Context, request string) Route {
	route := r.routeByRules(request)

	if r.cfg.LLMFallback && r.provider != nil && route.Confidence < 0.6 {
		if llmRoute, ok := r.routeByLLM(ctx, request); ok {
			r.log.Debug("llm route %s/%s overrides rules %s/%s",
				llmRoute.Intent, llmRoute.Complexity, route.Intent, route.Complexity)
			return llmRoute
		}
	}
	return route
}

func (r *Router) routeByRules(request string) Route {
	lower := strings.ToLower(request)

	var best *RouteRule
	bestScore := 0
	for i := range r.rules {
		score := 0
		for _, kw := range r.rules[i].Keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = &r.rules[i]
		}
	}

	route := Route{Intent: "general", Domain: "general", Complexity: "simple", Confidence: 0.5, Source: "rules"}
	if best != nil {
		route.Intent = best.Intent
		route.Domain = best.Domain
		route.Confidence = min(float64(bestScore)/3.0, 1.0)
		if best.Complex {
			route.Complexity = "complex"
		}
	}
	if route.Complexity != "complex" && r.looksComplex(lower) {
		route.Complexity = "complex"
	}

	r.log.Debug("routed %q -> %s/%s/%s (%.2f)", clipRequest(request), route.Intent, route.Domain, route.Complexity, route.Confidence)
	return route
}

func (r *Router) looksComplex(lower string) bool {
	if utf8.RuneCountInString(lower) > r.cfg.ComplexityThreshold {
		return true
	}
	hits := 0
	for _, marker := range complexityMarkers {
		if strings.Contains(lower, marker) {
			hits++
		}
	}
	return hits >= 2
}

// routeByLLM asks the model to classify. Any failure, transport or parse,
// falls back to the rule result.
func (r *Router) routeByLLM(ctx context.Context, request string) (Route, bool) {
	resp, err := r.provider.Chat(ctx, &llm.ChatRequest{
		Model:        r.model,
		SystemPrompt: routeSystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: request}},
		MaxTokens:    min(r.maxTokens, 256),
	})
	if err != nil {
		r.log.Warn("llm route failed, keeping rule result: %v", err)
		return Route{}, false
	}

	fields, ok := parse.Route(resp.Content)
	if !ok {
		r.log.Warn("llm route reply unparseable, keeping rule result")
		return Route{}, false
	}
	return Route{
		Intent:     fields.Intent,
		Domain:     fields.Domain,
		Complexity: fields.Complexity,
		Confidence: fields.Confidence,
		Source:     "llm",
	}, true
}

func loadRuleFile(path string) ([]RouteRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules []RouteRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func clipRequest(s string) string {
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
