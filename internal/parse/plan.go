package parse

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/scenecraft/scenecraft/internal/plan"
)

var (
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	stepTagRe    = regexp.MustCompile(`(?s)<step\s+([^>]*)>(.*?)</step>`)
	stepAttrRe   = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)
	numberedRe   = regexp.MustCompile(`^\s*(\d+)[.)]\s+(.*)$`)
)

// toolHints guesses a tool from keywords in a free-text step line. Only
// applied when the guessed tool is actually registered.
var toolHints = []struct {
	keywords []string
	tool     string
}{
	{[]string{"keyframe", "animate", "animation"}, "insert_keyframe"},
	{[]string{"render"}, "render_image"},
	{[]string{"light", "lamp"}, "add_light"},
	{[]string{"camera"}, "set_camera"},
	{[]string{"material", "color", "colour"}, "set_material_color"},
	{[]string{"delete", "remove"}, "delete_object"},
	{[]string{"move", "rotate", "scale", "transform"}, "transform_object"},
	{[]string{"create", "add", "make"}, "create_primitive"},
	{[]string{"import"}, "import_asset"},
	{[]string{"export"}, "export_scene"},
}

// Plan extracts an execution plan from model text. The fallback chain:
//
//  1. fenced or bare JSON (object with "plan"/"steps", or a raw array)
//  2. <step order=".." tool="..">description</step> tags
//  3. numbered list lines with keyword-based tool guessing
//  4. a single-step plan wrapping the raw text
//
// Blank input yields an empty plan, which is a valid outcome the caller
// degrades on. known restricts guessed tool names; nil disables guessing.
func Plan(text string, known map[string]bool) *plan.Plan {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return plan.New(nil)
	}

	if p := planFromJSON(trimmed); p != nil {
		p.Raw = text
		return p
	}
	if p := planFromStepTags(trimmed); p != nil {
		p.Raw = text
		return p
	}
	if p := planFromNumberedList(trimmed, known); p != nil {
		p.Raw = text
		return p
	}

	p := plan.New([]*plan.Step{{Index: 1, Description: trimmed}})
	p.Raw = text
	return p
}

// planFromJSON tries fenced blocks first, then the first balanced JSON
// object or array in the text.
func planFromJSON(text string) *plan.Plan {
	candidates := []string{}
	for _, m := range fencedJSONRe.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if blob := extractBalanced(text, '{', '}'); blob != "" {
		candidates = append(candidates, blob)
	}
	if blob := extractBalanced(text, '[', ']'); blob != "" {
		candidates = append(candidates, blob)
	}

	for _, candidate := range candidates {
		if p := decodePlanJSON(candidate); p != nil {
			return p
		}
	}
	return nil
}

func decodePlanJSON(blob string) *plan.Plan {
	var top interface{}
	if err := json.Unmarshal([]byte(blob), &top); err != nil {
		return nil
	}

	var rawSteps []interface{}
	switch t := top.(type) {
	case []interface{}:
		rawSteps = t
	case map[string]interface{}:
		for _, key := range []string{"plan", "steps"} {
			if arr, ok := t[key].([]interface{}); ok {
				rawSteps = arr
				break
			}
		}
		if rawSteps == nil {
			return nil
		}
	default:
		return nil
	}

	steps := make([]*plan.Step, 0, len(rawSteps))
	for i, raw := range rawSteps {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			// A bare string is a description-only step.
			if s, isStr := raw.(string); isStr {
				steps = append(steps, &plan.Step{Index: i + 1, Description: s})
			}
			continue
		}
		steps = append(steps, stepFromMap(entry, i+1))
	}
	return plan.New(steps)
}

func stepFromMap(entry map[string]interface{}, fallbackIndex int) *plan.Step {
	step := &plan.Step{Index: fallbackIndex}

	if n, ok := asInt(entry["step"]); ok {
		step.Index = n
	} else if n, ok := asInt(entry["order"]); ok {
		step.Index = n
	}

	if s, ok := entry["tool"].(string); ok {
		step.Tool = s
	}
	if s, ok := entry["description"].(string); ok {
		step.Description = s
	} else if s, ok := entry["task"].(string); ok {
		step.Description = s
	}

	if params, ok := entry["params"].(map[string]interface{}); ok {
		step.Params = params
	} else if params, ok := entry["arguments"].(map[string]interface{}); ok {
		step.Params = params
	}

	if deps, ok := entry["depends_on"].([]interface{}); ok {
		for _, d := range deps {
			if n, ok := asInt(d); ok {
				step.DependsOn = append(step.DependsOn, n)
			}
		}
	}

	return step
}

func asInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// planFromStepTags parses <step order="1" tool="x" depends_on="1,2">..</step>.
func planFromStepTags(text string) *plan.Plan {
	matches := stepTagRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	steps := make([]*plan.Step, 0, len(matches))
	for i, m := range matches {
		step := &plan.Step{Index: i + 1, Description: strings.TrimSpace(m[2])}
		for _, attr := range stepAttrRe.FindAllStringSubmatch(m[1], -1) {
			switch attr[1] {
			case "order", "step":
				if n, err := strconv.Atoi(attr[2]); err == nil {
					step.Index = n
				}
			case "tool":
				step.Tool = attr[2]
			case "depends_on":
				for _, part := range strings.Split(attr[2], ",") {
					if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
						step.DependsOn = append(step.DependsOn, n)
					}
				}
			}
		}
		steps = append(steps, step)
	}
	return plan.New(steps)
}

// planFromNumberedList parses "1. do something" lines, guessing tools from
// keywords.
func planFromNumberedList(text string, known map[string]bool) *plan.Plan {
	var steps []*plan.Step
	for _, line := range strings.Split(text, "\n") {
		m := numberedRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		desc := strings.TrimSpace(m[2])
		steps = append(steps, &plan.Step{
			Index:       idx,
			Description: desc,
			Tool:        guessTool(desc, known),
		})
	}
	if len(steps) == 0 {
		return nil
	}
	return plan.New(steps)
}

func guessTool(desc string, known map[string]bool) string {
	if known == nil {
		return ""
	}
	lowered := strings.ToLower(desc)
	for _, hint := range toolHints {
		for _, kw := range hint.keywords {
			if strings.Contains(lowered, kw) {
				if known[hint.tool] {
					return hint.tool
				}
				break
			}
		}
	}
	return ""
}

// extractBalanced returns the first balanced region delimited by open and
// close, honoring JSON string quoting. Empty when none is found.
func extractBalanced(text string, open, close byte) string {
	start := strings.IndexByte(text, open)
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
