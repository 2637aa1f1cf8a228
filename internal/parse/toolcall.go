package parse

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/scenecraft/scenecraft/internal/tools"
)

// ToolCallTag is a tool invocation recovered from model text rather than
// the provider's native tool-call channel.
type ToolCallTag struct {
	Name string
	Args map[string]interface{}
}

var (
	toolCallTagRe = regexp.MustCompile(`(?s)<tool_call\s+name="([^"]+)"\s*>(.*?)</tool_call>`)
	paramTagRe    = regexp.MustCompile(`(?s)<param\s+name="([^"]+)"\s*>(.*?)</param>`)
)

// ToolCallTags extracts <tool_call name=".."> blocks from model text, in
// emission order. Parameter values may arrive as <param> tags or as a JSON
// object body; both are accepted. Unknown tool names are dropped when known
// is non-nil. Returns nil when the text carries no tags.
func ToolCallTags(text string, known map[string]bool) []ToolCallTag {
	matches := toolCallTagRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var calls []ToolCallTag
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		if known != nil && !known[name] {
			continue
		}
		calls = append(calls, ToolCallTag{Name: name, Args: parseTagBody(m[2])})
	}
	return calls
}

// parseTagBody turns a <tool_call> body into an argument map. <param> tags
// win; otherwise a JSON object body is tried; anything else means no args.
func parseTagBody(body string) map[string]interface{} {
	args := map[string]interface{}{}

	params := paramTagRe.FindAllStringSubmatch(body, -1)
	if len(params) > 0 {
		for _, p := range params {
			args[strings.TrimSpace(p[1])] = tools.ParseScalar(strings.TrimSpace(p[2])).Interface()
		}
		return args
	}

	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			// Some models nest the args under an "arguments" key.
			if inner, ok := obj["arguments"].(map[string]interface{}); ok {
				return inner
			}
			return obj
		}
	}
	return args
}
