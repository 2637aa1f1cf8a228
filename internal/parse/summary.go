package parse

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scenecraft/scenecraft/internal/tools"
)

// DefaultSummaryMaxChars bounds a tool-result summary when the caller does
// not supply a budget.
const DefaultSummaryMaxChars = 400

// SummarizeToolResult compresses a tool result into a bounded string that
// goes back to the model as feedback. Failures are always prefixed with
// "FAIL: " so the model cannot mistake an error for output. Verbose
// inspection tools get item counts instead of full payloads.
func SummarizeToolResult(res *tools.Result, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultSummaryMaxChars
	}
	if res == nil {
		return "FAIL: no result"
	}

	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "unknown error"
		}
		return clip("FAIL: "+msg, maxChars)
	}

	if s, ok := summarizeStructured(res); ok {
		return clip(s, maxChars)
	}

	out := strings.TrimSpace(res.Output)
	if out == "" {
		out = "OK"
	}
	return clip(out, maxChars)
}

// summarizeStructured handles tools whose raw payload is too chatty to
// feed back verbatim.
func summarizeStructured(res *tools.Result) (string, bool) {
	switch res.Tool {
	case "list_objects":
		if names, ok := stringSlice(res.Data["objects"]); ok {
			return fmt.Sprintf("%d objects: %s", len(names), strings.Join(names, ", ")), true
		}
	case "shader_inspect_nodes":
		if nodes, ok := res.Data["nodes"].([]interface{}); ok {
			return fmt.Sprintf("%d nodes inspected; %s", len(nodes), strings.TrimSpace(res.Output)), true
		}
	case "shader_search_index":
		if hits, ok := res.Data["results"].([]interface{}); ok {
			return fmt.Sprintf("%d index hits; %s", len(hits), strings.TrimSpace(res.Output)), true
		}
	case "query_scene_stats":
		if len(res.Data) > 0 {
			parts := make([]string, 0, len(res.Data))
			for _, key := range sortedKeys(res.Data) {
				parts = append(parts, fmt.Sprintf("%s=%v", key, res.Data[key]))
			}
			return strings.Join(parts, " "), true
		}
	}
	return "", false
}

func stringSlice(v interface{}) ([]string, bool) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
