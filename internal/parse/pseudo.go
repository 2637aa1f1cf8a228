package parse

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/scenecraft/scenecraft/internal/tools"
)

// Models occasionally emit tool invocations as prose instead of using the
// native tool-call channel: a bare function-call line like
//
//	create_primitive(shape="cube", name="Box")
//
// or a single-key JSON line like
//
//	{"create_primitive": {"shape": "cube"}}
//
// PseudoCalls recovers those so a turn with usable intent is not wasted on
// a corrective re-prompt.

var (
	funcCallLineRe = regexp.MustCompile(`^\s*([a-z][a-z0-9_]*)\((.*)\)\s*$`)
	jsonLineRe     = regexp.MustCompile(`^\s*\{.*\}\s*$`)
)

// PseudoCalls scans model text line by line for pseudo tool calls. Only
// names present in known are accepted; the function is total and returns
// nil when nothing matches.
func PseudoCalls(text string, known map[string]bool) []ToolCallTag {
	if len(known) == 0 {
		return nil
	}

	var calls []ToolCallTag
	for _, line := range strings.Split(text, "\n") {
		if call, ok := pseudoFromFuncLine(line, known); ok {
			calls = append(calls, call)
			continue
		}
		if call, ok := pseudoFromJSONLine(line, known); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

func pseudoFromFuncLine(line string, known map[string]bool) (ToolCallTag, bool) {
	m := funcCallLineRe.FindStringSubmatch(line)
	if m == nil || !known[m[1]] {
		return ToolCallTag{}, false
	}

	args := map[string]interface{}{}
	for _, part := range splitTopLevel(m[2]) {
		key, value, found := strings.Cut(part, "=")
		if !found {
			// Positional arguments have no reliable mapping to a schema.
			continue
		}
		args[strings.TrimSpace(key)] = tools.ParseScalar(strings.TrimSpace(value)).Interface()
	}
	return ToolCallTag{Name: m[1], Args: args}, true
}

// pseudoFromJSONLine accepts {"tool": "name", "arguments": {..}} and the
// single-key form {"name": {..}}.
func pseudoFromJSONLine(line string, known map[string]bool) (ToolCallTag, bool) {
	if !jsonLineRe.MatchString(line) {
		return ToolCallTag{}, false
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &obj); err != nil {
		return ToolCallTag{}, false
	}

	if name, ok := obj["tool"].(string); ok && known[name] {
		args, _ := obj["arguments"].(map[string]interface{})
		if args == nil {
			args = map[string]interface{}{}
		}
		return ToolCallTag{Name: name, Args: args}, true
	}

	if len(obj) == 1 {
		for name, inner := range obj {
			if !known[name] {
				return ToolCallTag{}, false
			}
			args, _ := inner.(map[string]interface{})
			if args == nil {
				args = map[string]interface{}{}
			}
			return ToolCallTag{Name: name, Args: args}, true
		}
	}
	return ToolCallTag{}, false
}

// splitTopLevel splits a kwargs string on commas that are not inside
// quotes, brackets, or braces.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}
