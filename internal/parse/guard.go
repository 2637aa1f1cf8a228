package parse

import (
	"regexp"
	"strings"
)

// Script execution on the host is disabled. When a model answers with a
// script instead of tool calls, the executor spends its single corrective
// re-prompt steering it back to the tool channel. These patterns decide
// whether a reply looks like a script.
var scriptPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?m)^\\s*```(?:python|py)\\b"),
	regexp.MustCompile(`(?m)^\s*import\s+(?:bpy|bmesh|mathutils|scenecraft)\b`),
	regexp.MustCompile(`(?m)^\s*from\s+(?:bpy|bmesh|mathutils|scenecraft)[.\w]*\s+import\b`),
	regexp.MustCompile(`(?m)^\s*def\s+\w+\s*\(`),
	regexp.MustCompile(`(?m)^\s*class\s+\w+\s*[(:]`),
	regexp.MustCompile(`(?m)^\s*for\s+\w+\s+in\s+.+:\s*$`),
	regexp.MustCompile(`\bbpy\.(?:ops|data|context)\.\w+`),
}

// LooksLikeScript reports whether model text reads as host-side script code
// rather than a tool-call response or prose.
func LooksLikeScript(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, re := range scriptPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
