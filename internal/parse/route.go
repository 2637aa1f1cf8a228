// Package parse provides the output parsers of the SceneCraft agent core.
// Every parser in this package is a total function over arbitrary text: it
// never panics or returns a Go error for malformed input, it produces a
// best-effort structured value or an explicit "could not parse" result that
// callers must handle with a defined fallback.
package parse

import (
	"encoding/json"
	"regexp"
	"strings"
)

// RouteFields is the structured route decision extracted from model text.
type RouteFields struct {
	Intent     string  `json:"intent"`
	Domain     string  `json:"domain"`
	Complexity string  `json:"complexity"`
	Confidence float64 `json:"confidence"`
}

var (
	routeJSONRe = regexp.MustCompile(`\{[^{}]*"intent"[^{}]*\}`)
	intentTagRe = regexp.MustCompile(`(?s)<intent>\s*(.*?)\s*</intent>`)
	domainTagRe = regexp.MustCompile(`(?s)<domain>\s*(.*?)\s*</domain>`)
	cmplxTagRe  = regexp.MustCompile(`(?s)<complexity>\s*(.*?)\s*</complexity>`)
)

// Route extracts a route decision from model text. It tries a flat JSON
// object containing an "intent" key first, then XML-ish tags. The second
// return value is false when neither form is present; callers fall back to
// the rule engine.
func Route(text string) (RouteFields, bool) {
	if strings.TrimSpace(text) == "" {
		return RouteFields{}, false
	}

	if m := routeJSONRe.FindString(text); m != "" {
		var fields RouteFields
		if err := json.Unmarshal([]byte(m), &fields); err == nil && fields.Intent != "" {
			fields.normalize()
			return fields, true
		}
	}

	if m := intentTagRe.FindStringSubmatch(text); m != nil {
		fields := RouteFields{Intent: m[1]}
		if d := domainTagRe.FindStringSubmatch(text); d != nil {
			fields.Domain = d[1]
		}
		if c := cmplxTagRe.FindStringSubmatch(text); c != nil {
			fields.Complexity = c[1]
		}
		fields.normalize()
		return fields, true
	}

	return RouteFields{}, false
}

func (f *RouteFields) normalize() {
	f.Intent = strings.ToLower(strings.TrimSpace(f.Intent))
	f.Domain = strings.ToLower(strings.TrimSpace(f.Domain))
	f.Complexity = strings.ToLower(strings.TrimSpace(f.Complexity))
	if f.Complexity != "complex" {
		f.Complexity = "simple"
	}
	if f.Confidence <= 0 || f.Confidence > 1 {
		f.Confidence = 0.5
	}
}

// Validation is the structured verdict of the advisory LLM check.
type Validation struct {
	Passed     bool     `json:"passed"`
	Issues     []string `json:"issues,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

var passedJSONRe = regexp.MustCompile(`\{[^{}]*"passed"[^{}]*\}`)

// ValidationVerdict extracts a {"passed": ...} object from model text. The
// second return value is false when nothing parseable is present; the
// validator degrades to passed=true in that case, because validation is
// advisory and must never block completion.
func ValidationVerdict(text string) (Validation, bool) {
	m := passedJSONRe.FindString(text)
	if m == "" {
		return Validation{}, false
	}
	var v Validation
	if err := json.Unmarshal([]byte(m), &v); err != nil {
		return Validation{}, false
	}
	return v, true
}
