package llm

import "strings"

// Dialect identifies one supported wire format.
type Dialect string

const (
	DialectAnthropic Dialect = "anthropic"
	DialectOpenAI    Dialect = "openai"
)

// String returns the string representation of a dialect.
func (d Dialect) String() string {
	return string(d)
}

// IsValid reports whether the dialect is one of the supported values.
func (d Dialect) IsValid() bool {
	switch d {
	case DialectAnthropic, DialectOpenAI:
		return true
	}
	return false
}

// DetectDialect picks a wire dialect from the endpoint URL and model name.
// The endpoint wins over the model, and the result is deterministic:
//
//	endpoint contains "anthropic"        → anthropic
//	endpoint contains "openai"           → openai
//	model contains "claude"              → anthropic
//	model contains "gpt" or "codex"      → openai
//	otherwise                            → openai
//
// Most OpenAI-compatible gateways accept the chat-completions shape, so
// OpenAI is the safe default for unknown endpoints.
func DetectDialect(endpoint, model string) Dialect {
	ep := strings.ToLower(endpoint)
	if strings.Contains(ep, "anthropic") {
		return DialectAnthropic
	}
	if strings.Contains(ep, "openai") {
		return DialectOpenAI
	}

	m := strings.ToLower(model)
	if strings.Contains(m, "claude") {
		return DialectAnthropic
	}
	if strings.Contains(m, "gpt") || strings.Contains(m, "codex") {
		return DialectOpenAI
	}

	return DialectOpenAI
}
