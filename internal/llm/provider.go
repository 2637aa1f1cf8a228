// Package llm provides the provider adapter layer of the SceneCraft agent
// core. It speaks two raw HTTP wire dialects (the Anthropic messages API and
// the OpenAI chat-completions API) behind one vendor-neutral Provider
// interface, so the orchestration pipeline never sees dialect differences.
package llm

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Security limits to prevent unbounded memory usage
const (
	// MaxErrorBodySize limits how much error response body we read (1MB)
	// This prevents memory exhaustion from malformed/malicious error responses
	MaxErrorBodySize = 1 * 1024 * 1024
)

// readLimitedBody reads up to maxBytes from r, returning the bytes read.
// This is used for error responses to prevent unbounded memory allocation.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// Provider defines the interface for LLM wire dialects. Implementations
// convert the neutral request/response shapes to their vendor's JSON and
// back; upstream code is dialect-agnostic.
type Provider interface {
	// Chat sends a request and returns the normalized response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name returns the dialect identifier.
	Name() string

	// Available returns true if the provider is configured.
	Available() bool

	// FormatAssistantMessage rebuilds the assistant message for a response
	// so it can be appended to history and fed back to the same dialect
	// without losing tool-call identity.
	FormatAssistantMessage(resp *ChatResponse) Message

	// FormatToolResultsAsMessages converts executed tool results into the
	// message(s) this dialect expects on the next turn, preserving order.
	// Per-result formatting is folded into this batch call rather than
	// exposed separately, because the dialects disagree on granularity:
	// Anthropic wants all results in one user message of tool_result
	// blocks, OpenAI wants one role "tool" message per result.
	FormatToolResultsAsMessages(results []ToolResultPayload) []Message
}

// Normalized stop reasons. Dialect-specific values are mapped onto these.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// ChatRequest represents a chat completion request in neutral form.
type ChatRequest struct {
	// Model to use; falls back to the configured default when empty.
	Model string `json:"model"`

	// SystemPrompt sets the model's behavior.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Messages in the conversation.
	Messages []Message `json:"messages"`

	// Tools offered for this request. Nil means no tool calling.
	Tools []ToolSchema `json:"tools,omitempty"`

	// MaxTokens limits response length.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `json:"temperature,omitempty"`
}

// Message represents one conversation message. Plain messages carry Content;
// multi-part messages (assistant tool calls, tool results) carry Blocks
// and/or the OpenAI-specific echo fields.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system", "tool"
	Content string `json:"content,omitempty"`

	// Blocks holds structured content (text/tool_use/tool_result). Used by
	// the Anthropic dialect, which packs tool traffic into content arrays.
	Blocks []ContentBlock `json:"blocks,omitempty"`

	// ToolCalls echoes assistant tool calls (OpenAI dialect).
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID correlates a role="tool" message with its call (OpenAI
	// dialect).
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ContentBlock is one element of a structured message.
type ContentBlock struct {
	Type string `json:"type"` // "text", "tool_use", "tool_result"

	// Text content ("text" blocks).
	Text string `json:"text,omitempty"`

	// Tool use ("tool_use" blocks).
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// Tool result ("tool_result" blocks).
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ToolCall is a normalized tool invocation extracted from a response.
type ToolCall struct {
	// ID is an opaque correlation token, provider- or parser-generated.
	ID string `json:"id"`

	// Name of the registered tool.
	Name string `json:"name"`

	// Arguments as a dynamically typed map.
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolResultPayload pairs an executed call with its summarized outcome,
// ready to be serialized back into the conversation.
type ToolResultPayload struct {
	Call    ToolCall `json:"call"`
	Content string   `json:"content"`
	IsError bool     `json:"is_error,omitempty"`
}

// ToolSchema is the wire-agnostic tool description offered to the model.
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ChatResponse contains the normalized LLM response.
type ChatResponse struct {
	Content          string        `json:"content"`
	ToolCalls        []ToolCall    `json:"tool_calls,omitempty"`
	Model            string        `json:"model"`
	StopReason       string        `json:"stop_reason,omitempty"`
	TokensUsed       int           `json:"tokens_used,omitempty"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
	Duration         time.Duration `json:"duration"`
}

// HasToolCalls reports whether the model asked for tool execution.
func (r *ChatResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// ProviderConfig contains configuration for an LLM provider.
type ProviderConfig struct {
	// Name identifies the dialect (anthropic, openai).
	Name string

	// Endpoint is the API base URL.
	Endpoint string

	// APIKey for authentication.
	APIKey string

	// Model is the default model to use.
	Model string

	// MaxTokens default for responses.
	MaxTokens int

	// Temperature default.
	Temperature float64

	// Timeout for one HTTP round trip.
	Timeout time.Duration

	// MaxRetries bounds attempts for retryable failures.
	MaxRetries int
}

// DefaultConfig returns sensible defaults for a dialect.
func DefaultConfig(name string) *ProviderConfig {
	switch name {
	case "anthropic":
		return &ProviderConfig{
			Name:       "anthropic",
			Endpoint:   "https://api.anthropic.com",
			Model:      "claude-sonnet-4-20250514",
			MaxTokens:  4096,
			Timeout:    2 * time.Minute,
			MaxRetries: 3,
		}
	case "openai":
		return &ProviderConfig{
			Name:       "openai",
			Endpoint:   "https://api.openai.com/v1",
			Model:      "gpt-4o",
			MaxTokens:  4096,
			Timeout:    2 * time.Minute,
			MaxRetries: 3,
		}
	default:
		return &ProviderConfig{
			Name:       name,
			MaxTokens:  4096,
			Timeout:    2 * time.Minute,
			MaxRetries: 3,
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// BASE PROVIDER (DRY helper for HTTP-based dialects)
// ═══════════════════════════════════════════════════════════════════════════════

// baseProvider provides common functionality for HTTP-based dialects.
type baseProvider struct {
	config  *ProviderConfig
	client  *http.Client
	backoff []time.Duration
}

// newBaseProvider creates a new base provider with defaults applied.
func newBaseProvider(cfg *ProviderConfig, providerName string) baseProvider {
	if cfg == nil {
		cfg = DefaultConfig(providerName)
	}

	defaults := DefaultConfig(providerName)
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	cfg.Name = providerName

	return baseProvider{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		backoff: retryBackoff,
	}
}

// Name returns the dialect identifier.
func (b *baseProvider) Name() string {
	return b.config.Name
}

// Available checks if the API key is configured.
func (b *baseProvider) Available() bool {
	return b.config.APIKey != ""
}
