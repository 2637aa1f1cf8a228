package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AnthropicProvider implements the Provider interface for the Anthropic
// messages API. Tool traffic rides inside content-block arrays: the
// assistant emits tool_use blocks and all results go back in a single user
// message of tool_result blocks.
type AnthropicProvider struct {
	baseProvider
}

// NewAnthropicProvider creates a new Anthropic dialect provider.
func NewAnthropicProvider(cfg *ProviderConfig) *AnthropicProvider {
	return &AnthropicProvider{
		baseProvider: newBaseProvider(cfg, "anthropic"),
	}
}

// Chat sends a chat request to the Anthropic messages endpoint.
func (p *AnthropicProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key not configured")
	}

	start := time.Now()

	anthropicReq := anthropicChatRequest{
		Model: req.Model,
	}
	if anthropicReq.Model == "" {
		anthropicReq.Model = p.config.Model
	}

	if req.SystemPrompt != "" {
		anthropicReq.System = req.SystemPrompt
	}

	for _, msg := range req.Messages {
		anthropicReq.Messages = append(anthropicReq.Messages, toAnthropicMessage(msg))
	}

	for _, tool := range req.Tools {
		anthropicReq.Tools = append(anthropicReq.Tools, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}

	anthropicReq.MaxTokens = req.MaxTokens
	if anthropicReq.MaxTokens == 0 {
		anthropicReq.MaxTokens = p.config.MaxTokens
	}
	anthropicReq.Temperature = req.Temperature

	body, err := json.Marshal(anthropicReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{
		"x-api-key":         p.config.APIKey,
		"anthropic-version": "2023-06-01",
	}

	respBody, err := p.post(ctx, p.config.Endpoint+"/v1/messages", headers, body)
	if err != nil {
		return nil, err
	}

	var anthropicResp anthropicChatResponse
	if err := json.Unmarshal(respBody, &anthropicResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var content string
	var toolCalls []ToolCall
	for _, block := range anthropicResp.Content {
		switch block.Type {
		case "text":
			content += block.Text
		case "tool_use":
			id := block.ID
			if id == "" {
				id = "toolu_" + uuid.NewString()
			}
			args := block.Input
			if args == nil {
				args = map[string]interface{}{}
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:        id,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}

	return &ChatResponse{
		Content:          content,
		ToolCalls:        toolCalls,
		Model:            anthropicResp.Model,
		StopReason:       anthropicResp.StopReason,
		PromptTokens:     anthropicResp.Usage.InputTokens,
		CompletionTokens: anthropicResp.Usage.OutputTokens,
		TokensUsed:       anthropicResp.Usage.InputTokens + anthropicResp.Usage.OutputTokens,
		Duration:         time.Since(start),
	}, nil
}

// FormatAssistantMessage rebuilds the assistant turn with its text and
// tool_use blocks so a later request round-trips the tool-call ids.
func (p *AnthropicProvider) FormatAssistantMessage(resp *ChatResponse) Message {
	if len(resp.ToolCalls) == 0 {
		return Message{Role: "assistant", Content: resp.Content}
	}

	var blocks []ContentBlock
	if resp.Content != "" {
		blocks = append(blocks, ContentBlock{Type: "text", Text: resp.Content})
	}
	for _, call := range resp.ToolCalls {
		blocks = append(blocks, ContentBlock{
			Type:  "tool_use",
			ID:    call.ID,
			Name:  call.Name,
			Input: call.Arguments,
		})
	}
	return Message{Role: "assistant", Blocks: blocks}
}

// FormatToolResultsAsMessages packs every result into one user message
// carrying a tool_result block per call, preserving emission order.
func (p *AnthropicProvider) FormatToolResultsAsMessages(results []ToolResultPayload) []Message {
	if len(results) == 0 {
		return nil
	}

	blocks := make([]ContentBlock, 0, len(results))
	for _, res := range results {
		blocks = append(blocks, ContentBlock{
			Type:      "tool_result",
			ToolUseID: res.Call.ID,
			Content:   res.Content,
			IsError:   res.IsError,
		})
	}
	return []Message{{Role: "user", Blocks: blocks}}
}

// toAnthropicMessage converts a neutral message to the wire shape. Plain
// messages stay strings; structured ones become content arrays.
func toAnthropicMessage(msg Message) anthropicMessage {
	if len(msg.Blocks) == 0 {
		return anthropicMessage{Role: msg.Role, Content: msg.Content}
	}

	blocks := make([]anthropicContentBlock, 0, len(msg.Blocks))
	for _, b := range msg.Blocks {
		switch b.Type {
		case "text":
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: b.Text})
		case "tool_use":
			blocks = append(blocks, anthropicContentBlock{
				Type:  "tool_use",
				ID:    b.ID,
				Name:  b.Name,
				Input: b.Input,
			})
		case "tool_result":
			blocks = append(blocks, anthropicContentBlock{
				Type:      "tool_result",
				ToolUseID: b.ToolUseID,
				Content:   b.Content,
				IsError:   b.IsError,
			})
		}
	}
	return anthropicMessage{Role: msg.Role, Content: blocks}
}

// Anthropic API types
type anthropicChatRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

// anthropicMessage carries either a plain string or a block array in
// Content, matching the API's polymorphic field.
type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type anthropicContentBlock struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitempty"`
	ToolUseID string                 `json:"tool_use_id,omitempty"`
	Content   string                 `json:"content,omitempty"`
	IsError   bool                   `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicChatResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Role       string `json:"role"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type  string                 `json:"type"`
		Text  string                 `json:"text,omitempty"`
		ID    string                 `json:"id,omitempty"`
		Name  string                 `json:"name,omitempty"`
		Input map[string]interface{} `json:"input,omitempty"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
