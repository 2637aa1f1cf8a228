package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OpenAIProvider implements the Provider interface for the OpenAI
// chat-completions API. The system prompt rides as the first message, tool
// arguments are JSON-encoded strings, and each tool result is its own
// role="tool" message.
type OpenAIProvider struct {
	baseProvider
}

// NewOpenAIProvider creates a new OpenAI dialect provider.
func NewOpenAIProvider(cfg *ProviderConfig) *OpenAIProvider {
	return &OpenAIProvider{
		baseProvider: newBaseProvider(cfg, "openai"),
	}
}

// Chat sends a chat request to the OpenAI chat-completions endpoint.
func (p *OpenAIProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}

	start := time.Now()

	openaiReq := openAIChatRequest{
		Model: req.Model,
	}
	if openaiReq.Model == "" {
		openaiReq.Model = p.config.Model
	}

	if req.SystemPrompt != "" {
		openaiReq.Messages = append(openaiReq.Messages, openAIMessage{
			Role:    "system",
			Content: req.SystemPrompt,
		})
	}

	for _, msg := range req.Messages {
		openaiReq.Messages = append(openaiReq.Messages, toOpenAIMessage(msg))
	}

	for _, tool := range req.Tools {
		openaiReq.Tools = append(openaiReq.Tools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	openaiReq.MaxTokens = req.MaxTokens
	if openaiReq.MaxTokens == 0 {
		openaiReq.MaxTokens = p.config.MaxTokens
	}
	openaiReq.Temperature = req.Temperature

	body, err := json.Marshal(openaiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + p.config.APIKey,
	}

	respBody, err := p.post(ctx, p.config.Endpoint+"/chat/completions", headers, body)
	if err != nil {
		return nil, err
	}

	var openaiResp openAIChatResponse
	if err := json.Unmarshal(respBody, &openaiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(openaiResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := openaiResp.Choices[0]

	var toolCalls []ToolCall
	for _, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		// Arguments arrive as a JSON string; a malformed blob degrades to
		// empty arguments rather than failing the whole response.
		args := map[string]interface{}{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]interface{}{}
			}
		}
		toolCalls = append(toolCalls, ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return &ChatResponse{
		Content:          choice.Message.Content,
		ToolCalls:        toolCalls,
		Model:            openaiResp.Model,
		StopReason:       normalizeOpenAIStopReason(choice.FinishReason),
		PromptTokens:     openaiResp.Usage.PromptTokens,
		CompletionTokens: openaiResp.Usage.CompletionTokens,
		TokensUsed:       openaiResp.Usage.TotalTokens,
		Duration:         time.Since(start),
	}, nil
}

// normalizeOpenAIStopReason maps finish_reason onto the neutral stop values.
func normalizeOpenAIStopReason(reason string) string {
	switch reason {
	case "stop":
		return StopEndTurn
	case "tool_calls":
		return StopToolUse
	case "length":
		return StopMaxTokens
	default:
		return reason
	}
}

// FormatAssistantMessage rebuilds the assistant turn, echoing tool calls in
// the tool_calls field so their ids round-trip.
func (p *OpenAIProvider) FormatAssistantMessage(resp *ChatResponse) Message {
	return Message{
		Role:      "assistant",
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	}
}

// FormatToolResultsAsMessages emits one role="tool" message per result,
// preserving emission order.
func (p *OpenAIProvider) FormatToolResultsAsMessages(results []ToolResultPayload) []Message {
	messages := make([]Message, 0, len(results))
	for _, res := range results {
		content := res.Content
		if res.IsError {
			content = "ERROR: " + content
		}
		messages = append(messages, Message{
			Role:       "tool",
			Content:    content,
			ToolCallID: res.Call.ID,
		})
	}
	return messages
}

// toOpenAIMessage converts a neutral message to the wire shape.
func toOpenAIMessage(msg Message) openAIMessage {
	out := openAIMessage{
		Role:       msg.Role,
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
	}

	for _, call := range msg.ToolCalls {
		argsJSON, err := json.Marshal(call.Arguments)
		if err != nil {
			argsJSON = []byte("{}")
		}
		out.ToolCalls = append(out.ToolCalls, openAIToolCall{
			ID:   call.ID,
			Type: "function",
			Function: openAIFunctionCall{
				Name:      call.Name,
				Arguments: string(argsJSON),
			},
		})
	}

	// Structured blocks only appear on history built for the Anthropic
	// dialect; flatten any text blocks so nothing is silently dropped.
	for _, b := range msg.Blocks {
		if b.Type == "text" && b.Text != "" {
			if out.Content != "" {
				out.Content += "\n"
			}
			out.Content += b.Text
		}
	}

	return out
}

// OpenAI API types
type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int    `json:"index"`
		Message      struct {
			Role      string           `json:"role"`
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
