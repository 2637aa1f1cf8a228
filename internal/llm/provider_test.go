package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicParsesToolUseBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))

		body, _ := json.Marshal(map[string]interface{}{
			"model":       "claude-test",
			"stop_reason": "tool_use",
			"content": []map[string]interface{}{
				{"type": "text", "text": "Creating the cube now."},
				{"type": "tool_use", "id": "toolu_1", "name": "create_primitive",
					"input": map[string]interface{}{"primitive_type": "cube"}},
				{"type": "tool_use", "id": "toolu_2", "name": "set_material_color",
					"input": map[string]interface{}{"color": []float64{0.8, 0, 0, 1}}},
			},
			"usage": map[string]int{"input_tokens": 100, "output_tokens": 40},
		})
		w.Write(body)
	}))
	defer srv.Close()

	p := newTestAnthropic(t, srv.URL, 1)
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "create a red cube"}},
		Tools: []ToolSchema{{Name: "create_primitive", Description: "Create a primitive",
			InputSchema: map[string]interface{}{"type": "object"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Creating the cube now.", resp.Content)
	assert.Equal(t, "tool_use", resp.StopReason)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "create_primitive", resp.ToolCalls[0].Name)
	assert.Equal(t, "toolu_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "cube", resp.ToolCalls[0].Arguments["primitive_type"])
	assert.Equal(t, "set_material_color", resp.ToolCalls[1].Name)
	assert.Equal(t, 140, resp.TokensUsed)
}

func TestAnthropicRoundTrip(t *testing.T) {
	p := NewAnthropicProvider(&ProviderConfig{APIKey: "k"})

	resp := &ChatResponse{
		Content: "working",
		ToolCalls: []ToolCall{
			{ID: "toolu_9", Name: "list_objects", Arguments: map[string]interface{}{}},
		},
	}

	assistant := p.FormatAssistantMessage(resp)
	assert.Equal(t, "assistant", assistant.Role)
	require.Len(t, assistant.Blocks, 2)
	assert.Equal(t, "text", assistant.Blocks[0].Type)
	assert.Equal(t, "tool_use", assistant.Blocks[1].Type)
	assert.Equal(t, "toolu_9", assistant.Blocks[1].ID)

	results := p.FormatToolResultsAsMessages([]ToolResultPayload{
		{Call: resp.ToolCalls[0], Content: "2 objects", IsError: false},
	})
	// Anthropic packs all results into one user message.
	require.Len(t, results, 1)
	assert.Equal(t, "user", results[0].Role)
	require.Len(t, results[0].Blocks, 1)
	assert.Equal(t, "tool_result", results[0].Blocks[0].Type)
	assert.Equal(t, "toolu_9", results[0].Blocks[0].ToolUseID)

	// The rebuilt messages must serialize to the wire shape without loss.
	wire := toAnthropicMessage(assistant)
	blocks, ok := wire.Content.([]anthropicContentBlock)
	require.True(t, ok)
	assert.Equal(t, "toolu_9", blocks[1].ID)
	assert.Equal(t, "list_objects", blocks[1].Name)
}

func TestAnthropicPlainMessagePassthrough(t *testing.T) {
	wire := toAnthropicMessage(Message{Role: "user", Content: "hello"})
	assert.Equal(t, "user", wire.Role)
	assert.Equal(t, "hello", wire.Content)
}

func TestOpenAIParsesToolCalls(t *testing.T) {
	var gotReq openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		body, _ := json.Marshal(map[string]interface{}{
			"model": "gpt-test",
			"choices": []map[string]interface{}{{
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": "",
					"tool_calls": []map[string]interface{}{{
						"id":   "call_1",
						"type": "function",
						"function": map[string]interface{}{
							"name":      "create_primitive",
							"arguments": `{"primitive_type": "cube"}`,
						},
					}},
				},
				"finish_reason": "tool_calls",
			}},
			"usage": map[string]int{"prompt_tokens": 50, "completion_tokens": 10, "total_tokens": 60},
		})
		w.Write(body)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(&ProviderConfig{Endpoint: srv.URL, APIKey: "test-key", Model: "gpt-test", MaxRetries: 1})
	resp, err := p.Chat(context.Background(), &ChatRequest{
		SystemPrompt: "be useful",
		Messages:     []Message{{Role: "user", Content: "create a cube"}},
	})
	require.NoError(t, err)

	// System prompt must ride as the first message.
	require.NotEmpty(t, gotReq.Messages)
	assert.Equal(t, "system", gotReq.Messages[0].Role)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "create_primitive", resp.ToolCalls[0].Name)
	assert.Equal(t, "cube", resp.ToolCalls[0].Arguments["primitive_type"])
	assert.Equal(t, StopToolUse, resp.StopReason)
}

func TestOpenAIMalformedArgumentsDegradeToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]interface{}{
			"model": "gpt-test",
			"choices": []map[string]interface{}{{
				"message": map[string]interface{}{
					"role": "assistant",
					"tool_calls": []map[string]interface{}{{
						"id":       "call_1",
						"type":     "function",
						"function": map[string]interface{}{"name": "list_objects", "arguments": "{broken"},
					}},
				},
				"finish_reason": "tool_calls",
			}},
		})
		w.Write(body)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(&ProviderConfig{Endpoint: srv.URL, APIKey: "k", MaxRetries: 1})
	resp, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Empty(t, resp.ToolCalls[0].Arguments)
}

func TestOpenAIRoundTrip(t *testing.T) {
	p := NewOpenAIProvider(&ProviderConfig{APIKey: "k"})

	resp := &ChatResponse{
		Content: "",
		ToolCalls: []ToolCall{
			{ID: "call_a", Name: "create_primitive", Arguments: map[string]interface{}{"primitive_type": "cube"}},
			{ID: "call_b", Name: "list_objects", Arguments: map[string]interface{}{}},
		},
	}

	assistant := p.FormatAssistantMessage(resp)
	assert.Equal(t, "assistant", assistant.Role)
	require.Len(t, assistant.ToolCalls, 2)

	results := p.FormatToolResultsAsMessages([]ToolResultPayload{
		{Call: resp.ToolCalls[0], Content: "created Cube"},
		{Call: resp.ToolCalls[1], Content: "boom", IsError: true},
	})
	// OpenAI wants one tool message per result, order preserved.
	require.Len(t, results, 2)
	assert.Equal(t, "tool", results[0].Role)
	assert.Equal(t, "call_a", results[0].ToolCallID)
	assert.Equal(t, "call_b", results[1].ToolCallID)
	assert.Contains(t, results[1].Content, "ERROR:")

	// Wire conversion keeps the JSON-string argument encoding.
	wire := toOpenAIMessage(assistant)
	require.Len(t, wire.ToolCalls, 2)
	var args map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(wire.ToolCalls[0].Function.Arguments), &args))
	assert.Equal(t, "cube", args["primitive_type"])
}

func TestNormalizeOpenAIStopReason(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"stop", StopEndTurn},
		{"tool_calls", StopToolUse},
		{"length", StopMaxTokens},
		{"content_filter", "content_filter"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizeOpenAIStopReason(tt.in))
	}
}

func TestNewProviderByDialect(t *testing.T) {
	p, err := NewProviderByDialect(DialectAnthropic, &ProviderConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	p, err = NewProviderByDialect(DialectOpenAI, &ProviderConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = NewProviderByDialect("gemini", nil)
	assert.Error(t, err)
}

func TestMetricsProviderCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(anthropicOKBody("hello"))
	}))
	defer srv.Close()

	m := NewMetricsProvider(newTestAnthropic(t, srv.URL, 1))
	_, err := m.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.Calls)
	assert.Equal(t, int64(0), snap.Errors)
	assert.Equal(t, int64(15), snap.Tokens)
}
