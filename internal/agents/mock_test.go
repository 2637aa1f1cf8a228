package agents

import (
	"context"
	"fmt"
	"sync"

	"github.com/scenecraft/scenecraft/internal/llm"
	"github.com/scenecraft/scenecraft/internal/tools"
)

// scriptedProvider replays canned responses in order. The formatting
// methods follow the Anthropic-ish shape: tool calls ride on the assistant
// message, results come back as one tool message per call.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*llm.ChatResponse
	requests  []*llm.ChatRequest
	onChat    func(call int, req *llm.ChatRequest)
	err       error
}

func (p *scriptedProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	call := len(p.requests)
	p.requests = append(p.requests, req)
	if p.onChat != nil {
		p.onChat(call, req)
	}
	if p.err != nil {
		return nil, p.err
	}
	if call >= len(p.responses) {
		return nil, fmt.Errorf("scripted provider exhausted after %d call(s)", len(p.responses))
	}
	return p.responses[call], nil
}

func (p *scriptedProvider) Name() string    { return "scripted" }
func (p *scriptedProvider) Available() bool { return true }

func (p *scriptedProvider) FormatAssistantMessage(resp *llm.ChatResponse) llm.Message {
	return llm.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls}
}

func (p *scriptedProvider) FormatToolResultsAsMessages(results []llm.ToolResultPayload) []llm.Message {
	msgs := make([]llm.Message, 0, len(results))
	for _, r := range results {
		msgs = append(msgs, llm.Message{Role: "tool", ToolCallID: r.Call.ID, Content: r.Content})
	}
	return msgs
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func textResponse(text string) *llm.ChatResponse {
	return &llm.ChatResponse{Content: text, StopReason: llm.StopEndTurn, PromptTokens: 10, CompletionTokens: 5}
}

func toolResponse(calls ...llm.ToolCall) *llm.ChatResponse {
	return &llm.ChatResponse{ToolCalls: calls, StopReason: llm.StopToolUse, PromptTokens: 10, CompletionTokens: 5}
}

// hostStub is a tools.Invoker that succeeds (or fails, per tool) and
// records dispatch order.
type hostStub struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]string
}

func (h *hostStub) Invoke(ctx context.Context, name string, args map[string]interface{}) *tools.Result {
	h.mu.Lock()
	h.calls = append(h.calls, name)
	reason := h.fail[name]
	h.mu.Unlock()

	if reason != "" {
		return &tools.Result{Tool: name, Success: false, Error: reason}
	}
	return &tools.Result{Tool: name, Success: true, Output: name + " done"}
}

func (h *hostStub) order() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.calls))
	copy(out, h.calls)
	return out
}
