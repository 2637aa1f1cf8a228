// Package session records what the agent did on behalf of one user turn:
// an append-only action log, turn metrics, and persistence to SQLite plus
// a JSONL metrics stream.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActionType classifies a session log entry.
type ActionType string

const (
	ActionToolCall ActionType = "tool_call"
	ActionMessage  ActionType = "message"
	ActionError    ActionType = "error"
	ActionMetric   ActionType = "metric"
)

// Truncation limits per action type. Raw payloads can be huge; the session
// log is for audit, not replay.
const (
	maxToolDetail    = 2000
	maxMessageDetail = 1000
	maxErrorDetail   = 500
)

// Action is one entry in the session log.
type Action struct {
	Type    ActionType             `json:"type"`
	At      time.Time              `json:"at"`
	Tool    string                 `json:"tool,omitempty"`
	Success bool                   `json:"success,omitempty"`
	Detail  string                 `json:"detail,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Metrics aggregates the cost of one turn.
type Metrics struct {
	LLMCalls     int   `json:"llm_calls"`
	ToolCalls    int   `json:"tool_calls"`
	ToolFailures int   `json:"tool_failures"`
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	DurationMS   int64 `json:"duration_ms"`
}

// Session is the durable record of one user turn. Appends are serialized
// behind a mutex; bridge callbacks race the orchestrator here.
type Session struct {
	mu sync.Mutex

	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	UserRequest string     `json:"user_request"`
	Outcome     string     `json:"outcome,omitempty"`
	FinalResult string     `json:"final_result,omitempty"`
	Actions     []Action   `json:"actions"`
	Metrics     Metrics    `json:"metrics"`
}

// New starts a session for the given request.
func New(userRequest string) *Session {
	return &Session{
		ID:          uuid.NewString(),
		StartedAt:   time.Now().UTC(),
		UserRequest: userRequest,
	}
}

// AddToolCall records a tool dispatch and its outcome.
func (s *Session) AddToolCall(tool string, args map[string]interface{}, success bool, detail string) {
	s.append(Action{
		Type:    ActionToolCall,
		At:      time.Now().UTC(),
		Tool:    tool,
		Success: success,
		Detail:  truncate(detail, maxToolDetail),
		Data:    args,
	})
	s.mu.Lock()
	s.Metrics.ToolCalls++
	if !success {
		s.Metrics.ToolFailures++
	}
	s.mu.Unlock()
}

// AddMessage records a model or user message.
func (s *Session) AddMessage(role, text string) {
	s.append(Action{
		Type:   ActionMessage,
		At:     time.Now().UTC(),
		Detail: truncate(text, maxMessageDetail),
		Data:   map[string]interface{}{"role": role},
	})
}

// AddError records a failure. The session stays open; Close always runs,
// fatal errors included.
func (s *Session) AddError(context string, err error) {
	detail := context
	if err != nil {
		detail = context + ": " + err.Error()
	}
	s.append(Action{
		Type:   ActionError,
		At:     time.Now().UTC(),
		Detail: truncate(detail, maxErrorDetail),
	})
}

// AddMetric records a named measurement.
func (s *Session) AddMetric(name string, value interface{}) {
	s.append(Action{
		Type: ActionMetric,
		At:   time.Now().UTC(),
		Data: map[string]interface{}{name: value},
	})
}

// CountLLMCall bumps the model-call counter and token totals.
func (s *Session) CountLLMCall(inputTokens, outputTokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metrics.LLMCalls++
	s.Metrics.InputTokens += inputTokens
	s.Metrics.OutputTokens += outputTokens
}

// Close marks the session finished. Idempotent; the first call wins.
func (s *Session) Close(outcome, finalResult string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndedAt != nil {
		return
	}
	now := time.Now().UTC()
	s.EndedAt = &now
	s.Outcome = outcome
	s.FinalResult = truncate(finalResult, maxMessageDetail)
	s.Metrics.DurationMS = now.Sub(s.StartedAt).Milliseconds()
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.EndedAt != nil
}

// Snapshot returns a copy safe to persist while callbacks keep appending.
func (s *Session) Snapshot() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := &Session{
		ID:          s.ID,
		StartedAt:   s.StartedAt,
		EndedAt:     s.EndedAt,
		UserRequest: s.UserRequest,
		Outcome:     s.Outcome,
		FinalResult: s.FinalResult,
		Metrics:     s.Metrics,
		Actions:     make([]Action, len(s.Actions)),
	}
	copy(cp.Actions, s.Actions)
	return cp
}

// ActionsJSON renders the action log for storage.
func (s *Session) ActionsJSON() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := json.Marshal(s.Actions)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Session) append(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Actions = append(s.Actions, a)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
