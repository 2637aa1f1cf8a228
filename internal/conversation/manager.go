// Package conversation maintains the message history shared by the agent
// stages: the executor's working transcript, per-step result records, and
// the compaction that keeps long sessions inside the model's context.
package conversation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/scenecraft/scenecraft/internal/config"
	"github.com/scenecraft/scenecraft/internal/llm"
	"github.com/scenecraft/scenecraft/internal/logging"
)

// historySummaryHeader marks the synthetic message that replaces compacted
// history. Its presence is how a later compaction recognizes and merges
// earlier work instead of stacking summaries.
const historySummaryHeader = "[Earlier conversation, compacted]"

// StepRecord captures the outcome of one executed plan step.
type StepRecord struct {
	Step    int
	Tool    string
	Success bool
	Summary string
}

// Manager owns the conversation state for a single request. It is safe for
// concurrent use; bridge callbacks may append while the orchestrator reads.
type Manager struct {
	mu          sync.Mutex
	userRequest string
	messages    []llm.Message
	steps       []StepRecord

	charBudget int
	keepRecent int
	log        *logging.Logger
}

// NewManager builds a manager with the agent config's history limits.
func NewManager(cfg config.AgentConfig) *Manager {
	return &Manager{
		charBudget: cfg.HistoryCharBudget,
		keepRecent: cfg.HistoryKeepRecent,
		log:        logging.Global().WithComponent("conversation"),
	}
}

// ═══════════════════════════════════════════════════════════════════════
// History
// ═══════════════════════════════════════════════════════════════════════

// SetUserRequest records the request driving this turn and seeds the
// history with it.
func (m *Manager) SetUserRequest(request string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userRequest = request
	m.messages = append(m.messages, llm.Message{Role: "user", Content: request})
}

// UserRequest returns the request driving this turn.
func (m *Manager) UserRequest() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userRequest
}

// Append adds messages to the history in order.
func (m *Manager) Append(msgs ...llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msgs...)
}

// AppendSystemNote injects a corrective instruction as a user-role message.
func (m *Manager) AppendSystemNote(note string) {
	m.Append(llm.Message{Role: "user", Content: note})
}

// Messages returns a copy of the current history.
func (m *Manager) Messages() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len returns the number of messages in the history.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// HistoryChars returns the approximate character size of the history.
func (m *Manager) HistoryChars() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historyCharsLocked()
}

func (m *Manager) historyCharsLocked() int {
	total := 0
	for _, msg := range m.messages {
		total += len(msg.Content)
		for _, b := range msg.Blocks {
			total += len(b.Text) + len(b.Content)
		}
		for _, tc := range msg.ToolCalls {
			total += len(tc.Name) + 32
		}
	}
	return total
}

// ═══════════════════════════════════════════════════════════════════════
// Compaction
// ═══════════════════════════════════════════════════════════════════════

// CompactIfNeeded folds older history into a single summary message when
// the character budget is exceeded. Returns true when the history changed.
// The operation is idempotent: compacting an already-compacted history is
// a no-op until new messages push it back over budget.
func (m *Manager) CompactIfNeeded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.historyCharsLocked() <= m.charBudget {
		return false
	}
	return m.compactLocked()
}

func (m *Manager) compactLocked() bool {
	keep := m.keepRecent
	if keep < 1 {
		keep = 1
	}
	if len(m.messages) <= keep {
		return false
	}

	cut := len(m.messages) - keep
	// Never let the kept window open on a tool-result message; its paired
	// assistant tool call would be gone and providers reject the orphan.
	for cut > 0 && isToolResult(m.messages[cut]) {
		cut--
	}
	if cut == 0 {
		return false
	}
	if cut == 1 && isSummaryMessage(m.messages[0]) {
		// Only the previous summary would be folded; nothing to gain.
		return false
	}

	var lines []string
	for _, msg := range m.messages[:cut] {
		if isSummaryMessage(msg) {
			// Merge the previous summary's lines instead of nesting it.
			lines = append(lines, summaryLines(msg)...)
			continue
		}
		lines = append(lines, summarizeMessage(msg))
	}

	summary := llm.Message{
		Role:    "user",
		Content: historySummaryHeader + "\n" + strings.Join(lines, "\n"),
	}
	kept := make([]llm.Message, 0, keep+1)
	kept = append(kept, summary)
	kept = append(kept, m.messages[cut:]...)
	m.messages = kept

	m.log.Debug("compacted history: %d messages folded, %d kept", cut, keep)
	return true
}

func isSummaryMessage(msg llm.Message) bool {
	return msg.Role == "user" && strings.HasPrefix(msg.Content, historySummaryHeader)
}

func summaryLines(msg llm.Message) []string {
	lines := strings.Split(msg.Content, "\n")
	if len(lines) > 0 && lines[0] == historySummaryHeader {
		lines = lines[1:]
	}
	return lines
}

func isToolResult(msg llm.Message) bool {
	if msg.Role == "tool" || msg.ToolCallID != "" {
		return true
	}
	for _, b := range msg.Blocks {
		if b.Type == "tool_result" {
			return true
		}
	}
	return false
}

// summarizeMessage renders one history message as a single summary line.
func summarizeMessage(msg llm.Message) string {
	if isToolResult(msg) {
		return "- tool result: " + clipLine(resultText(msg), 100)
	}

	var toolNames []string
	for _, tc := range msg.ToolCalls {
		toolNames = append(toolNames, tc.Name)
	}
	for _, b := range msg.Blocks {
		if b.Type == "tool_use" {
			toolNames = append(toolNames, b.Name)
		}
	}
	if len(toolNames) > 0 {
		return fmt.Sprintf("- assistant called %d tool(s): %s",
			len(toolNames), strings.Join(toolNames, ", "))
	}

	text := msg.Content
	if text == "" {
		for _, b := range msg.Blocks {
			if b.Type == "text" {
				text = b.Text
				break
			}
		}
	}
	return fmt.Sprintf("- %s: %s", msg.Role, clipLine(text, 100))
}

func resultText(msg llm.Message) string {
	if msg.Content != "" {
		return msg.Content
	}
	for _, b := range msg.Blocks {
		if b.Type == "tool_result" {
			return b.Content
		}
	}
	return ""
}

func clipLine(s string, max int) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// ═══════════════════════════════════════════════════════════════════════
// Step records
// ═══════════════════════════════════════════════════════════════════════

// RecordStepResult stores the outcome of a finished plan step.
func (m *Manager) RecordStepResult(step int, tool string, success bool, summary string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, StepRecord{Step: step, Tool: tool, Success: success, Summary: summary})
}

// LastStepSummary returns the most recent step record, formatted, or ""
// when no step has run.
func (m *Manager) LastStepSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.steps) == 0 {
		return ""
	}
	return formatStep(m.steps[len(m.steps)-1])
}

// AllStepsSummary returns one formatted line per recorded step.
func (m *Manager) AllStepsSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sb strings.Builder
	for _, rec := range m.steps {
		sb.WriteString(formatStep(rec))
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatStep(rec StepRecord) string {
	status := "[OK]"
	if !rec.Success {
		status = "[FAIL]"
	}
	tool := rec.Tool
	if tool == "" {
		tool = "(no tool)"
	}
	return fmt.Sprintf("%s %s: %s", status, tool, rec.Summary)
}

// ═══════════════════════════════════════════════════════════════════════
// Stage contexts
// ═══════════════════════════════════════════════════════════════════════

// ContextForValidator renders the material the advisory validator judges:
// the original request and what actually happened.
func (m *Manager) ContextForValidator() string {
	var sb strings.Builder
	sb.WriteString("User request: ")
	sb.WriteString(m.UserRequest())
	sb.WriteString("\n\nExecuted steps:\n")
	steps := m.AllStepsSummary()
	if steps == "" {
		steps = "(none)\n"
	}
	sb.WriteString(steps)
	return sb.String()
}

// ContextForPlanner renders the planner's view: the request plus results
// of any steps already completed, so re-planning sees progress.
func (m *Manager) ContextForPlanner() string {
	var sb strings.Builder
	sb.WriteString(m.UserRequest())
	if steps := m.AllStepsSummary(); steps != "" {
		sb.WriteString("\n\nProgress so far:\n")
		sb.WriteString(steps)
	}
	return sb.String()
}
