package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/scenecraft/scenecraft/internal/config"
	"github.com/scenecraft/scenecraft/internal/conversation"
	"github.com/scenecraft/scenecraft/internal/llm"
	"github.com/scenecraft/scenecraft/internal/logging"
	"github.com/scenecraft/scenecraft/internal/parse"
	"github.com/scenecraft/scenecraft/internal/plan"
	"github.com/scenecraft/scenecraft/internal/session"
	"github.com/scenecraft/scenecraft/internal/tools"
)

// ExecOutcome is the result of one executor loop, either the direct path
// or a single plan step.
type ExecOutcome struct {
	Text              string
	Success           bool
	Err               string
	NeedsConfirmation bool
	Question          string
	ToolCalls         int
	ToolFailures      int
}

// Executor drives the bounded tool-calling loop against the provider.
type Executor struct {
	provider  llm.Provider
	registry  *tools.Registry
	conv      *conversation.Manager
	sess      *session.Session
	agentCfg  config.AgentConfig
	model     string
	maxTokens int
	cancelled func() bool
	log       *logging.Logger
}

// NewExecutor wires an executor for one turn. cancelled is polled after
// every model round trip and before every tool dispatch; nil means never.
func NewExecutor(cfg *config.Config, provider llm.Provider, registry *tools.Registry,
	conv *conversation.Manager, sess *session.Session, cancelled func() bool) *Executor {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	return &Executor{
		provider:  provider,
		registry:  registry,
		conv:      conv,
		sess:      sess,
		agentCfg:  cfg.Agent,
		model:     cfg.LLM.Model,
		maxTokens: cfg.LLM.MaxTokens,
		cancelled: cancelled,
		log:       logging.Global().WithComponent("executor"),
	}
}

// ExecuteSimple runs the direct path: the whole request in one loop with
// the intent's tool subset, on the shared turn conversation.
func (e *Executor) ExecuteSimple(ctx context.Context, intent string) ExecOutcome {
	subset := e.registry.ForIntent(intent)
	task := e.conv.UserRequest()
	return e.runLoop(ctx, e.conv, task, subset, e.agentCfg.MaxRoundsSimple, "")
}

// ExecuteStep runs one plan step and updates its status. Each step gets a
// fresh conversation seeded with its task and the previous step's summary;
// steps chain through the run log, not through each other's raw transcript.
func (e *Executor) ExecuteStep(ctx context.Context, step *plan.Step, intent string) ExecOutcome {
	step.Status = plan.StatusRunning

	subset := e.registry.ForIntent(intent)
	task := fmt.Sprintf("Step %d: %s", step.Index, step.Description)
	if prior := e.conv.LastStepSummary(); prior != "" {
		task += "\nPrevious step: " + prior
	}
	if step.Tool != "" && e.registry.Has(step.Tool) {
		task += fmt.Sprintf("\nSuggested tool: %s", step.Tool)
	}

	stepConv := conversation.NewManager(e.agentCfg)
	stepConv.SetUserRequest(task)
	out := e.runLoop(ctx, stepConv, task, subset, e.agentCfg.MaxRoundsPerStep, step.Tool)

	summary := out.Text
	if summary == "" {
		summary = out.Err
	}
	if out.Success {
		step.Status = plan.StatusSuccess
		step.Result = summary
	} else if out.NeedsConfirmation {
		// The step stays pending; it resumes after the user answers.
		step.Status = plan.StatusPending
	} else {
		step.Status = plan.StatusFailed
		step.Error = summary
	}
	e.conv.RecordStepResult(step.Index, step.Tool, out.Success, clipSummary(summary, e.agentCfg.ResultSummaryMaxChars))
	return out
}

// runLoop is the core tool loop. suggestedTool widens the corrective
// condition: a step that names a tool should not finish without any
// dispatch attempt.
func (e *Executor) runLoop(ctx context.Context, conv *conversation.Manager, task string,
	subset []*tools.ToolDefinition, maxRounds int, suggestedTool string) ExecOutcome {
	schemas := tools.Schemas(subset)
	known := e.registry.Names()
	systemPrompt := executorSystemPrompt(task)

	out := ExecOutcome{}
	correctiveUsed := false
	lastText := ""

	for round := 1; round <= maxRounds; round++ {
		if e.cancelled() {
			return e.cancelledOutcome(out)
		}

		resp, err := e.provider.Chat(ctx, &llm.ChatRequest{
			Model:        e.model,
			SystemPrompt: systemPrompt,
			Messages:     conv.Messages(),
			Tools:        schemas,
			MaxTokens:    e.maxTokens,
		})
		if err != nil {
			e.sess.AddError("executor", err)
			out.Err = err.Error()
			return out
		}
		e.sess.CountLLMCall(resp.PromptTokens, resp.CompletionTokens)
		e.log.Debug("round %d: stop=%s tools=%d", round, resp.StopReason, len(resp.ToolCalls))

		if e.cancelled() {
			return e.cancelledOutcome(out)
		}

		if resp.HasToolCalls() {
			conv.Append(e.provider.FormatAssistantMessage(resp))
			payloads, question := e.dispatch(ctx, resp.ToolCalls, &out)
			conv.Append(e.provider.FormatToolResultsAsMessages(payloads)...)
			conv.CompactIfNeeded()
			if question != "" {
				out.NeedsConfirmation = true
				out.Question = question
				return out
			}
			continue
		}

		text := strings.TrimSpace(resp.Content)
		lastText = text

		// Models sometimes emit tool calls as tags or pseudo-code in the
		// text channel. Recover those before burning the repair budget.
		tags := parse.ToolCallTags(text, known)
		if len(tags) == 0 {
			tags = parse.PseudoCalls(text, known)
		}
		if len(tags) > 0 {
			conv.Append(llm.Message{Role: "assistant", Content: text})
			calls := make([]llm.ToolCall, 0, len(tags))
			for _, tag := range tags {
				calls = append(calls, llm.ToolCall{ID: "tag_" + uuid.NewString(), Name: tag.Name, Arguments: tag.Args})
			}
			payloads, question := e.dispatch(ctx, calls, &out)
			conv.AppendSystemNote(tagFeedback(payloads))
			conv.CompactIfNeeded()
			if question != "" {
				out.NeedsConfirmation = true
				out.Question = question
				return out
			}
			continue
		}

		needsRepair := parse.LooksLikeScript(text) ||
			text == "" ||
			(suggestedTool != "" && out.ToolCalls == 0)
		if needsRepair && !correctiveUsed && round < maxRounds {
			correctiveUsed = true
			if text != "" {
				conv.Append(llm.Message{Role: "assistant", Content: text})
			}
			conv.AppendSystemNote(correctiveNote)
			e.log.Debug("corrective re-prompt issued")
			continue
		}
		if needsRepair {
			// The repair budget is spent (or there is no round left to spend
			// it in); a reply that still is not actionable fails the round.
			conv.Append(llm.Message{Role: "assistant", Content: text})
			out.Text = text
			out.Err = "no tool calls after the corrective re-prompt"
			return out
		}

		// Plain text is the completion signal.
		conv.Append(llm.Message{Role: "assistant", Content: text})
		out.Text = text
		out.Success = out.ToolCalls == 0 || out.ToolFailures < out.ToolCalls
		if !out.Success {
			out.Err = "all tool calls failed"
		}
		return out
	}

	out.Text = lastText
	out.Err = fmt.Sprintf("round budget (%d) exhausted", maxRounds)
	return out
}

// dispatch executes tool calls strictly in emission order. A failure does
// not stop the batch; every call gets a result fed back to the model.
// Returns the wire payloads and a pending ask_user question, if any.
func (e *Executor) dispatch(ctx context.Context, calls []llm.ToolCall, out *ExecOutcome) ([]llm.ToolResultPayload, string) {
	payloads := make([]llm.ToolResultPayload, 0, len(calls))
	question := ""

	for _, call := range calls {
		if e.cancelled() {
			payloads = append(payloads, llm.ToolResultPayload{
				Call: call, Content: "FAIL: request cancelled", IsError: true,
			})
			continue
		}

		res := e.registry.Execute(ctx, call.Name, call.Arguments)
		summary := parse.SummarizeToolResult(res, e.agentCfg.ResultSummaryMaxChars)

		out.ToolCalls++
		if !res.Success {
			out.ToolFailures++
		}
		e.sess.AddToolCall(call.Name, call.Arguments, res.Success, summary)
		e.log.Info("tool %s: success=%v (%s)", call.Name, res.Success, res.Duration)

		if call.Name == "ask_user" && res.Success && question == "" {
			question = questionFromArgs(call.Arguments)
		}

		payloads = append(payloads, llm.ToolResultPayload{
			Call:    call,
			Content: summary,
			IsError: !res.Success,
		})
	}
	return payloads, question
}

func (e *Executor) cancelledOutcome(out ExecOutcome) ExecOutcome {
	out.Err = "cancelled"
	out.Success = false
	return out
}

func questionFromArgs(args map[string]interface{}) string {
	if q, ok := args["question"].(string); ok && q != "" {
		return q
	}
	return "The assistant needs your confirmation to continue."
}

func tagFeedback(payloads []llm.ToolResultPayload) string {
	var sb strings.Builder
	sb.WriteString("Tool results:\n")
	for _, p := range payloads {
		status := "[OK]"
		if p.IsError {
			status = "[FAIL]"
		}
		fmt.Fprintf(&sb, "%s %s: %s\n", status, p.Call.Name, p.Content)
	}
	return sb.String()
}

func clipSummary(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
