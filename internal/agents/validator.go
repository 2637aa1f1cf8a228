package agents

import (
	"context"
	"strings"

	"github.com/scenecraft/scenecraft/internal/config"
	"github.com/scenecraft/scenecraft/internal/llm"
	"github.com/scenecraft/scenecraft/internal/logging"
	"github.com/scenecraft/scenecraft/internal/parse"
)

// Verdict is the advisory validation result. It can annotate the outcome
// with issues and a suggestion but never blocks completion.
type Verdict struct {
	Passed     bool
	Issues     []string
	Suggestion string
	// Source records which check produced the verdict: "heuristic" or "llm".
	Source string
}

// Validator performs the post-execution check. The heuristic pass looks at
// step records; the optional LLM pass asks the model to judge.
type Validator struct {
	provider  llm.Provider
	useLLM    bool
	model     string
	maxTokens int
	log       *logging.Logger
}

// NewValidator builds a validator. The LLM pass runs only when enabled in
// config and a provider is present.
func NewValidator(cfg *config.Config, provider llm.Provider) *Validator {
	return &Validator{
		provider:  provider,
		useLLM:    cfg.Agent.LLMValidation && provider != nil,
		model:     cfg.LLM.Model,
		maxTokens: cfg.LLM.MaxTokens,
		log:       logging.Global().WithComponent("validator"),
	}
}

// Validate judges the executed turn. Total: any failure in the LLM path
// degrades to the heuristic verdict, and the heuristic always answers.
func (v *Validator) Validate(ctx context.Context, validatorContext string) Verdict {
	verdict := heuristicVerdict(validatorContext)

	if v.useLLM {
		if llmVerdict, ok := v.validateByLLM(ctx, validatorContext); ok {
			return llmVerdict
		}
		v.log.Debug("llm validation unavailable, keeping heuristic verdict")
	}
	return verdict
}

// heuristicVerdict scans the step summary lines for failures.
func heuristicVerdict(validatorContext string) Verdict {
	verdict := Verdict{Passed: true, Source: "heuristic"}
	for _, line := range strings.Split(validatorContext, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "[FAIL]") {
			verdict.Passed = false
			verdict.Issues = append(verdict.Issues, strings.TrimSpace(line))
		}
	}
	if !verdict.Passed {
		verdict.Suggestion = "Retry the failed steps or rephrase the request."
	}
	return verdict
}

func (v *Validator) validateByLLM(ctx context.Context, validatorContext string) (Verdict, bool) {
	resp, err := v.provider.Chat(ctx, &llm.ChatRequest{
		Model:        v.model,
		SystemPrompt: validatorSystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: validatorContext}},
		MaxTokens:    min(v.maxTokens, 512),
	})
	if err != nil {
		v.log.Warn("llm validation failed: %v", err)
		return Verdict{}, false
	}

	parsed, ok := parse.ValidationVerdict(resp.Content)
	if !ok {
		// Advisory check with an unparseable reply counts as a pass.
		return Verdict{Passed: true, Source: "llm"}, true
	}
	return Verdict{
		Passed:     parsed.Passed,
		Issues:     parsed.Issues,
		Suggestion: parsed.Suggestion,
		Source:     "llm",
	}, true
}
