package agents

import (
	"context"

	"github.com/scenecraft/scenecraft/internal/config"
	"github.com/scenecraft/scenecraft/internal/llm"
	"github.com/scenecraft/scenecraft/internal/logging"
	"github.com/scenecraft/scenecraft/internal/parse"
	"github.com/scenecraft/scenecraft/internal/plan"
	"github.com/scenecraft/scenecraft/internal/tools"
)

// Planner turns a complex request into an ordered step plan.
type Planner struct {
	provider  llm.Provider
	registry  *tools.Registry
	model     string
	maxTokens int
	log       *logging.Logger
}

// NewPlanner builds a planner over the registry.
func NewPlanner(cfg *config.Config, provider llm.Provider, registry *tools.Registry) *Planner {
	return &Planner{
		provider:  provider,
		registry:  registry,
		model:     cfg.LLM.Model,
		maxTokens: cfg.LLM.MaxTokens,
		log:       logging.Global().WithComponent("planner"),
	}
}

// Plan asks the model for a step plan. The prompt carries only the routed
// intent's tool summaries to keep it compact. The reply goes through the
// total parse chain, so the only error path is the transport itself; a
// reply that parses to zero steps is a valid empty plan the caller
// degrades on.
func (p *Planner) Plan(ctx context.Context, intent, plannerContext string) (*plan.Plan, error) {
	catalog := tools.Summaries(p.registry.ForIntent(intent))

	resp, err := p.provider.Chat(ctx, &llm.ChatRequest{
		Model:        p.model,
		SystemPrompt: plannerSystemPrompt(catalog),
		Messages:     []llm.Message{{Role: "user", Content: plannerContext}},
		MaxTokens:    p.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	steps := parse.Plan(resp.Content, p.registry.Names())
	p.dropUnknownTools(steps)
	p.log.Info("planned %d step(s)", steps.Len())
	return steps, nil
}

// dropUnknownTools clears tool suggestions the registry cannot honor; the
// step still runs with the model choosing tools directly.
func (p *Planner) dropUnknownTools(steps *plan.Plan) {
	if steps == nil {
		return
	}
	for _, s := range steps.Steps {
		if s.Tool != "" && !p.registry.Has(s.Tool) {
			p.log.Warn("plan step %d names unknown tool %q, clearing", s.Index, s.Tool)
			s.Tool = ""
		}
	}
}
