package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scenecraft/scenecraft/internal/config"
	"github.com/scenecraft/scenecraft/internal/llm"
)

func TestHeuristicVerdict(t *testing.T) {
	v := NewValidator(config.Default(), nil)

	verdict := v.Validate(context.Background(), "User request: x\n\nExecuted steps:\n[OK] create_primitive: done\n")
	assert.True(t, verdict.Passed)
	assert.Equal(t, "heuristic", verdict.Source)

	verdict = v.Validate(context.Background(), "[OK] create_primitive: done\n[FAIL] set_material_color: not found\n")
	assert.False(t, verdict.Passed)
	assert.Len(t, verdict.Issues, 1)
	assert.NotEmpty(t, verdict.Suggestion)
}

func TestLLMValidationVerdict(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		textResponse(`{"passed": false, "issues": ["cube is blue, not red"], "suggestion": "set the base color"}`),
	}}
	cfg := config.Default()
	cfg.Agent.LLMValidation = true
	v := NewValidator(cfg, provider)

	verdict := v.Validate(context.Background(), "[OK] create_primitive: done\n")
	assert.False(t, verdict.Passed)
	assert.Equal(t, "llm", verdict.Source)
	assert.Equal(t, "set the base color", verdict.Suggestion)
}

func TestLLMValidationUnparseableIsAPass(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		textResponse("Looks good to me!"),
	}}
	cfg := config.Default()
	cfg.Agent.LLMValidation = true
	v := NewValidator(cfg, provider)

	verdict := v.Validate(context.Background(), "[OK] x: done\n")
	assert.True(t, verdict.Passed)
	assert.Equal(t, "llm", verdict.Source)
}

func TestLLMValidationErrorDegradesToHeuristic(t *testing.T) {
	provider := &scriptedProvider{err: assert.AnError}
	cfg := config.Default()
	cfg.Agent.LLMValidation = true
	v := NewValidator(cfg, provider)

	verdict := v.Validate(context.Background(), "[FAIL] x: broke\n")
	assert.False(t, verdict.Passed)
	assert.Equal(t, "heuristic", verdict.Source)
}
