package agents

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenecraft/scenecraft/internal/config"
	"github.com/scenecraft/scenecraft/internal/llm"
	"github.com/scenecraft/scenecraft/internal/session"
	"github.com/scenecraft/scenecraft/internal/tools"
)

func newOrchestrator(t *testing.T, provider llm.Provider, host *hostStub, persist bool) (*Orchestrator, *session.Store) {
	t.Helper()
	cfg := config.Default()
	registry := tools.NewBuiltinRegistry(host)

	var store *session.Store
	var metrics *session.MetricsWriter
	if persist {
		dir := t.TempDir()
		var err error
		store, err = session.OpenStore(filepath.Join(dir, "sessions.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		metrics, err = session.NewMetricsWriter(filepath.Join(dir, "metrics.jsonl"))
		require.NoError(t, err)
		t.Cleanup(func() { metrics.Close() })
	}

	return NewOrchestrator(cfg, provider, registry, nil, store, metrics), store
}

func TestHandleRequestSimplePath(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		toolResponse(
			llm.ToolCall{ID: "t1", Name: "create_primitive", Arguments: map[string]interface{}{"shape": "cube", "name": "Cube"}},
			llm.ToolCall{ID: "t2", Name: "set_material_color", Arguments: map[string]interface{}{"object_name": "Cube", "color": []interface{}{1.0, 0.0, 0.0, 1.0}}},
		),
		textResponse("Created a red cube."),
	}}
	host := &hostStub{}
	o, store := newOrchestrator(t, provider, host, true)

	outcome := o.HandleRequest(context.Background(), "create a red cube")
	assert.Equal(t, OutcomeCompleted, outcome.Kind)
	assert.Equal(t, "Created a red cube.", outcome.Message)
	assert.Equal(t, "create", outcome.Route.Intent)
	assert.Equal(t, []string{"create_primitive", "set_material_color"}, host.order())

	// The session was persisted with both tool calls.
	saved, err := store.Get(context.Background(), outcome.SessionID)
	require.NoError(t, err)
	assert.Equal(t, string(OutcomeCompleted), saved.Outcome)
	assert.Equal(t, 2, saved.Metrics.ToolCalls)
	require.NotNil(t, saved.EndedAt)
}

func TestHandleRequestComplexPath(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		// Planner.
		textResponse(`{"plan": [
			{"step": 1, "tool": "create_primitive", "description": "create the character base"},
			{"step": 2, "tool": "toon_apply_shader", "description": "apply the toon look", "depends_on": [1]}
		]}`),
		// Step 1.
		toolResponse(llm.ToolCall{ID: "t1", Name: "create_primitive", Arguments: map[string]interface{}{"shape": "sphere"}}),
		textResponse("Base created."),
		// Step 2.
		toolResponse(llm.ToolCall{ID: "t2", Name: "toon_apply_shader", Arguments: map[string]interface{}{"object_name": "Sphere"}}),
		textResponse("Toon shader applied."),
	}}
	host := &hostStub{}
	o, _ := newOrchestrator(t, provider, host, false)

	outcome := o.HandleRequest(context.Background(), "give the character a toon look with an outline")
	assert.Equal(t, OutcomeCompleted, outcome.Kind)
	assert.Equal(t, "toon_shader", outcome.Route.Intent)
	assert.Contains(t, outcome.Message, "[OK] create_primitive")
	assert.Contains(t, outcome.Message, "[OK] toon_apply_shader")
	assert.Equal(t, []string{"create_primitive", "toon_apply_shader"}, host.order())
}

func TestHandleRequestStepFailureFlagsSecondaryAnalysis(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		textResponse(`{"plan": [
			{"step": 1, "tool": "create_primitive", "description": "create the base"},
			{"step": 2, "tool": "toon_apply_shader", "description": "toon it", "depends_on": [1]}
		]}`),
		// Step 1 fails on the host.
		toolResponse(llm.ToolCall{ID: "t1", Name: "create_primitive", Arguments: map[string]interface{}{"shape": "cube"}}),
		textResponse("Could not create the base."),
	}}
	host := &hostStub{fail: map[string]string{"create_primitive": "host refused"}}
	o, _ := newOrchestrator(t, provider, host, false)

	outcome := o.HandleRequest(context.Background(), "give the character a toon look with an outline")
	// Step 1 failed, step 2 was skipped as blocked, nothing succeeded.
	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.Contains(t, outcome.Message, "[FAIL]")
	// The blocked step never dispatched.
	assert.Equal(t, []string{"create_primitive"}, host.order())
}

func TestHandleRequestEmptyPlanDegradesToDirect(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		// Planner returns nothing usable.
		textResponse(""),
		// Direct path takes over.
		toolResponse(llm.ToolCall{ID: "t1", Name: "toon_apply_shader", Arguments: map[string]interface{}{"object_name": "Cube"}}),
		textResponse("Toon look applied."),
	}}
	host := &hostStub{}
	o, _ := newOrchestrator(t, provider, host, false)

	outcome := o.HandleRequest(context.Background(), "give the character a toon look with an outline")
	assert.Equal(t, OutcomeCompleted, outcome.Kind)
	assert.Equal(t, "Toon look applied.", outcome.Message)
}

func TestHandleRequestNeedsConfirmation(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		toolResponse(llm.ToolCall{ID: "t1", Name: "ask_user", Arguments: map[string]interface{}{"question": "Really delete everything?"}}),
	}}
	o, _ := newOrchestrator(t, provider, &hostStub{}, false)

	outcome := o.HandleRequest(context.Background(), "delete the whole scene")
	assert.Equal(t, OutcomeNeedsConfirmation, outcome.Kind)
	assert.Equal(t, "Really delete everything?", outcome.Question)
}

func TestHandleRequestEmptyRequest(t *testing.T) {
	o, store := newOrchestrator(t, &scriptedProvider{}, &hostStub{}, true)

	outcome := o.HandleRequest(context.Background(), "   ")
	assert.Equal(t, OutcomeFailed, outcome.Kind)

	// Even the degenerate turn gets a closed, persisted session.
	saved, err := store.Get(context.Background(), outcome.SessionID)
	require.NoError(t, err)
	assert.Equal(t, string(OutcomeFailed), saved.Outcome)
}

func TestHandleRequestProviderErrorClosesSession(t *testing.T) {
	provider := &scriptedProvider{err: assert.AnError}
	o, store := newOrchestrator(t, provider, &hostStub{}, true)

	outcome := o.HandleRequest(context.Background(), "create a cube")
	assert.Equal(t, OutcomeFailed, outcome.Kind)

	saved, err := store.Get(context.Background(), outcome.SessionID)
	require.NoError(t, err)
	require.NotNil(t, saved.EndedAt)
	assert.Equal(t, string(OutcomeFailed), saved.Outcome)
}

func TestCancelAbortsTurn(t *testing.T) {
	host := &hostStub{}
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		toolResponse(llm.ToolCall{ID: "t1", Name: "create_primitive", Arguments: map[string]interface{}{"shape": "cube"}}),
	}}
	o, _ := newOrchestrator(t, provider, host, false)
	provider.onChat = func(call int, req *llm.ChatRequest) {
		// Cancel mid-turn, right as the first model call goes out.
		o.Cancel()
	}

	outcome := o.HandleRequest(context.Background(), "create a cube")
	assert.Equal(t, OutcomeFailed, outcome.Kind)
	// The checkpoint after the round trip fired before any dispatch.
	assert.Empty(t, host.order())
}
