// Package agents contains the orchestration pipeline: router, planner,
// executor, validator, and the orchestrator state machine that sequences
// them for one user turn.
package agents

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/scenecraft/scenecraft/internal/bridge"
	"github.com/scenecraft/scenecraft/internal/config"
	"github.com/scenecraft/scenecraft/internal/conversation"
	"github.com/scenecraft/scenecraft/internal/llm"
	"github.com/scenecraft/scenecraft/internal/logging"
	"github.com/scenecraft/scenecraft/internal/plan"
	"github.com/scenecraft/scenecraft/internal/session"
	"github.com/scenecraft/scenecraft/internal/tools"
)

// OutcomeKind enumerates the terminal states of one user turn.
type OutcomeKind string

const (
	// OutcomeCompleted means the request was carried out.
	OutcomeCompleted OutcomeKind = "completed"
	// OutcomeNeedsConfirmation means execution paused on an ask_user call.
	OutcomeNeedsConfirmation OutcomeKind = "needs_confirmation"
	// OutcomeNeedsSecondaryAnalysis means work was done but the advisory
	// validator flagged issues worth a follow-up pass.
	OutcomeNeedsSecondaryAnalysis OutcomeKind = "needs_secondary_analysis"
	// OutcomeFailed means the turn produced no usable result.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the result of one user turn.
type Outcome struct {
	Kind      OutcomeKind
	Message   string
	Question  string
	Issues    []string
	SessionID string
	Route     Route
}

// Orchestrator sequences the pipeline stages for user turns. One turn runs
// at a time; Cancel aborts the turn in flight.
type Orchestrator struct {
	cfg      *config.Config
	provider llm.Provider
	registry *tools.Registry
	bridge   *bridge.Bridge
	store    *session.Store
	metrics  *session.MetricsWriter

	router    *Router
	planner   *Planner
	validator *Validator

	cancelled atomic.Bool
	log       *logging.Logger
}

// NewOrchestrator wires the pipeline. store and metrics may be nil; the
// turn then runs without persistence.
func NewOrchestrator(cfg *config.Config, provider llm.Provider, registry *tools.Registry,
	br *bridge.Bridge, store *session.Store, metrics *session.MetricsWriter) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		provider:  provider,
		registry:  registry,
		bridge:    br,
		store:     store,
		metrics:   metrics,
		router:    NewRouter(cfg, provider),
		planner:   NewPlanner(cfg, provider, registry),
		validator: NewValidator(cfg, provider),
		log:       logging.Global().WithComponent("orchestrator"),
	}
}

// Cancel aborts the turn in flight. Queued host work is dropped via the
// bridge watermark; the loop stops at its next checkpoint.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
	if o.bridge != nil {
		o.bridge.CancelPending()
	}
}

func (o *Orchestrator) isCancelled() bool {
	return o.cancelled.Load()
}

// HandleRequest runs one user turn end to end. It always returns an
// Outcome and always closes and persists the session, failures included.
func (o *Orchestrator) HandleRequest(ctx context.Context, request string) Outcome {
	o.cancelled.Store(false)

	sess := session.New(request)
	defer o.persist(sess)

	request = strings.TrimSpace(request)
	if request == "" {
		return o.finish(sess, Outcome{Kind: OutcomeFailed, Message: "empty request", SessionID: sess.ID})
	}

	conv := conversation.NewManager(o.cfg.Agent)
	conv.SetUserRequest(request)

	route := o.router.Route(ctx, request)
	sess.AddMetric("route", map[string]interface{}{
		"intent":     route.Intent,
		"domain":     route.Domain,
		"complexity": route.Complexity,
		"confidence": route.Confidence,
		"source":     route.Source,
	})
	o.log.Info("turn start: intent=%s complexity=%s", route.Intent, route.Complexity)

	exec := NewExecutor(o.cfg, o.provider, o.registry, conv, sess, o.isCancelled)

	var outcome Outcome
	if route.Complex() {
		outcome = o.runPlanned(ctx, route, conv, exec, sess)
	} else {
		outcome = o.outcomeFromExec(exec.ExecuteSimple(ctx, route.Intent), sess)
	}
	outcome.Route = route
	outcome.SessionID = sess.ID
	return o.finish(sess, outcome)
}

// runPlanned is the complex path: plan, execute steps in dependency order,
// then validate. Planning failure degrades to the direct path rather than
// failing the turn.
func (o *Orchestrator) runPlanned(ctx context.Context, route Route, conv *conversation.Manager,
	exec *Executor, sess *session.Session) Outcome {

	pl, err := o.planner.Plan(ctx, route.Intent, conv.ContextForPlanner())
	if err != nil {
		sess.AddError("planner", err)
		o.log.Warn("planning failed, degrading to direct path: %v", err)
		return o.outcomeFromExec(exec.ExecuteSimple(ctx, route.Intent), sess)
	}
	if pl.Empty() {
		o.log.Info("empty plan, degrading to direct path")
		return o.outcomeFromExec(exec.ExecuteSimple(ctx, route.Intent), sess)
	}
	sess.AddMessage("planner", pl.Summary())

	for {
		if o.isCancelled() {
			return Outcome{Kind: OutcomeFailed, Message: "request cancelled"}
		}

		step := pl.NextStep()
		if step == nil {
			if pl.Blocked() {
				pl.SkipBlocked("dependency failed")
				continue
			}
			break
		}

		out := exec.ExecuteStep(ctx, step, route.Intent)
		if out.NeedsConfirmation {
			return Outcome{
				Kind:     OutcomeNeedsConfirmation,
				Question: out.Question,
				Message:  conv.AllStepsSummary(),
			}
		}
		if out.Err == "cancelled" {
			return Outcome{Kind: OutcomeFailed, Message: "request cancelled"}
		}
	}

	verdict := o.validator.Validate(ctx, conv.ContextForValidator())
	sess.AddMetric("validation", map[string]interface{}{
		"passed": verdict.Passed,
		"source": verdict.Source,
	})

	message := strings.TrimSpace(conv.AllStepsSummary())
	succeeded, failed := countSteps(pl)

	switch {
	case succeeded == 0:
		return Outcome{Kind: OutcomeFailed, Message: message}
	case !verdict.Passed:
		if verdict.Suggestion != "" {
			message += "\n\nSuggestion: " + verdict.Suggestion
		}
		return Outcome{Kind: OutcomeNeedsSecondaryAnalysis, Message: message, Issues: verdict.Issues}
	case failed > 0:
		return Outcome{
			Kind:    OutcomeNeedsSecondaryAnalysis,
			Message: message,
			Issues:  []string{"some steps failed or were skipped"},
		}
	default:
		return Outcome{Kind: OutcomeCompleted, Message: message}
	}
}

func (o *Orchestrator) outcomeFromExec(out ExecOutcome, sess *session.Session) Outcome {
	switch {
	case out.NeedsConfirmation:
		return Outcome{Kind: OutcomeNeedsConfirmation, Question: out.Question, Message: out.Text}
	case out.Success:
		return Outcome{Kind: OutcomeCompleted, Message: out.Text}
	default:
		msg := out.Err
		if out.Text != "" {
			msg = out.Text
		}
		sess.AddError("executor", nil)
		return Outcome{Kind: OutcomeFailed, Message: msg}
	}
}

func (o *Orchestrator) finish(sess *session.Session, outcome Outcome) Outcome {
	sess.Close(string(outcome.Kind), outcome.Message)
	return outcome
}

// persist saves the session no matter how the turn ended.
func (o *Orchestrator) persist(sess *session.Session) {
	if !sess.Closed() {
		sess.Close(string(OutcomeFailed), "turn aborted")
	}
	if o.store != nil {
		if err := o.store.Save(context.Background(), sess); err != nil {
			o.log.Error("save session %s: %v", sess.ID, err)
		}
	}
	if o.metrics != nil {
		o.metrics.RecordTurn(sess)
	}
}

func countSteps(pl *plan.Plan) (succeeded, failed int) {
	for _, s := range pl.Steps {
		switch s.Status {
		case plan.StatusSuccess:
			succeeded++
		case plan.StatusFailed, plan.StatusSkipped:
			failed++
		}
	}
	return succeeded, failed
}
