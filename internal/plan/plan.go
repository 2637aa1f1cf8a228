// Package plan defines the execution plan model: an ordered list of steps
// with index-based dependencies, produced by the planner and consumed one
// step at a time by the executor.
package plan

import (
	"fmt"
	"strings"
)

// StepStatus tracks the lifecycle of one plan step.
type StepStatus string

const (
	StatusPending StepStatus = "pending"
	StatusRunning StepStatus = "running"
	StatusSuccess StepStatus = "success"
	StatusFailed  StepStatus = "failed"
	StatusSkipped StepStatus = "skipped"
)

// IsValid reports whether the status is one of the defined values.
func (s StepStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSuccess, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Step is one unit of an execution plan.
type Step struct {
	// Index is the 1-based step number.
	Index int `json:"step"`

	// Tool is the suggested tool. Empty means "let the model choose tools
	// directly" during execution.
	Tool string `json:"tool,omitempty"`

	// Params are suggested arguments for the tool.
	Params map[string]interface{} `json:"params,omitempty"`

	// Description of what the step should accomplish.
	Description string `json:"description"`

	// DependsOn lists step indices that must succeed first.
	DependsOn []int `json:"depends_on,omitempty"`

	// Status is mutable; a step may only leave pending once every index in
	// DependsOn is success.
	Status StepStatus `json:"status"`

	// Result summary once the step finished.
	Result string `json:"result,omitempty"`

	// Error detail when the step failed.
	Error string `json:"error,omitempty"`
}

// Plan is an ordered list of steps. Lifetime is one complex request.
type Plan struct {
	Steps []*Step `json:"steps"`

	// Raw keeps the original model output for logging and debugging.
	Raw string `json:"-"`
}

// New builds a plan from steps, normalizing indices and statuses.
func New(steps []*Step) *Plan {
	for i, s := range steps {
		if s.Index == 0 {
			s.Index = i + 1
		}
		if !s.Status.IsValid() || s.Status == "" {
			s.Status = StatusPending
		}
	}
	return &Plan{Steps: steps}
}

// Empty reports whether the plan has no steps. An empty plan is a valid,
// distinguishable outcome, not an error; the orchestrator degrades to the
// direct execution path.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Steps) == 0
}

// Len returns the number of steps.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Steps)
}

// Get returns the step with the given index.
func (p *Plan) Get(index int) (*Step, bool) {
	for _, s := range p.Steps {
		if s.Index == index {
			return s, true
		}
	}
	return nil, false
}

// NextStep returns the first pending step whose dependencies have all
// succeeded, or nil when no step is currently runnable.
func (p *Plan) NextStep() *Step {
	if p == nil {
		return nil
	}
	for _, s := range p.Steps {
		if s.Status != StatusPending {
			continue
		}
		if p.depsSatisfied(s) {
			return s
		}
	}
	return nil
}

func (p *Plan) depsSatisfied(step *Step) bool {
	for _, dep := range step.DependsOn {
		depStep, ok := p.Get(dep)
		if !ok {
			// A dependency on a nonexistent step can never be satisfied;
			// treating it as satisfied would violate the gating invariant.
			return false
		}
		if depStep.Status != StatusSuccess {
			return false
		}
	}
	return true
}

// Done reports whether every step reached a terminal status.
func (p *Plan) Done() bool {
	for _, s := range p.Steps {
		switch s.Status {
		case StatusPending, StatusRunning:
			return false
		}
	}
	return true
}

// Blocked reports whether pending steps remain but none is runnable
// (failed dependencies or a dependency cycle).
func (p *Plan) Blocked() bool {
	if p.Done() {
		return false
	}
	return p.NextStep() == nil && !p.anyRunning()
}

func (p *Plan) anyRunning() bool {
	for _, s := range p.Steps {
		if s.Status == StatusRunning {
			return true
		}
	}
	return false
}

// SkipBlocked marks every unrunnable pending step as skipped, recording
// the reason. Called when execution cannot make further progress.
func (p *Plan) SkipBlocked(reason string) {
	for _, s := range p.Steps {
		if s.Status == StatusPending && !p.depsSatisfied(s) {
			s.Status = StatusSkipped
			s.Error = reason
		}
	}
}

// Failed reports whether any step failed.
func (p *Plan) Failed() bool {
	for _, s := range p.Steps {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Summary renders a compact one-line-per-step account of the plan.
func (p *Plan) Summary() string {
	if p.Empty() {
		return "(empty plan)"
	}
	var sb strings.Builder
	for _, s := range p.Steps {
		tool := s.Tool
		if tool == "" {
			tool = "(model's choice)"
		}
		sb.WriteString(fmt.Sprintf("%d. [%s] %s: %s\n", s.Index, s.Status, tool, s.Description))
	}
	return sb.String()
}
