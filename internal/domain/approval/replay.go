package approval

import (
	"fmt"

	"github.com/expenseflow/approval-engine/internal/domain/workflow"
)

// StepTally accumulates the decisions received for one step.
type StepTally struct {
	Approvals  int
	Rejections int
	Decided    map[string]Outcome
}

// Progress is the derived state of a workflow instance: overall status,
// current step index, and per-step tallies. It is never stored; it is always
// re-derivable by replaying the decision ledger against the plan.
type Progress struct {
	Status    workflow.State
	StepIndex int
	Tallies   []StepTally
}

// NewProgress returns the initial progress for a plan. An empty plan is
// trivially approved (the auto-approve policy path).
func NewProgress(plan *ApprovalPlan) *Progress {
	p := &Progress{
		Status:  workflow.StatePending,
		Tallies: make([]StepTally, plan.Len()),
	}
	for i := range p.Tallies {
		p.Tallies[i].Decided = make(map[string]Outcome)
	}
	if plan.Len() == 0 {
		p.Status = workflow.StateApproved
	}
	return p
}

// CurrentStep returns the active step, or nil when the workflow is terminal.
func (p *Progress) CurrentStep(plan *ApprovalPlan) *ApprovalStep {
	if p.Status.IsTerminal() || p.StepIndex >= plan.Len() {
		return nil
	}
	return &plan.Steps[p.StepIndex]
}

// Check validates a decision against the current progress without applying
// it. It enforces terminal immutability, step eligibility, and the
// one-decision-per-approver-per-step invariant.
func (p *Progress) Check(plan *ApprovalPlan, d *Decision) error {
	if !d.Outcome.IsValid() {
		return fmt.Errorf("%w: unknown outcome %q", ErrValidation, d.Outcome)
	}
	if p.Status.IsTerminal() {
		return fmt.Errorf("%w: status is %s", ErrWorkflowTerminal, p.Status)
	}
	if d.StepIndex != p.StepIndex {
		return fmt.Errorf("%w: decision targets step %d but step %d is active",
			ErrNotEligible, d.StepIndex, p.StepIndex)
	}
	step := p.CurrentStep(plan)
	if step == nil || !step.HasApprover(d.ApproverID) {
		return fmt.Errorf("%w: %s is not an approver for step %d", ErrNotEligible, d.ApproverID, p.StepIndex)
	}
	if _, dup := p.Tallies[p.StepIndex].Decided[d.ApproverID]; dup {
		return fmt.Errorf("%w: %s at step %d", ErrAlreadyDecided, d.ApproverID, p.StepIndex)
	}
	return nil
}

// Apply validates and applies one decision, re-evaluating the current step's
// predicate. It returns the lifecycle trigger the decision produced, or the
// empty trigger when the step is still waiting for more decisions.
//
// The final state depends only on the multiset of decisions within a step,
// never on arrival order; short-circuit steps are the one deliberate
// exception, and there order sensitivity is opted into per rule.
func (p *Progress) Apply(plan *ApprovalPlan, d *Decision) (workflow.Trigger, error) {
	if err := p.Check(plan, d); err != nil {
		return "", err
	}

	step := &plan.Steps[p.StepIndex]
	tally := &p.Tallies[p.StepIndex]
	tally.Decided[d.ApproverID] = d.Outcome
	if d.Outcome == OutcomeApprove {
		tally.Approvals++
	} else {
		tally.Rejections++
	}

	need := step.RequiredApprovals()

	switch {
	case tally.Approvals >= need:
		if step.ShortCircuit {
			p.Status = workflow.StateApproved
			return workflow.TriggerShortCircuit, nil
		}
		p.StepIndex++
		if p.StepIndex >= plan.Len() {
			p.Status = workflow.StateApproved
			return workflow.TriggerComplete, nil
		}
		return workflow.TriggerAdvance, nil

	case len(step.Approvers)-tally.Rejections < need:
		// Not enough undecided approvers remain to ever reach the threshold:
		// fail fast instead of waiting for the rest
		p.Status = workflow.StateRejected
		return workflow.TriggerFail, nil

	default:
		return "", nil
	}
}

// Replay re-derives progress from scratch by folding the full decision ledger
// over the plan. For any workflow the result must equal the incrementally
// maintained instance state; a ledger that does not replay cleanly is corrupt.
func Replay(plan *ApprovalPlan, decisions []*Decision) (*Progress, error) {
	p := NewProgress(plan)
	for i, d := range decisions {
		if _, err := p.Apply(plan, d); err != nil {
			return nil, fmt.Errorf("replay: ledger entry %d (approver %s, step %d): %w",
				i, d.ApproverID, d.StepIndex, err)
		}
	}
	return p, nil
}
