package approval

import "time"

// Outcome is an approver's verdict on a step
type Outcome string

const (
	OutcomeApprove Outcome = "APPROVE"
	OutcomeReject  Outcome = "REJECT"
)

// IsValid returns true if the outcome is a known verdict
func (o Outcome) IsValid() bool {
	return o == OutcomeApprove || o == OutcomeReject
}

// Decision is one approver's recorded verdict for one step of one workflow.
// Decisions are append-only: never mutated or deleted, and the authoritative
// source of truth for workflow state.
type Decision struct {
	ID         int64
	WorkflowID string
	StepIndex  int
	ApproverID string
	Outcome    Outcome
	Comment    string
	DecidedAt  time.Time
}
