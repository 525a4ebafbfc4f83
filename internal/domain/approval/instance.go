package approval

import (
	"time"

	"github.com/expenseflow/approval-engine/internal/domain/workflow"
)

// WorkflowInstance binds one expense to its compiled approval plan. There is
// exactly one instance per expense; it is created at submission, mutated only
// by the engine, and terminal once status leaves Pending.
type WorkflowInstance struct {
	ID          string
	ExpenseID   string
	OrgID       string
	Status      workflow.State
	StepIndex   int
	Plan        *ApprovalPlan
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// IsTerminal reports whether the instance accepts no further decisions.
func (w *WorkflowInstance) IsTerminal() bool {
	return w.Status.IsTerminal()
}
