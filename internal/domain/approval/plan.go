package approval

import (
	"github.com/shopspring/decimal"
)

// PredicateKind is the satisfaction predicate of one approval step
type PredicateKind string

const (
	// PredicateAll requires every resolved approver to approve
	PredicateAll PredicateKind = "ALL"

	// PredicateAny requires any one resolved approver to approve
	PredicateAny PredicateKind = "ANY"

	// PredicateFraction requires the configured fraction of resolved approvers to approve
	PredicateFraction PredicateKind = "FRACTION"
)

// ApprovalStep is one resolved step of an approval plan. The approver set is
// fixed at plan-build time and never empty.
type ApprovalStep struct {
	RuleID       string          `json:"rule_id"`
	RuleName     string          `json:"rule_name"`
	Kind         RuleKind        `json:"kind"`
	Approvers    []string        `json:"approvers"`
	Predicate    PredicateKind   `json:"predicate"`
	Threshold    decimal.Decimal `json:"threshold,omitempty"`
	ShortCircuit bool            `json:"short_circuit,omitempty"`
}

// RequiredApprovals returns how many approvals satisfy the step's predicate.
func (s *ApprovalStep) RequiredApprovals() int {
	n := int64(len(s.Approvers))
	switch s.Predicate {
	case PredicateAny:
		return 1
	case PredicateFraction:
		// ceil(threshold * n); threshold is validated to lie in (0,1], so the
		// result is always in [1, n]
		return int(s.Threshold.Mul(decimal.NewFromInt(n)).Ceil().IntPart())
	default:
		return int(n)
	}
}

// HasApprover reports whether the identity is among the step's resolved approvers.
func (s *ApprovalStep) HasApprover(userID string) bool {
	for _, a := range s.Approvers {
		if a == userID {
			return true
		}
	}
	return false
}

// ApprovalPlan is the immutable, ordered approval plan derived for one
// expense. It is stored as a snapshot with the workflow instance, so later
// rule edits never affect in-flight workflows.
type ApprovalPlan struct {
	ExpenseID string         `json:"expense_id"`
	OrgID     string         `json:"org_id"`
	Steps     []ApprovalStep `json:"steps"`
}

// Len returns the number of steps in the plan.
func (p *ApprovalPlan) Len() int {
	return len(p.Steps)
}
