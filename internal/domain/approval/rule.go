package approval

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// RuleKind identifies how a rule's step is satisfied
type RuleKind string

const (
	// KindSequential requires unanimous approval from the resolved approvers
	KindSequential RuleKind = "SEQUENTIAL"

	// KindPercentage requires a configured fraction of the resolved approvers to approve
	KindPercentage RuleKind = "PERCENTAGE"

	// KindSpecificApprover requires exactly one designated approver's approval
	KindSpecificApprover RuleKind = "SPECIFIC_APPROVER"
)

// IsValid returns true if the kind is a known rule kind
func (k RuleKind) IsValid() bool {
	switch k {
	case KindSequential, KindPercentage, KindSpecificApprover:
		return true
	}
	return false
}

// SelectorKind identifies how an ApproverSelector resolves to user identities
type SelectorKind string

const (
	// SelectorFixedUser resolves to one fixed user id
	SelectorFixedUser SelectorKind = "FIXED_USER"

	// SelectorManager resolves to the submitter's assigned manager
	SelectorManager SelectorKind = "MANAGER"

	// SelectorByRole resolves to every roster user holding the role
	SelectorByRole SelectorKind = "BY_ROLE"

	// SelectorDepartmentHead resolves to the head of the named department
	SelectorDepartmentHead SelectorKind = "DEPARTMENT_HEAD"
)

// ApproverSelector resolves to one or more user identities at plan-build time.
// Exactly one of UserID, Role, or Department is meaningful, per Kind.
type ApproverSelector struct {
	Kind       SelectorKind `json:"kind" validate:"required"`
	UserID     string       `json:"user_id,omitempty"`
	Role       string       `json:"role,omitempty"`
	Department string       `json:"department,omitempty"`
}

// Roster resolves selectors against the organization's user directory.
// Resolution is a pure read of the roster at the moment the plan is built.
type Roster interface {
	ResolveManager(ctx context.Context, userID string) (string, error)
	UsersByRole(ctx context.Context, orgID, role string) ([]string, error)
	DepartmentHead(ctx context.Context, orgID, department string) (string, error)
}

// Resolve returns the user identities the selector designates for the given
// submitter. An empty result is a configuration error surfaced by the caller.
func (s ApproverSelector) Resolve(ctx context.Context, orgID, submitterID string, roster Roster) ([]string, error) {
	switch s.Kind {
	case SelectorFixedUser:
		if s.UserID == "" {
			return nil, fmt.Errorf("%w: fixed-user selector without user id", ErrValidation)
		}
		return []string{s.UserID}, nil

	case SelectorManager:
		managerID, err := roster.ResolveManager(ctx, submitterID)
		if err != nil {
			return nil, err
		}
		return []string{managerID}, nil

	case SelectorByRole:
		if s.Role == "" {
			return nil, fmt.Errorf("%w: by-role selector without role", ErrValidation)
		}
		return roster.UsersByRole(ctx, orgID, s.Role)

	case SelectorDepartmentHead:
		if s.Department == "" {
			return nil, fmt.Errorf("%w: department-head selector without department", ErrValidation)
		}
		headID, err := roster.DepartmentHead(ctx, orgID, s.Department)
		if err != nil {
			return nil, err
		}
		return []string{headID}, nil

	default:
		return nil, fmt.Errorf("%w: unknown selector kind %q", ErrValidation, s.Kind)
	}
}

// RuleScope narrows which expenses a rule applies to. Zero-value fields match
// everything.
type RuleScope struct {
	Category  string           `json:"category,omitempty"`
	MinAmount *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount *decimal.Decimal `json:"max_amount,omitempty"`
}

// Matches reports whether the expense falls inside the rule's scope. Amount
// bounds compare against the expense amount in the organization currency.
func (sc RuleScope) Matches(e *Expense) bool {
	if sc.Category != "" && sc.Category != e.Category {
		return false
	}
	amount := e.AmountInOrgCurrency()
	if sc.MinAmount != nil && amount.LessThan(*sc.MinAmount) {
		return false
	}
	if sc.MaxAmount != nil && amount.GreaterThan(*sc.MaxAmount) {
		return false
	}
	return true
}

// ApprovalRule is a configurable approval rule for one organization.
// Rules are immutable once referenced by an in-flight workflow; edits create
// a new version.
type ApprovalRule struct {
	ID           string             `json:"id"`
	OrgID        string             `json:"org_id" validate:"required"`
	Name         string             `json:"name" validate:"required"`
	Kind         RuleKind           `json:"kind" validate:"required"`
	Selectors    []ApproverSelector `json:"selectors" validate:"required,min=1,dive"`
	Threshold    decimal.Decimal    `json:"threshold,omitempty"`
	Priority     int                `json:"priority"`
	ShortCircuit bool               `json:"short_circuit,omitempty"`
	Scope        RuleScope          `json:"scope,omitempty"`
	Version      int                `json:"version"`
	Active       bool               `json:"active"`
}

var validate = validator.New()

// Validate checks the rule's structure before it is stored or compiled.
func (r *ApprovalRule) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	switch r.Kind {
	case KindPercentage:
		if r.Threshold.LessThanOrEqual(decimal.Zero) || r.Threshold.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%w: percentage threshold must be in (0,1], got %s", ErrValidation, r.Threshold)
		}
	case KindSpecificApprover:
		if len(r.Selectors) != 1 {
			return fmt.Errorf("%w: specific-approver rule must have exactly one selector", ErrValidation)
		}
		if k := r.Selectors[0].Kind; k == SelectorByRole {
			return fmt.Errorf("%w: specific-approver rule cannot use a by-role selector", ErrValidation)
		}
	case KindSequential:
		// no extra constraints
	default:
		return fmt.Errorf("%w: unknown rule kind %q", ErrValidation, r.Kind)
	}

	if r.ShortCircuit && r.Kind != KindSpecificApprover {
		return fmt.Errorf("%w: short-circuit is only configurable on specific-approver rules", ErrValidation)
	}

	return nil
}
