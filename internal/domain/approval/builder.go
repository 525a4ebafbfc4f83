package approval

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// PlanBuilder compiles an expense's applicable rules into an approval plan.
// Building is read-only against the roster and may run unsynchronized.
type PlanBuilder struct {
	roster Roster
}

// NewPlanBuilder creates a plan builder backed by the given roster.
func NewPlanBuilder(roster Roster) *PlanBuilder {
	return &PlanBuilder{roster: roster}
}

// BuildPlan resolves each applicable rule, in priority order, into one plan
// step. A selector resolving to zero approvers fails with
// ErrUnresolvableApprover before any workflow instance exists.
func (b *PlanBuilder) BuildPlan(ctx context.Context, expense *Expense, rules []ApprovalRule) (*ApprovalPlan, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: no applicable rules for expense %s", ErrValidation, expense.ID)
	}

	ordered := make([]ApprovalRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	plan := &ApprovalPlan{
		ExpenseID: expense.ID,
		OrgID:     expense.OrgID,
		Steps:     make([]ApprovalStep, 0, len(ordered)),
	}

	for _, rule := range ordered {
		approvers, err := b.resolveRule(ctx, expense, &rule)
		if err != nil {
			return nil, err
		}

		step := ApprovalStep{
			RuleID:    rule.ID,
			RuleName:  rule.Name,
			Kind:      rule.Kind,
			Approvers: approvers,
		}

		switch rule.Kind {
		case KindSequential:
			step.Predicate = PredicateAll
		case KindPercentage:
			step.Predicate = PredicateFraction
			step.Threshold = rule.Threshold
		case KindSpecificApprover:
			step.Predicate = PredicateAny
			step.ShortCircuit = rule.ShortCircuit
			if len(approvers) != 1 {
				return nil, fmt.Errorf("%w: rule %q must resolve to exactly one approver, got %d",
					ErrValidation, rule.Name, len(approvers))
			}
		default:
			return nil, fmt.Errorf("%w: unknown rule kind %q", ErrValidation, rule.Kind)
		}

		plan.Steps = append(plan.Steps, step)
	}

	return plan, nil
}

// resolveRule resolves every selector of one rule and returns the deduplicated
// approver set, preserving selector order.
func (b *PlanBuilder) resolveRule(ctx context.Context, expense *Expense, rule *ApprovalRule) ([]string, error) {
	seen := make(map[string]bool)
	var approvers []string

	for _, sel := range rule.Selectors {
		users, err := sel.Resolve(ctx, expense.OrgID, expense.SubmitterID, b.roster)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: rule %q selector %s: %v",
					ErrUnresolvableApprover, rule.Name, sel.Kind, err)
			}
			return nil, fmt.Errorf("resolve rule %q: %w", rule.Name, err)
		}
		for _, u := range users {
			if !seen[u] {
				seen[u] = true
				approvers = append(approvers, u)
			}
		}
	}

	if len(approvers) == 0 {
		return nil, fmt.Errorf("%w: rule %q resolved to zero approvers", ErrUnresolvableApprover, rule.Name)
	}

	return approvers, nil
}
