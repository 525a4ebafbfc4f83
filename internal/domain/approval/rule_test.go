package approval

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func validRule() *ApprovalRule {
	return &ApprovalRule{
		ID: "r1", OrgID: "org-1", Name: "manager-signoff",
		Kind:      KindSequential,
		Selectors: []ApproverSelector{{Kind: SelectorManager}},
	}
}

func TestApprovalRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *ApprovalRule)
		wantErr bool
	}{
		{"valid sequential", func(r *ApprovalRule) {}, false},
		{"missing org", func(r *ApprovalRule) { r.OrgID = "" }, true},
		{"missing name", func(r *ApprovalRule) { r.Name = "" }, true},
		{"no selectors", func(r *ApprovalRule) { r.Selectors = nil }, true},
		{"unknown kind", func(r *ApprovalRule) { r.Kind = RuleKind("VOTE") }, true},
		{
			"valid percentage",
			func(r *ApprovalRule) {
				r.Kind = KindPercentage
				r.Threshold = decimal.RequireFromString("0.6")
			},
			false,
		},
		{
			"percentage threshold zero",
			func(r *ApprovalRule) {
				r.Kind = KindPercentage
				r.Threshold = decimal.Zero
			},
			true,
		},
		{
			"percentage threshold above one",
			func(r *ApprovalRule) {
				r.Kind = KindPercentage
				r.Threshold = decimal.RequireFromString("1.5")
			},
			true,
		},
		{
			"percentage threshold exactly one",
			func(r *ApprovalRule) {
				r.Kind = KindPercentage
				r.Threshold = decimal.NewFromInt(1)
			},
			false,
		},
		{
			"valid specific approver",
			func(r *ApprovalRule) {
				r.Kind = KindSpecificApprover
				r.Selectors = []ApproverSelector{{Kind: SelectorFixedUser, UserID: "u1"}}
			},
			false,
		},
		{
			"specific approver with two selectors",
			func(r *ApprovalRule) {
				r.Kind = KindSpecificApprover
				r.Selectors = []ApproverSelector{
					{Kind: SelectorFixedUser, UserID: "u1"},
					{Kind: SelectorFixedUser, UserID: "u2"},
				}
			},
			true,
		},
		{
			"specific approver with by-role selector",
			func(r *ApprovalRule) {
				r.Kind = KindSpecificApprover
				r.Selectors = []ApproverSelector{{Kind: SelectorByRole, Role: "MANAGER"}}
			},
			true,
		},
		{
			"short-circuit on sequential rule",
			func(r *ApprovalRule) { r.ShortCircuit = true },
			true,
		},
		{
			"short-circuit on specific approver",
			func(r *ApprovalRule) {
				r.Kind = KindSpecificApprover
				r.Selectors = []ApproverSelector{{Kind: SelectorFixedUser, UserID: "u1"}}
				r.ShortCircuit = true
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validRule()
			tt.mutate(rule)
			err := rule.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("Validate() error = %v, want ErrValidation", err)
				}
			} else if err != nil {
				t.Errorf("Validate() failed: %v", err)
			}
		})
	}
}

func TestApproverSelector_Resolve_MissingParams(t *testing.T) {
	roster := newFakeRoster()
	tests := []struct {
		name     string
		selector ApproverSelector
	}{
		{"fixed user without id", ApproverSelector{Kind: SelectorFixedUser}},
		{"by-role without role", ApproverSelector{Kind: SelectorByRole}},
		{"department head without department", ApproverSelector{Kind: SelectorDepartmentHead}},
		{"unknown kind", ApproverSelector{Kind: SelectorKind("TEAM")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.selector.Resolve(context.Background(), "org-1", "employee-1", roster)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Resolve() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestStep_RequiredApprovals(t *testing.T) {
	tests := []struct {
		name     string
		step     ApprovalStep
		expected int
	}{
		{"all of three", sequentialStep("r", "a", "b", "c"), 3},
		{"any of one", specificStep("r", "a", false), 1},
		{"ceil of 0.6 over 4", fractionStep("r", "0.6", "a", "b", "c", "d"), 3},
		{"ceil of 0.5 over 2", fractionStep("r", "0.5", "a", "b"), 1},
		{"full fraction", fractionStep("r", "1", "a", "b"), 2},
		{"fraction over one approver", fractionStep("r", "0.3", "a"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.step.RequiredApprovals(); got != tt.expected {
				t.Errorf("RequiredApprovals() = %d, want %d", got, tt.expected)
			}
		})
	}
}
