package main

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/expenseflow/approval-engine/internal/domain/approval"
	"github.com/expenseflow/approval-engine/internal/repository"
	"github.com/expenseflow/approval-engine/pkg/database"
)

// seed creates a small demo tenant: one organization, a manager chain, a
// finance department, and the three rule kinds.
func seed(ctx context.Context, db *database.DB, logger *zap.Logger) error {
	orgRepo := repository.NewOrgRepository(db.DB, logger)
	rosterRepo := repository.NewRosterRepository(db.DB, logger)
	ruleRepo := repository.NewRuleRepository(db.DB, logger)

	return db.WithTransaction(func(tx *sql.Tx) error {
		org := &repository.Organization{Name: "Acme Corp", DefaultCurrency: "USD"}
		if err := orgRepo.Create(ctx, tx, org); err != nil {
			return err
		}

		cfo := &repository.User{
			OrgID: org.ID, Email: "cfo@acme.test", PasswordHash: "x",
			FirstName: "Dana", LastName: "Reyes", Role: repository.RoleAdmin,
			Department: "Finance", DepartmentHead: true,
		}
		if err := rosterRepo.CreateUser(ctx, tx, cfo); err != nil {
			return err
		}

		manager := &repository.User{
			OrgID: org.ID, Email: "manager@acme.test", PasswordHash: "x",
			FirstName: "Sam", LastName: "Okafor", Role: repository.RoleManager,
			Department: "Engineering",
		}
		if err := rosterRepo.CreateUser(ctx, tx, manager); err != nil {
			return err
		}

		employee := &repository.User{
			OrgID: org.ID, Email: "employee@acme.test", PasswordHash: "x",
			FirstName: "Ada", LastName: "Lin", Role: repository.RoleEmployee,
			ManagerID: &manager.ID, Department: "Engineering",
		}
		if err := rosterRepo.CreateUser(ctx, tx, employee); err != nil {
			return err
		}

		for _, u := range []struct{ email, first string }{
			{"fin1@acme.test", "Bo"}, {"fin2@acme.test", "Kai"}, {"fin3@acme.test", "Ira"},
		} {
			user := &repository.User{
				OrgID: org.ID, Email: u.email, PasswordHash: "x",
				FirstName: u.first, LastName: "Finance", Role: repository.RoleManager,
				Department: "Finance",
			}
			if err := rosterRepo.CreateUser(ctx, tx, user); err != nil {
				return err
			}
		}

		maxSmall := decimal.NewFromInt(500)
		rules := []*approval.ApprovalRule{
			{
				OrgID: org.ID, Name: "manager-signoff", Kind: approval.KindSequential,
				Priority:  10,
				Selectors: []approval.ApproverSelector{{Kind: approval.SelectorManager}},
				Scope:     approval.RuleScope{MaxAmount: &maxSmall},
			},
			{
				OrgID: org.ID, Name: "finance-quorum", Kind: approval.KindPercentage,
				Priority:  20,
				Threshold: decimal.NewFromFloat(0.6),
				Selectors: []approval.ApproverSelector{{Kind: approval.SelectorByRole, Role: repository.RoleManager}},
			},
			{
				OrgID: org.ID, Name: "cfo-override", Kind: approval.KindSpecificApprover,
				Priority:     30,
				ShortCircuit: true,
				Selectors:    []approval.ApproverSelector{{Kind: approval.SelectorDepartmentHead, Department: "Finance"}},
			},
		}
		for _, rule := range rules {
			if err := rule.Validate(); err != nil {
				return err
			}
			if err := ruleRepo.Create(ctx, tx, rule); err != nil {
				return err
			}
		}

		logger.Info("Seed data created",
			zap.String("org_id", org.ID),
			zap.String("employee_id", employee.ID),
			zap.Int("rules", len(rules)))
		return nil
	})
}
