package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expenseflow/approval-engine/internal/domain/approval"
	"github.com/expenseflow/approval-engine/internal/domain/workflow"
	"github.com/expenseflow/approval-engine/pkg/database"
)

// newTestDB opens a throwaway sqlite database with the full schema applied.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    2,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).Run(os.DirFS("../../migrations")))
	return db
}

type fixtures struct {
	db     *database.DB
	orgs   *OrgRepository
	roster *RosterRepository

	orgID       string
	submitterID string
	managerID   string
}

// newFixtures seeds the minimal roster the foreign keys require: one
// organization, one manager, and one employee reporting to that manager.
func newFixtures(t *testing.T) *fixtures {
	t.Helper()

	db := newTestDB(t)
	logger := zap.NewNop()
	f := &fixtures{
		db:     db,
		orgs:   NewOrgRepository(db.DB, logger),
		roster: NewRosterRepository(db.DB, logger),
	}

	ctx := context.Background()
	org := &Organization{Name: "Test Org", DefaultCurrency: "USD"}
	require.NoError(t, f.orgs.Create(ctx, nil, org))
	f.orgID = org.ID

	manager := &User{
		OrgID: f.orgID, Email: "manager@test.example",
		PasswordHash: "x", FirstName: "Mary", LastName: "Manager",
		Role: RoleManager,
	}
	require.NoError(t, f.roster.CreateUser(ctx, nil, manager))
	f.managerID = manager.ID

	employee := &User{
		OrgID: f.orgID, Email: "employee@test.example",
		PasswordHash: "x", FirstName: "Eve", LastName: "Employee",
		Role: RoleEmployee, ManagerID: &manager.ID,
	}
	require.NoError(t, f.roster.CreateUser(ctx, nil, employee))
	f.submitterID = employee.ID

	return f
}

// newExpense inserts an expense submitted by the fixture employee.
func (f *fixtures) newExpense(t *testing.T, amount string) *approval.Expense {
	t.Helper()

	e := &approval.Expense{
		ID:               uuid.NewString(),
		OrgID:            f.orgID,
		SubmitterID:      f.submitterID,
		Category:         "travel",
		Description:      "test expense",
		ExpenseDate:      time.Now().UTC(),
		OriginalAmount:   decimal.RequireFromString(amount),
		OriginalCurrency: "USD",
		OrgCurrency:      "USD",
		Status:           approval.ExpenseStatusPending,
	}
	repo := NewExpenseRepository(f.db.DB, zap.NewNop())
	require.NoError(t, repo.Create(context.Background(), nil, e))
	return e
}

// newWorkflow inserts a pending workflow instance for the expense with a
// single-step plan approved by the fixture manager.
func (f *fixtures) newWorkflow(t *testing.T, expenseID string) *approval.WorkflowInstance {
	t.Helper()

	instance := &approval.WorkflowInstance{
		ID:        uuid.NewString(),
		ExpenseID: expenseID,
		OrgID:     f.orgID,
		Status:    workflow.StatePending,
		Plan: &approval.ApprovalPlan{
			ExpenseID: expenseID,
			OrgID:     f.orgID,
			Steps: []approval.ApprovalStep{{
				RuleID:    "r1",
				RuleName:  "manager-signoff",
				Kind:      approval.KindSequential,
				Approvers: []string{f.managerID},
				Predicate: approval.PredicateAll,
			}},
		},
	}
	repo := NewWorkflowRepository(f.db.DB, zap.NewNop())
	require.NoError(t, repo.Create(context.Background(), nil, instance))
	return instance
}
