package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/expenseflow/approval-engine/internal/domain/approval"
	"github.com/expenseflow/approval-engine/internal/domain/workflow"
	"github.com/expenseflow/approval-engine/internal/notify"
	"github.com/expenseflow/approval-engine/internal/repository"
	"github.com/expenseflow/approval-engine/pkg/database"
	"github.com/expenseflow/approval-engine/pkg/utils"
)

// Engine drives a workflow instance through its approval plan. It is invoked
// synchronously per decision and keeps no background scheduling of its own;
// escalation of stalled workflows is an external caller concern.
type Engine struct {
	db           *database.DB
	workflowRepo *repository.WorkflowRepository
	ledgerRepo   *repository.LedgerRepository
	expenseRepo  *repository.ExpenseRepository
	lifecycle    workflow.StateMachineBuilder
	publisher    notify.Publisher
	logger       *zap.Logger
	locks        *keyedMutex
}

// NewEngine creates a new workflow engine
func NewEngine(
	db *database.DB,
	workflowRepo *repository.WorkflowRepository,
	ledgerRepo *repository.LedgerRepository,
	expenseRepo *repository.ExpenseRepository,
	publisher notify.Publisher,
	logger *zap.Logger,
) *Engine {
	lifecycle := workflow.NewBuilder()
	lifecycle.Configure(workflow.StatePending).
		Permit(workflow.TriggerAdvance, workflow.StatePending).
		Permit(workflow.TriggerComplete, workflow.StateApproved).
		Permit(workflow.TriggerShortCircuit, workflow.StateApproved).
		Permit(workflow.TriggerFail, workflow.StateRejected)

	return &Engine{
		db:           db,
		workflowRepo: workflowRepo,
		ledgerRepo:   ledgerRepo,
		expenseRepo:  expenseRepo,
		lifecycle:    lifecycle,
		publisher:    publisher,
		logger:       logger,
		locks:        newKeyedMutex(),
	}
}

// Initiate creates the workflow instance binding an expense to its compiled
// plan. The caller passes the transaction that also persists the expense, so
// no expense exists without its workflow instance. An empty plan (the
// auto-approve policy) produces an instance that is terminal at creation.
func (e *Engine) Initiate(ctx context.Context, tx *sql.Tx, expense *approval.Expense, plan *approval.ApprovalPlan) (*approval.WorkflowInstance, error) {
	progress := approval.NewProgress(plan)

	instance := &approval.WorkflowInstance{
		ExpenseID: expense.ID,
		OrgID:     expense.OrgID,
		Status:    progress.Status,
		StepIndex: progress.StepIndex,
		Plan:      plan,
	}
	if instance.Status.IsTerminal() {
		now := time.Now().UTC()
		instance.CompletedAt = &now
	}

	if err := e.workflowRepo.Create(ctx, tx, instance); err != nil {
		return nil, err
	}

	e.logger.Info("Workflow instance created",
		zap.String("workflow_id", instance.ID),
		zap.String("expense_id", expense.ID),
		zap.Int("steps", plan.Len()),
		zap.String("status", instance.Status.String()))

	return instance, nil
}

// RecordDecision applies one approver's verdict to the workflow's current
// step, re-evaluates the step predicate, and advances, finalizes, or waits.
// The per-workflow lock serializes concurrent decisions; the ledger's
// uniqueness constraint backstops duplicates across processes.
func (e *Engine) RecordDecision(ctx context.Context, workflowID, approverID string, outcome approval.Outcome, comment string) (*approval.WorkflowInstance, error) {
	unlock := e.locks.Lock(workflowID)
	defer unlock()

	instance, err := e.workflowRepo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if instance.IsTerminal() {
		return nil, fmt.Errorf("%w: workflow %s is %s", approval.ErrWorkflowTerminal, workflowID, instance.Status)
	}

	ledger, err := e.ledgerRepo.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	progress, err := approval.Replay(instance.Plan, ledger)
	if err != nil {
		return nil, err
	}
	if progress.Status != instance.Status || progress.StepIndex != instance.StepIndex {
		// The ledger is authoritative; a divergent instance row means a past
		// write was lost mid-transition
		e.logger.Warn("Stored instance state diverges from ledger replay, trusting ledger",
			zap.String("workflow_id", workflowID),
			zap.String("stored_status", instance.Status.String()),
			zap.String("replayed_status", progress.Status.String()))
	}

	decision := &approval.Decision{
		WorkflowID: workflowID,
		StepIndex:  progress.StepIndex,
		ApproverID: approverID,
		Outcome:    outcome,
		Comment:    utils.SanitizeComment(comment),
		DecidedAt:  time.Now().UTC(),
	}

	previous := progress.Status
	trigger, err := progress.Apply(instance.Plan, decision)
	if err != nil {
		return nil, err
	}

	// The machine's transition listener captures the state change; it is
	// published only after the transaction commits
	var transition *notify.Transition
	if trigger != "" {
		machine := e.lifecycle.Build(previous)
		machine.Subscribe(func(_ context.Context, from, to workflow.State, trig workflow.Trigger) {
			if from == to {
				return
			}
			transition = &notify.Transition{
				WorkflowID: workflowID,
				From:       from,
				To:         to,
				Trigger:    trig,
			}
		})
		if err := machine.Fire(ctx, trigger); err != nil {
			return nil, fmt.Errorf("lifecycle transition: %w", err)
		}
		if machine.State() != progress.Status {
			return nil, fmt.Errorf("lifecycle state %s does not match evaluated status %s", machine.State(), progress.Status)
		}
	}

	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		if err := e.ledgerRepo.Append(ctx, tx, decision); err != nil {
			return err
		}
		if err := e.workflowRepo.UpdateProgress(ctx, tx, workflowID, progress.Status, progress.StepIndex); err != nil {
			return err
		}
		if progress.Status.IsTerminal() {
			return e.expenseRepo.UpdateStatus(ctx, tx, instance.ExpenseID, string(progress.Status))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	instance.Status = progress.Status
	instance.StepIndex = progress.StepIndex

	e.logger.Info("Decision recorded",
		zap.String("workflow_id", workflowID),
		zap.String("approver_id", approverID),
		zap.String("outcome", string(outcome)),
		zap.String("status", instance.Status.String()),
		zap.Int("step_index", instance.StepIndex))

	// Notifications are best-effort and fire only after the transition is
	// durable; a failing notifier never rolls the workflow back
	if transition != nil && e.publisher != nil {
		e.publisher.Publish(*transition)
	}

	return instance, nil
}

// Reconstruct re-derives a workflow's progress purely from its decision
// ledger. For a healthy instance this equals the stored state; it exists for
// audit and recovery.
func (e *Engine) Reconstruct(ctx context.Context, workflowID string) (*approval.Progress, error) {
	instance, err := e.workflowRepo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	ledger, err := e.ledgerRepo.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return approval.Replay(instance.Plan, ledger)
}
