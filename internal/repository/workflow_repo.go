package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/expenseflow/approval-engine/internal/domain/approval"
	"github.com/expenseflow/approval-engine/internal/domain/workflow"
)

// WorkflowRepository handles workflow instance database operations. The plan
// is stored as a JSON snapshot beside the instance row.
type WorkflowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sql.DB, logger *zap.Logger) *WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new workflow instance with its plan snapshot.
func (r *WorkflowRepository) Create(ctx context.Context, tx *sql.Tx, instance *approval.WorkflowInstance) error {
	if instance.ID == "" {
		instance.ID = uuid.NewString()
	}

	planJSON, err := json.Marshal(instance.Plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	query := `
		INSERT INTO workflow_instances (
			id, expense_id, org_id, status, step_index, plan, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = execContext(ctx, r.db, tx, query,
		instance.ID,
		instance.ExpenseID,
		instance.OrgID,
		instance.Status.String(),
		instance.StepIndex,
		string(planJSON),
		instance.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow instance",
			zap.String("expense_id", instance.ExpenseID),
			zap.Error(err))
		return fmt.Errorf("failed to create workflow instance: %w", err)
	}

	return nil
}

// GetByID retrieves a workflow instance by ID. Returns NotFound when absent.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*approval.WorkflowInstance, error) {
	return r.get(ctx, `WHERE id = ?`, id)
}

// GetByExpenseID retrieves the workflow instance bound to an expense.
func (r *WorkflowRepository) GetByExpenseID(ctx context.Context, expenseID string) (*approval.WorkflowInstance, error) {
	return r.get(ctx, `WHERE expense_id = ?`, expenseID)
}

func (r *WorkflowRepository) get(ctx context.Context, where string, arg any) (*approval.WorkflowInstance, error) {
	query := `
		SELECT id, expense_id, org_id, status, step_index, plan,
			created_at, updated_at, completed_at
		FROM workflow_instances ` + where

	var instance approval.WorkflowInstance
	var status, planJSON string
	var completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&instance.ID,
		&instance.ExpenseID,
		&instance.OrgID,
		&status,
		&instance.StepIndex,
		&planJSON,
		&instance.CreatedAt,
		&instance.UpdatedAt,
		&completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: workflow instance", approval.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get workflow instance", zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow instance: %w", err)
	}

	instance.Status = workflow.State(status)
	if completedAt.Valid {
		instance.CompletedAt = &completedAt.Time
	}
	if err := json.Unmarshal([]byte(planJSON), &instance.Plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
	}

	return &instance, nil
}

// UpdateProgress persists the re-derived status and step index after a
// decision was applied.
func (r *WorkflowRepository) UpdateProgress(ctx context.Context, tx *sql.Tx, id string, status workflow.State, stepIndex int) error {
	query := `
		UPDATE workflow_instances
		SET status = ?, step_index = ?, updated_at = CURRENT_TIMESTAMP,
			completed_at = CASE WHEN ? THEN CURRENT_TIMESTAMP ELSE completed_at END
		WHERE id = ?
	`
	_, err := execContext(ctx, r.db, tx, query, status.String(), stepIndex, status.IsTerminal(), id)
	if err != nil {
		r.logger.Error("Failed to update workflow progress",
			zap.String("id", id),
			zap.String("status", status.String()),
			zap.Error(err))
		return fmt.Errorf("failed to update workflow progress: %w", err)
	}
	return nil
}

// List retrieves workflow instances with pagination, newest first.
func (r *WorkflowRepository) List(ctx context.Context, limit, offset int) ([]*approval.WorkflowInstance, error) {
	query := `
		SELECT id, expense_id, org_id, status, step_index, plan,
			created_at, updated_at, completed_at
		FROM workflow_instances
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list workflow instances", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflow instances: %w", err)
	}
	defer rows.Close()

	var instances []*approval.WorkflowInstance
	for rows.Next() {
		var instance approval.WorkflowInstance
		var status, planJSON string
		var completedAt sql.NullTime

		err := rows.Scan(
			&instance.ID,
			&instance.ExpenseID,
			&instance.OrgID,
			&status,
			&instance.StepIndex,
			&planJSON,
			&instance.CreatedAt,
			&instance.UpdatedAt,
			&completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow instance: %w", err)
		}

		instance.Status = workflow.State(status)
		if completedAt.Valid {
			instance.CompletedAt = &completedAt.Time
		}
		if err := json.Unmarshal([]byte(planJSON), &instance.Plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
		}

		instances = append(instances, &instance)
	}

	return instances, rows.Err()
}
