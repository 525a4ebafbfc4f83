package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/expenseflow/approval-engine/internal/domain/approval"
)

// LedgerRepository is the append-only decision ledger. There is no update or
// delete operation; the schema's uniqueness constraint makes the append
// atomic with the one-decision-per-approver-per-step check.
type LedgerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *sql.DB, logger *zap.Logger) *LedgerRepository {
	return &LedgerRepository{
		db:     db,
		logger: logger,
	}
}

// Append records one decision. A duplicate for the same workflow, step, and
// approver fails with Conflict; callers retrying idempotently may ignore it.
func (r *LedgerRepository) Append(ctx context.Context, tx *sql.Tx, d *approval.Decision) error {
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO decisions (
			workflow_id, step_index, approver_id, outcome, comment, decided_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := execContext(ctx, r.db, tx, query,
		d.WorkflowID,
		d.StepIndex,
		d.ApproverID,
		string(d.Outcome),
		d.Comment,
		d.DecidedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: approver %s already decided step %d of workflow %s",
				approval.ErrConflict, d.ApproverID, d.StepIndex, d.WorkflowID)
		}
		r.logger.Error("Failed to append decision",
			zap.String("workflow_id", d.WorkflowID),
			zap.String("approver_id", d.ApproverID),
			zap.Error(err))
		return fmt.Errorf("failed to append decision: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	d.ID = id
	return nil
}

// ListByWorkflow returns the full ledger for one workflow instance, ordered
// by decision timestamp with insertion order as the stable tie-break.
func (r *LedgerRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*approval.Decision, error) {
	query := `
		SELECT id, workflow_id, step_index, approver_id, outcome, comment, decided_at
		FROM decisions
		WHERE workflow_id = ?
		ORDER BY decided_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		r.logger.Error("Failed to list decisions", zap.String("workflow_id", workflowID), zap.Error(err))
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*approval.Decision
	for rows.Next() {
		var d approval.Decision
		var outcome string

		err := rows.Scan(
			&d.ID,
			&d.WorkflowID,
			&d.StepIndex,
			&d.ApproverID,
			&outcome,
			&d.Comment,
			&d.DecidedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}

		d.Outcome = approval.Outcome(outcome)
		decisions = append(decisions, &d)
	}

	return decisions, rows.Err()
}
