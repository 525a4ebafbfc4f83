package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/expenseflow/approval-engine/internal/domain/approval"
)

// ExpenseRepository handles expense database operations
type ExpenseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sql.DB, logger *zap.Logger) *ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a submitted expense.
func (r *ExpenseRepository) Create(ctx context.Context, tx *sql.Tx, e *approval.Expense) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	var converted any
	if e.ConvertedAmount != nil {
		converted = e.ConvertedAmount.String()
	}

	query := `
		INSERT INTO expenses (
			id, org_id, submitter_id, category, description, expense_date,
			original_amount, original_currency, converted_amount, org_currency, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := execContext(ctx, r.db, tx, query,
		e.ID,
		e.OrgID,
		e.SubmitterID,
		e.Category,
		e.Description,
		e.ExpenseDate,
		e.OriginalAmount.String(),
		e.OriginalCurrency,
		converted,
		e.OrgCurrency,
		e.Status,
	)
	if err != nil {
		r.logger.Error("Failed to create expense", zap.String("submitter_id", e.SubmitterID), zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetByID retrieves an expense by ID.
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*approval.Expense, error) {
	query := `
		SELECT id, org_id, submitter_id, category, description, expense_date,
			original_amount, original_currency, converted_amount, org_currency,
			status, created_at, updated_at
		FROM expenses
		WHERE id = ?
	`

	var e approval.Expense
	var original string
	var converted sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID,
		&e.OrgID,
		&e.SubmitterID,
		&e.Category,
		&e.Description,
		&e.ExpenseDate,
		&original,
		&e.OriginalCurrency,
		&converted,
		&e.OrgCurrency,
		&e.Status,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: expense %s", approval.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get expense", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	e.OriginalAmount, err = decimal.NewFromString(original)
	if err != nil {
		return nil, fmt.Errorf("failed to parse original amount %q: %w", original, err)
	}
	if converted.Valid {
		amount, err := decimal.NewFromString(converted.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse converted amount %q: %w", converted.String, err)
		}
		e.ConvertedAmount = &amount
	}

	return &e, nil
}

// UpdateStatus moves the expense's denormalized status in lock-step with its
// workflow instance.
func (r *ExpenseRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	query := `UPDATE expenses SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := execContext(ctx, r.db, tx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update expense status",
			zap.String("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update expense status: %w", err)
	}
	return nil
}

// ListBySubmitter retrieves a submitter's expenses, newest first.
func (r *ExpenseRepository) ListBySubmitter(ctx context.Context, submitterID string, limit, offset int) ([]*approval.Expense, error) {
	query := `
		SELECT id, org_id, submitter_id, category, description, expense_date,
			original_amount, original_currency, converted_amount, org_currency,
			status, created_at, updated_at
		FROM expenses
		WHERE submitter_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, submitterID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.String("submitter_id", submitterID), zap.Error(err))
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*approval.Expense
	for rows.Next() {
		var e approval.Expense
		var original string
		var converted sql.NullString

		err := rows.Scan(
			&e.ID,
			&e.OrgID,
			&e.SubmitterID,
			&e.Category,
			&e.Description,
			&e.ExpenseDate,
			&original,
			&e.OriginalCurrency,
			&converted,
			&e.OrgCurrency,
			&e.Status,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}

		e.OriginalAmount, err = decimal.NewFromString(original)
		if err != nil {
			return nil, fmt.Errorf("failed to parse original amount %q: %w", original, err)
		}
		if converted.Valid {
			amount, err := decimal.NewFromString(converted.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse converted amount %q: %w", converted.String, err)
			}
			e.ConvertedAmount = &amount
		}

		expenses = append(expenses, &e)
	}

	return expenses, rows.Err()
}
