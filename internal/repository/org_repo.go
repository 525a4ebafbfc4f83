package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/expenseflow/approval-engine/internal/domain/approval"
)

// Organization is one tenant. DefaultCurrency is the currency expenses are
// converted into for approval thresholds and reporting.
type Organization struct {
	ID              string
	Name            string
	DefaultCurrency string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrgRepository handles organization database operations
type OrgRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrgRepository creates a new organization repository
func NewOrgRepository(db *sql.DB, logger *zap.Logger) *OrgRepository {
	return &OrgRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists an organization.
func (r *OrgRepository) Create(ctx context.Context, tx *sql.Tx, org *Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}

	query := `INSERT INTO organizations (id, name, default_currency) VALUES (?, ?, ?)`
	_, err := execContext(ctx, r.db, tx, query, org.ID, org.Name, org.DefaultCurrency)
	if err != nil {
		r.logger.Error("Failed to create organization", zap.String("name", org.Name), zap.Error(err))
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetByID retrieves an organization by ID.
func (r *OrgRepository) GetByID(ctx context.Context, id string) (*Organization, error) {
	query := `SELECT id, name, default_currency, created_at, updated_at FROM organizations WHERE id = ?`

	var org Organization
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&org.ID,
		&org.Name,
		&org.DefaultCurrency,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: organization %s", approval.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get organization", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}
