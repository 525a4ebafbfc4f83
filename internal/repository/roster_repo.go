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

// User roles.
const (
	RoleEmployee = "Employee"
	RoleManager  = "Manager"
	RoleAdmin    = "Admin"
)

// User is one roster entry. The password hash is opaque here; this layer
// never computes or verifies it.
type User struct {
	ID             string
	OrgID          string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	Role           string
	ManagerID      *string
	Department     string
	DepartmentHead bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RosterRepository is the organization user directory. It implements the
// approval.Roster interface used at plan-build time.
type RosterRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRosterRepository creates a new roster repository
func NewRosterRepository(db *sql.DB, logger *zap.Logger) *RosterRepository {
	return &RosterRepository{
		db:     db,
		logger: logger,
	}
}

var _ approval.Roster = (*RosterRepository)(nil)

// CreateUser creates a roster entry. Only employees carry a manager link.
func (r *RosterRepository) CreateUser(ctx context.Context, tx *sql.Tx, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role != RoleEmployee {
		user.ManagerID = nil
	}

	query := `
		INSERT INTO users (
			id, org_id, email, password_hash, first_name, last_name,
			role, manager_id, department, department_head
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := execContext(ctx, r.db, tx, query,
		user.ID,
		user.OrgID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
		user.ManagerID,
		user.Department,
		user.DepartmentHead,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateRoleAndManager changes a user's role and manager relationship.
func (r *RosterRepository) UpdateRoleAndManager(ctx context.Context, tx *sql.Tx, userID, role string, managerID *string) error {
	if role != RoleEmployee {
		managerID = nil
	}

	query := `UPDATE users SET role = ?, manager_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := execContext(ctx, r.db, tx, query, role, managerID, userID)
	if err != nil {
		r.logger.Error("Failed to update user", zap.String("id", userID), zap.Error(err))
		return fmt.Errorf("failed to update user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %s", approval.ErrNotFound, userID)
	}
	return nil
}

// GetByID retrieves a roster entry by user ID.
func (r *RosterRepository) GetByID(ctx context.Context, userID string) (*User, error) {
	query := `
		SELECT id, org_id, email, password_hash, first_name, last_name,
			role, manager_id, department, department_head, created_at, updated_at
		FROM users
		WHERE id = ?
	`

	var user User
	var managerID sql.NullString

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.OrgID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&managerID,
		&user.Department,
		&user.DepartmentHead,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %s", approval.ErrNotFound, userID)
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if managerID.Valid {
		user.ManagerID = &managerID.String
	}
	return &user, nil
}

// ResolveManager returns the user id of the submitter's assigned manager.
// An employee without a manager fails with NotFound; a Sequential("manager")
// rule then surfaces UnresolvableApprover at plan build.
func (r *RosterRepository) ResolveManager(ctx context.Context, userID string) (string, error) {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.ManagerID == nil || *user.ManagerID == "" {
		return "", fmt.Errorf("%w: user %s has no assigned manager", approval.ErrNotFound, userID)
	}
	return *user.ManagerID, nil
}

// UsersByRole returns every user of the organization holding the role.
func (r *RosterRepository) UsersByRole(ctx context.Context, orgID, role string) ([]string, error) {
	query := `SELECT id FROM users WHERE org_id = ? AND role = ? ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, orgID, role)
	if err != nil {
		r.logger.Error("Failed to query users by role", zap.String("role", role), zap.Error(err))
		return nil, fmt.Errorf("failed to query users by role: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no users with role %q in organization %s", approval.ErrNotFound, role, orgID)
	}
	return ids, nil
}

// DepartmentHead returns the user marked as head of the named department.
func (r *RosterRepository) DepartmentHead(ctx context.Context, orgID, department string) (string, error) {
	query := `
		SELECT id FROM users
		WHERE org_id = ? AND department = ? AND department_head = 1
		ORDER BY created_at ASC
		LIMIT 1
	`

	var id string
	err := r.db.QueryRowContext(ctx, query, orgID, department).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: department %q has no head", approval.ErrNotFound, department)
	}
	if err != nil {
		r.logger.Error("Failed to resolve department head", zap.String("department", department), zap.Error(err))
		return "", fmt.Errorf("failed to resolve department head: %w", err)
	}
	return id, nil
}
