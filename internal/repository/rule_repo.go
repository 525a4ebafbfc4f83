package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/expenseflow/approval-engine/internal/domain/approval"
)

// RuleRepository is the rule store: approval rule definitions per
// organization, versioned so that edits never touch a referenced rule.
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sql.DB, logger *zap.Logger) *RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new rule at version 1. The rule must already be validated.
func (r *RuleRepository) Create(ctx context.Context, tx *sql.Tx, rule *approval.ApprovalRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.Version = 1
	rule.Active = true

	selectors, err := json.Marshal(rule.Selectors)
	if err != nil {
		return fmt.Errorf("failed to marshal selectors: %w", err)
	}
	scope, err := json.Marshal(rule.Scope)
	if err != nil {
		return fmt.Errorf("failed to marshal scope: %w", err)
	}

	query := `
		INSERT INTO approval_rules (
			id, org_id, name, kind, priority, threshold, short_circuit,
			selectors, scope, version, active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = execContext(ctx, r.db, tx, query,
		rule.ID,
		rule.OrgID,
		rule.Name,
		string(rule.Kind),
		rule.Priority,
		rule.Threshold.String(),
		rule.ShortCircuit,
		string(selectors),
		string(scope),
		rule.Version,
		rule.Active,
	)
	if err != nil {
		r.logger.Error("Failed to create rule", zap.String("name", rule.Name), zap.Error(err))
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return nil
}

// NewVersion retires the current version of the rule and inserts the edited
// definition as a new row at version+1. In-flight workflows are unaffected:
// their plans are snapshots.
func (r *RuleRepository) NewVersion(ctx context.Context, tx *sql.Tx, rule *approval.ApprovalRule) error {
	prev, err := r.getActive(ctx, rule.OrgID, rule.Name)
	if err != nil {
		return err
	}

	if _, err := execContext(ctx, r.db, tx,
		`UPDATE approval_rules SET active = 0 WHERE id = ?`, prev.ID); err != nil {
		return fmt.Errorf("failed to retire rule version: %w", err)
	}

	selectors, err := json.Marshal(rule.Selectors)
	if err != nil {
		return fmt.Errorf("failed to marshal selectors: %w", err)
	}
	scope, err := json.Marshal(rule.Scope)
	if err != nil {
		return fmt.Errorf("failed to marshal scope: %w", err)
	}

	rule.ID = uuid.NewString()
	rule.Version = prev.Version + 1
	rule.Active = true

	query := `
		INSERT INTO approval_rules (
			id, org_id, name, kind, priority, threshold, short_circuit,
			selectors, scope, version, active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = execContext(ctx, r.db, tx, query,
		rule.ID,
		rule.OrgID,
		rule.Name,
		string(rule.Kind),
		rule.Priority,
		rule.Threshold.String(),
		rule.ShortCircuit,
		string(selectors),
		string(scope),
		rule.Version,
		rule.Active,
	)
	if err != nil {
		r.logger.Error("Failed to insert rule version",
			zap.String("name", rule.Name),
			zap.Int("version", rule.Version),
			zap.Error(err))
		return fmt.Errorf("failed to insert rule version: %w", err)
	}

	r.logger.Info("Rule version created",
		zap.String("name", rule.Name),
		zap.Int("version", rule.Version))
	return nil
}

// GetApplicable returns the organization's active rules whose scope matches
// the expense, ordered by priority ascending. It fails with NotFound when the
// organization has no configured rules at all; what to do then is the
// caller's policy, never an implicit default here.
func (r *RuleRepository) GetApplicable(ctx context.Context, orgID string, expense *approval.Expense) ([]approval.ApprovalRule, error) {
	rules, err := r.listActive(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: organization %s has no approval rules", approval.ErrNotFound, orgID)
	}

	applicable := make([]approval.ApprovalRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Scope.Matches(expense) {
			applicable = append(applicable, rule)
		}
	}
	return applicable, nil
}

// listActive returns all active rules for the organization, priority ascending.
func (r *RuleRepository) listActive(ctx context.Context, orgID string) ([]approval.ApprovalRule, error) {
	query := `
		SELECT id, org_id, name, kind, priority, threshold, short_circuit,
			selectors, scope, version, active
		FROM approval_rules
		WHERE org_id = ? AND active = 1
		ORDER BY priority ASC, name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		r.logger.Error("Failed to list rules", zap.String("org_id", orgID), zap.Error(err))
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []approval.ApprovalRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// getActive returns the active version of a named rule.
func (r *RuleRepository) getActive(ctx context.Context, orgID, name string) (*approval.ApprovalRule, error) {
	query := `
		SELECT id, org_id, name, kind, priority, threshold, short_circuit,
			selectors, scope, version, active
		FROM approval_rules
		WHERE org_id = ? AND name = ? AND active = 1
	`

	row := r.db.QueryRowContext(ctx, query, orgID, name)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: rule %q", approval.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*approval.ApprovalRule, error) {
	var rule approval.ApprovalRule
	var kind, threshold, selectors, scope string

	err := row.Scan(
		&rule.ID,
		&rule.OrgID,
		&rule.Name,
		&kind,
		&rule.Priority,
		&threshold,
		&rule.ShortCircuit,
		&selectors,
		&scope,
		&rule.Version,
		&rule.Active,
	)
	if err != nil {
		return nil, err
	}

	rule.Kind = approval.RuleKind(kind)
	rule.Threshold, err = decimal.NewFromString(threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to parse threshold %q: %w", threshold, err)
	}
	if err := json.Unmarshal([]byte(selectors), &rule.Selectors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selectors: %w", err)
	}
	if err := json.Unmarshal([]byte(scope), &rule.Scope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scope: %w", err)
	}
	return &rule, nil
}

// execContext routes a statement through the transaction when one is given.
func execContext(ctx context.Context, db *sql.DB, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}
