package submission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/expenseflow/approval-engine/internal/config"
	"github.com/expenseflow/approval-engine/internal/currency"
	"github.com/expenseflow/approval-engine/internal/domain/approval"
	"github.com/expenseflow/approval-engine/internal/engine"
	"github.com/expenseflow/approval-engine/internal/repository"
	"github.com/expenseflow/approval-engine/pkg/database"
	"github.com/expenseflow/approval-engine/pkg/utils"
)

// fallbackRuleName names the synthesized single-manager rule used under the
// manager_fallback policy.
const fallbackRuleName = "default-manager-approval"

// SubmitRequest is one expense submission.
type SubmitRequest struct {
	OrgID       string          `validate:"required"`
	SubmitterID string          `validate:"required"`
	Category    string          `validate:"required"`
	Description string          `validate:"max=2000"`
	ExpenseDate time.Time       `validate:"required"`
	Amount      decimal.Decimal `validate:"required"`
	Currency    string          `validate:"required"`
}

var validate = validator.New()

// Service is the expense submission path: currency conversion, rule lookup,
// plan building, and workflow initiation. Submission and workflow creation
// are one transaction; an expense never exists without its workflow instance.
type Service struct {
	db          *database.DB
	orgRepo     *repository.OrgRepository
	expenseRepo *repository.ExpenseRepository
	ruleRepo    *repository.RuleRepository
	builder     *approval.PlanBuilder
	engine      *engine.Engine
	converter   currency.Converter
	policy      config.SubmissionConfig
	logger      *zap.Logger
}

// NewService creates a new submission service
func NewService(
	db *database.DB,
	orgRepo *repository.OrgRepository,
	expenseRepo *repository.ExpenseRepository,
	ruleRepo *repository.RuleRepository,
	builder *approval.PlanBuilder,
	eng *engine.Engine,
	converter currency.Converter,
	policy config.SubmissionConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:          db,
		orgRepo:     orgRepo,
		expenseRepo: expenseRepo,
		ruleRepo:    ruleRepo,
		builder:     builder,
		engine:      eng,
		converter:   converter,
		policy:      policy,
		logger:      logger,
	}
}

// Submit validates and persists an expense together with its workflow
// instance. Plan building runs first so an unresolvable approver blocks the
// submission before anything is written.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*approval.Expense, *approval.WorkflowInstance, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, nil, err
	}

	org, err := s.orgRepo.GetByID(ctx, req.OrgID)
	if err != nil {
		return nil, nil, err
	}

	expense := &approval.Expense{
		ID:               uuid.NewString(),
		OrgID:            req.OrgID,
		SubmitterID:      req.SubmitterID,
		Category:         req.Category,
		Description:      utils.SanitizeComment(req.Description),
		ExpenseDate:      req.ExpenseDate,
		OriginalAmount:   req.Amount,
		OriginalCurrency: req.Currency,
		OrgCurrency:      org.DefaultCurrency,
		Status:           approval.ExpenseStatusPending,
	}

	if err := s.convert(ctx, expense); err != nil {
		return nil, nil, err
	}

	plan, err := s.resolvePlan(ctx, expense)
	if err != nil {
		return nil, nil, err
	}
	if plan.Len() == 0 {
		expense.Status = approval.ExpenseStatusApproved
	}

	var instance *approval.WorkflowInstance
	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		if err := s.expenseRepo.Create(ctx, tx, expense); err != nil {
			return err
		}
		instance, err = s.engine.Initiate(ctx, tx, expense, plan)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Expense submitted",
		zap.String("expense_id", expense.ID),
		zap.String("workflow_id", instance.ID),
		zap.String("submitter_id", expense.SubmitterID),
		zap.String("status", expense.Status))

	return expense, instance, nil
}

func (s *Service) validateRequest(req *SubmitRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", approval.ErrValidation, err)
	}
	if err := utils.ValidateAmount(req.Amount); err != nil {
		return fmt.Errorf("%w: %v", approval.ErrValidation, err)
	}
	if err := utils.ValidateCurrency(req.Currency); err != nil {
		return fmt.Errorf("%w: %v", approval.ErrValidation, err)
	}
	return nil
}

// convert fills the converted amount, applying the configured policy when the
// converter is unavailable.
func (s *Service) convert(ctx context.Context, e *approval.Expense) error {
	if e.OriginalCurrency == e.OrgCurrency {
		amount := e.OriginalAmount
		e.ConvertedAmount = &amount
		return nil
	}

	converted, err := s.converter.Convert(ctx, e.OriginalAmount, e.OriginalCurrency, e.OrgCurrency)
	if err != nil {
		if !errors.Is(err, approval.ErrConversionUnavailable) {
			return err
		}
		if s.policy.ConversionPolicy == config.ConversionReject {
			return fmt.Errorf("conversion policy rejects submission: %w", err)
		}
		// store_original: keep the unconverted amount and leave the converted
		// column empty for later backfill
		s.logger.Warn("Storing expense unconverted",
			zap.String("expense_id", e.ID),
			zap.String("from", e.OriginalCurrency),
			zap.String("to", e.OrgCurrency),
			zap.Error(err))
		return nil
	}

	e.ConvertedAmount = &converted
	return nil
}

// resolvePlan loads applicable rules and compiles the plan, applying the
// configured no-rules policy when the organization has none.
func (s *Service) resolvePlan(ctx context.Context, e *approval.Expense) (*approval.ApprovalPlan, error) {
	rules, err := s.ruleRepo.GetApplicable(ctx, e.OrgID, e)
	if err != nil && !errors.Is(err, approval.ErrNotFound) {
		return nil, err
	}

	if err != nil || len(rules) == 0 {
		switch s.policy.NoRulesPolicy {
		case config.NoRulesAutoApprove:
			s.logger.Info("No applicable rules, auto-approving per policy",
				zap.String("expense_id", e.ID))
			return &approval.ApprovalPlan{ExpenseID: e.ID, OrgID: e.OrgID}, nil

		case config.NoRulesManagerFallback:
			rules = []approval.ApprovalRule{{
				ID:    uuid.NewString(),
				OrgID: e.OrgID,
				Name:  fallbackRuleName,
				Kind:  approval.KindSequential,
				Selectors: []approval.ApproverSelector{
					{Kind: approval.SelectorManager},
				},
			}}

		default: // NoRulesBlock
			return nil, fmt.Errorf("%w: organization %s has no applicable approval rules and policy blocks submission",
				approval.ErrNotFound, e.OrgID)
		}
	}

	return s.builder.BuildPlan(ctx, e, rules)
}
