package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/expenseflow/approval-engine/internal/repository"
)

// Exporter writes a workflow's decision ledger to an Excel audit report:
// instance summary, plan steps, then one row per ledger entry.
type Exporter struct {
	workflowRepo *repository.WorkflowRepository
	ledgerRepo   *repository.LedgerRepository
	outputDir    string
	logger       *zap.Logger
}

// NewExporter creates a new audit exporter
func NewExporter(workflowRepo *repository.WorkflowRepository, ledgerRepo *repository.LedgerRepository, outputDir string, logger *zap.Logger) *Exporter {
	return &Exporter{
		workflowRepo: workflowRepo,
		ledgerRepo:   ledgerRepo,
		outputDir:    outputDir,
		logger:       logger,
	}
}

// Export writes the report for one workflow and returns the file path.
func (e *Exporter) Export(ctx context.Context, workflowID string) (string, error) {
	instance, err := e.workflowRepo.GetByID(ctx, workflowID)
	if err != nil {
		return "", err
	}
	decisions, err := e.ledgerRepo.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	e.setCell(f, sheet, "A1", "Workflow")
	e.setCell(f, sheet, "B1", instance.ID)
	e.setCell(f, sheet, "A2", "Expense")
	e.setCell(f, sheet, "B2", instance.ExpenseID)
	e.setCell(f, sheet, "A3", "Status")
	e.setCell(f, sheet, "B3", instance.Status.String())
	e.setCell(f, sheet, "A4", "Created")
	e.setCell(f, sheet, "B4", instance.CreatedAt.Format("2006-01-02 15:04:05"))
	if instance.CompletedAt != nil {
		e.setCell(f, sheet, "A5", "Completed")
		e.setCell(f, sheet, "B5", instance.CompletedAt.Format("2006-01-02 15:04:05"))
	}

	row := 7
	e.setCell(f, sheet, fmt.Sprintf("A%d", row), "Step")
	e.setCell(f, sheet, fmt.Sprintf("B%d", row), "Rule")
	e.setCell(f, sheet, fmt.Sprintf("C%d", row), "Kind")
	e.setCell(f, sheet, fmt.Sprintf("D%d", row), "Approvers")
	row++
	for i, step := range instance.Plan.Steps {
		e.setCell(f, sheet, fmt.Sprintf("A%d", row), i)
		e.setCell(f, sheet, fmt.Sprintf("B%d", row), step.RuleName)
		e.setCell(f, sheet, fmt.Sprintf("C%d", row), string(step.Kind))
		e.setCell(f, sheet, fmt.Sprintf("D%d", row), strings.Join(step.Approvers, ", "))
		row++
	}

	row++
	e.setCell(f, sheet, fmt.Sprintf("A%d", row), "Step")
	e.setCell(f, sheet, fmt.Sprintf("B%d", row), "Approver")
	e.setCell(f, sheet, fmt.Sprintf("C%d", row), "Outcome")
	e.setCell(f, sheet, fmt.Sprintf("D%d", row), "Comment")
	e.setCell(f, sheet, fmt.Sprintf("E%d", row), "Decided At")
	row++
	for _, d := range decisions {
		e.setCell(f, sheet, fmt.Sprintf("A%d", row), d.StepIndex)
		e.setCell(f, sheet, fmt.Sprintf("B%d", row), d.ApproverID)
		e.setCell(f, sheet, fmt.Sprintf("C%d", row), string(d.Outcome))
		e.setCell(f, sheet, fmt.Sprintf("D%d", row), d.Comment)
		e.setCell(f, sheet, fmt.Sprintf("E%d", row), d.DecidedAt.Format("2006-01-02 15:04:05"))
		row++
	}

	outputPath := filepath.Join(e.outputDir, fmt.Sprintf("audit_%s.xlsx", workflowID))
	if err := f.SaveAs(outputPath); err != nil {
		return "", fmt.Errorf("failed to save audit report: %w", err)
	}

	e.logger.Info("Audit report exported",
		zap.String("workflow_id", workflowID),
		zap.String("path", outputPath),
		zap.Int("decisions", len(decisions)))

	return outputPath, nil
}

// setCell writes a cell value, logging instead of failing on a bad reference.
func (e *Exporter) setCell(f *excelize.File, sheet, cell string, value any) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
