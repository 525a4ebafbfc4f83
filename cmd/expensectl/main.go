package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/expenseflow/approval-engine/internal/audit"
	"github.com/expenseflow/approval-engine/internal/config"
	"github.com/expenseflow/approval-engine/internal/currency"
	"github.com/expenseflow/approval-engine/internal/domain/approval"
	"github.com/expenseflow/approval-engine/internal/engine"
	"github.com/expenseflow/approval-engine/internal/notify"
	"github.com/expenseflow/approval-engine/internal/repository"
	"github.com/expenseflow/approval-engine/internal/submission"
	"github.com/expenseflow/approval-engine/pkg/database"
	"github.com/expenseflow/approval-engine/pkg/utils"
)

const usage = `usage: expensectl [-config path] <command>

commands:
  migrate                                                apply pending database migrations
  seed                                                   create a demo organization, roster, and rules
  submit <org> <submitter> <category> <amount> <currency> [description]
                                                         submit an expense and start its workflow
  decide <workflow> <approver> <approve|reject> [comment]
                                                         record one approver's decision
  export-audit <workflow>                                write the Excel audit report for a workflow
  replay <workflow>                                      re-derive a workflow's state from its ledger
`

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()

	switch cmd := flag.Arg(0); cmd {
	case "migrate":
		migrator := database.NewMigrator(db, logger)
		if err := migrator.Run(os.DirFS(cfg.Database.MigrationsDir)); err != nil {
			logger.Fatal("Migration failed", zap.Error(err))
		}

	case "seed":
		if err := seed(ctx, db, logger); err != nil {
			logger.Fatal("Seed failed", zap.Error(err))
		}

	case "submit":
		if flag.NArg() < 6 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		amount, err := decimal.NewFromString(flag.Arg(4))
		if err != nil {
			logger.Fatal("Invalid amount", zap.String("amount", flag.Arg(4)), zap.Error(err))
		}
		req := &submission.SubmitRequest{
			OrgID:       flag.Arg(1),
			SubmitterID: flag.Arg(2),
			Category:    flag.Arg(3),
			ExpenseDate: time.Now().UTC(),
			Amount:      amount,
			Currency:    flag.Arg(5),
		}
		if flag.NArg() > 6 {
			req.Description = flag.Arg(6)
		}

		eng, dispatcher := buildEngine(ctx, cfg, db, logger)
		defer dispatcher.Stop()

		orgRepo := repository.NewOrgRepository(db.DB, logger)
		expenseRepo := repository.NewExpenseRepository(db.DB, logger)
		ruleRepo := repository.NewRuleRepository(db.DB, logger)
		rosterRepo := repository.NewRosterRepository(db.DB, logger)
		service := submission.NewService(db, orgRepo, expenseRepo, ruleRepo,
			approval.NewPlanBuilder(rosterRepo), eng,
			currency.NewStaticConverter(nil), cfg.Submission, logger)

		expense, instance, err := service.Submit(ctx, req)
		if err != nil {
			logger.Fatal("Submission failed", zap.Error(err))
		}
		fmt.Printf("expense=%s workflow=%s status=%s\n", expense.ID, instance.ID, instance.Status)

	case "decide":
		if flag.NArg() < 4 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		var outcome approval.Outcome
		switch flag.Arg(3) {
		case "approve":
			outcome = approval.OutcomeApprove
		case "reject":
			outcome = approval.OutcomeReject
		default:
			fmt.Fprintf(os.Stderr, "outcome must be approve or reject, got %q\n", flag.Arg(3))
			os.Exit(2)
		}
		comment := ""
		if flag.NArg() > 4 {
			comment = flag.Arg(4)
		}

		eng, dispatcher := buildEngine(ctx, cfg, db, logger)
		defer dispatcher.Stop()

		instance, err := eng.RecordDecision(ctx, flag.Arg(1), flag.Arg(2), outcome, comment)
		if err != nil {
			logger.Fatal("Decision failed", zap.Error(err))
		}
		fmt.Printf("workflow=%s status=%s step=%d\n", instance.ID, instance.Status, instance.StepIndex)

	case "export-audit":
		if flag.NArg() < 2 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		if err := os.MkdirAll(cfg.Audit.OutputDir, 0755); err != nil {
			logger.Fatal("Failed to create output directory", zap.Error(err))
		}
		workflowRepo := repository.NewWorkflowRepository(db.DB, logger)
		ledgerRepo := repository.NewLedgerRepository(db.DB, logger)
		exporter := audit.NewExporter(workflowRepo, ledgerRepo, cfg.Audit.OutputDir, logger)
		path, err := exporter.Export(ctx, flag.Arg(1))
		if err != nil {
			logger.Fatal("Audit export failed", zap.Error(err))
		}
		fmt.Println(path)

	case "replay":
		if flag.NArg() < 2 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		workflowRepo := repository.NewWorkflowRepository(db.DB, logger)
		ledgerRepo := repository.NewLedgerRepository(db.DB, logger)
		expenseRepo := repository.NewExpenseRepository(db.DB, logger)
		eng := engine.NewEngine(db, workflowRepo, ledgerRepo, expenseRepo, nil, logger)
		progress, err := eng.Reconstruct(ctx, flag.Arg(1))
		if err != nil {
			logger.Fatal("Replay failed", zap.Error(err))
		}
		fmt.Printf("status=%s step=%d\n", progress.Status, progress.StepIndex)

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n%s", cmd, usage)
		os.Exit(2)
	}
}

// buildEngine wires the decision engine with its notification dispatcher.
// The dispatcher is already started; the caller stops it on exit.
func buildEngine(ctx context.Context, cfg *config.Config, db *database.DB, logger *zap.Logger) (*engine.Engine, *notify.Dispatcher) {
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}
	if cfg.Notify.Lark.Enabled {
		notifiers = append(notifiers, notify.NewLarkNotifier(notify.LarkConfig{
			AppID:         cfg.Notify.Lark.AppID,
			AppSecret:     cfg.Notify.Lark.AppSecret,
			ReceiveChatID: cfg.Notify.Lark.ReceiveChatID,
		}, logger))
	}
	dispatcher := notify.NewDispatcher(cfg.Notify.QueueSize, cfg.Notify.SendTimeout, logger, notifiers...)
	if err := dispatcher.Start(ctx); err != nil {
		logger.Fatal("Failed to start notification dispatcher", zap.Error(err))
	}

	workflowRepo := repository.NewWorkflowRepository(db.DB, logger)
	ledgerRepo := repository.NewLedgerRepository(db.DB, logger)
	expenseRepo := repository.NewExpenseRepository(db.DB, logger)
	return engine.NewEngine(db, workflowRepo, ledgerRepo, expenseRepo, dispatcher, logger), dispatcher
}
