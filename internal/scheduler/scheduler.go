package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mvbarros/estoque/internal/config"
	"github.com/mvbarros/estoque/internal/repository/mongodb"
	"github.com/mvbarros/estoque/internal/service/catalog"
	"github.com/mvbarros/estoque/internal/service/ledger"
	"github.com/mvbarros/estoque/pkg/clients/alerts"
)

// Scheduler runs the periodic balance repair pass and the low-stock sweep.
// The reconciler is nil under the pure ledger strategy (there is no balance
// table to repair); the archive and alert client are nil when unconfigured.
type Scheduler struct {
	cron       *cron.Cron
	reconciler *ledger.Reconciler
	ledgerView *ledger.LedgerStore
	catalog    *catalog.Service
	archive    mongodb.Repository
	alerts     *alerts.Client
	cfg        config.ReconcileConfig
	logger     *zap.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(cfg config.ReconcileConfig, reconciler *ledger.Reconciler, ledgerView *ledger.LedgerStore, catalogSvc *catalog.Service, archive mongodb.Repository, alertsClient *alerts.Client, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cron:       cron.New(),
		reconciler: reconciler,
		ledgerView: ledgerView,
		catalog:    catalogSvc,
		archive:    archive,
		alerts:     alertsClient,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start schedules and starts the reconciliation job.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.CronSchedule))

	_, err := s.cron.AddFunc(s.cfg.CronSchedule, s.runReconciliation)
	if err != nil {
		s.logger.Error("failed to schedule reconciliation pass", zap.Error(err))
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) runReconciliation() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if s.reconciler != nil {
		report, err := s.reconciler.Run(ctx)
		if err != nil {
			s.logger.Error("reconciliation pass failed", zap.Error(err))
		} else {
			s.logger.Info("reconciliation pass finished",
				zap.Int("items_checked", report.ItemsChecked),
				zap.Int("corrections", len(report.Corrections)))

			if s.archive != nil {
				if err := s.archive.SaveReconciliationReport(ctx, report); err != nil {
					s.logger.Error("failed to archive reconciliation report", zap.Error(err))
				}
			}
		}
	}

	s.sweepLowStock(ctx)
}

// sweepLowStock reports every active item sitting under its minimum level.
func (s *Scheduler) sweepLowStock(ctx context.Context) {
	if s.alerts == nil {
		return
	}

	sums, err := s.ledgerView.Sums(ctx)
	if err != nil {
		s.logger.Error("low stock sweep failed reading ledger", zap.Error(err))
		return
	}

	items, err := s.catalog.Items(ctx)
	if err != nil {
		s.logger.Error("low stock sweep failed reading items", zap.Error(err))
		return
	}

	for key, item := range items {
		balance := sums[key]
		if item.MinStock <= 0 || balance >= item.MinStock {
			continue
		}

		alert := alerts.LowStockAlert{
			ItemID:   item.ID,
			Name:     item.Name,
			Unit:     item.Unit,
			Balance:  balance,
			MinStock: item.MinStock,
			At:       time.Now(),
		}
		if err := s.alerts.NotifyLowStock(ctx, alert); err != nil {
			s.logger.Warn("low stock alert failed", zap.String("item_id", item.ID), zap.Error(err))
		}
	}
}
