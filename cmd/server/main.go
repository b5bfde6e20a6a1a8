package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/mvbarros/estoque/internal/config"
	"github.com/mvbarros/estoque/internal/repository/mongodb"
	"github.com/mvbarros/estoque/internal/repository/sheets"
	"github.com/mvbarros/estoque/internal/scheduler"
	"github.com/mvbarros/estoque/internal/server/handlers"
	"github.com/mvbarros/estoque/internal/server/router"
	"github.com/mvbarros/estoque/internal/server/session"
	catalogsvc "github.com/mvbarros/estoque/internal/service/catalog"
	ledgersvc "github.com/mvbarros/estoque/internal/service/ledger"
	movementsvc "github.com/mvbarros/estoque/internal/service/movement"
	"github.com/mvbarros/estoque/pkg/clients/alerts"
	"github.com/mvbarros/estoque/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, cfg.Retry, baseLogger.Named("repo.sheets"))
	if err != nil {
		baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
	}

	catalog := catalogsvc.NewService(sheetsRepo, cfg.Sheets.ItemsSheet, cfg.Sheets.UsersSheet, cfg.Balance.ReferenceTTL, baseLogger.Named("svc.catalog"))
	ledgerView := ledgersvc.NewLedgerStore(sheetsRepo, cfg.Sheets.TransactionsSheet, cfg.Balance.CacheTTL, baseLogger.Named("svc.ledger"))

	var store ledgersvc.BalanceStore = ledgerView
	var reconciler *ledgersvc.Reconciler
	if cfg.Balance.Strategy == config.StrategyMaterialized {
		table := ledgersvc.NewMaterializedStore(sheetsRepo, cfg.Sheets.BalancesSheet, cfg.Balance.CacheTTL, baseLogger.Named("svc.balances"))
		store = table
		reconciler = ledgersvc.NewReconciler(ledgerView, table, baseLogger.Named("svc.reconciler"))
	}

	var alertsClient *alerts.Client
	if cfg.Alerts.WebhookURL != "" {
		alertsClient = alerts.NewClient(cfg.Alerts.WebhookURL)
		baseLogger.Info("low stock alert webhook enabled")
	} else {
		baseLogger.Warn("ALERT_WEBHOOK_URL missing, low stock alerts disabled")
	}

	var archive mongodb.Repository
	if cfg.MongoDB.URI != "" {
		mongoRepo, err := mongodb.NewMongoDBRepository(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		archive = mongoRepo
		baseLogger.Info("reconciliation report archive enabled")
	}

	movements := movementsvc.NewService(catalog, store, sheetsRepo, alertsClient, cfg.Sheets.TransactionsSheet, cfg.Sheets.CountsSheet, baseLogger.Named("svc.movement"))

	sessions := session.NewManager(cfg.Session.TTL)
	authHandler := handlers.NewAuthHandler(catalog, sessions, cfg.Session.CookieName, cfg.Session.TTL, baseLogger.Named("handlers.auth"))
	movementHandler := handlers.NewMovementHandler(catalog, movements, store, ledgerView, sessions, baseLogger.Named("handlers.movement"))
	engine := router.New(authHandler, movementHandler, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(cfg.Reconcile, reconciler, ledgerView, catalog, archive, alertsClient, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("strategy", cfg.Balance.Strategy))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
