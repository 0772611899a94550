package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fekuna/omnipos-sync/config"
	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	debtRepoPkg "github.com/fekuna/omnipos-sync/internal/debt/repository"
	debtUCPkg "github.com/fekuna/omnipos-sync/internal/debt/usecase"
	"github.com/fekuna/omnipos-sync/internal/device"
	invRepoPkg "github.com/fekuna/omnipos-sync/internal/inventory/repository"
	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/outbox"
	obRepoPkg "github.com/fekuna/omnipos-sync/internal/outbox/repository"
	obUCPkg "github.com/fekuna/omnipos-sync/internal/outbox/usecase"
	"github.com/fekuna/omnipos-sync/internal/product"
	prodRepoPkg "github.com/fekuna/omnipos-sync/internal/product/repository"
	prodUCPkg "github.com/fekuna/omnipos-sync/internal/product/usecase"
	rateRepoPkg "github.com/fekuna/omnipos-sync/internal/rate/repository"
	"github.com/fekuna/omnipos-sync/internal/reconcile"
	"github.com/fekuna/omnipos-sync/internal/remote"
	saleRepoPkg "github.com/fekuna/omnipos-sync/internal/sale/repository"
	saleUCPkg "github.com/fekuna/omnipos-sync/internal/sale/usecase"
	"github.com/fekuna/omnipos-sync/internal/settings"
	setRepoPkg "github.com/fekuna/omnipos-sync/internal/settings/repository"
	setUCPkg "github.com/fekuna/omnipos-sync/internal/settings/usecase"
	userRepoPkg "github.com/fekuna/omnipos-sync/internal/user/repository"
	userUCPkg "github.com/fekuna/omnipos-sync/internal/user/usecase"
	"github.com/fekuna/omnipos-sync/internal/worker"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// app is the wired process shared by every command.
type app struct {
	cfg      *config.Config
	logger   logger.ZapLogger
	db       *sqlx.DB
	dc       device.Context
	outbox   outbox.UseCase
	products product.UseCase
	settings settings.UseCase
	worker   *worker.Worker
}

func newLogger(cfg *config.Config) logger.ZapLogger {
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
		File:              cfg.Logger.File,
		MaxSizeMB:         cfg.Logger.MaxSizeMB,
		MaxBackups:        cfg.Logger.MaxBackups,
		MaxAgeDays:        cfg.Logger.MaxAgeDays,
	}
	if cfg.IsDevelopment() {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = cfg.Logger.Level
	}
	return logger.NewZapLogger(logConfig)
}

func bootstrap(ctx context.Context) (*app, error) {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// 2. Logger
	appLogger := newLogger(cfg)

	// 3. Local store
	db, err := sqlite.NewSQLite(&sqlite.Config{Path: cfg.SQLite.Path, BusyTimeoutMS: cfg.SQLite.BusyTimeoutMS})
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	appLogger.Debug("Opened local store", zap.String("path", cfg.SQLite.Path))

	// 4. Repositories
	txm := sqlite.NewTxManager(db)
	ledger := invRepoPkg.NewSQLiteRepository(db)
	rateRepo := rateRepoPkg.NewSQLiteRepository(db, cfg.Sync.DefaultRate)

	// 5. UseCases
	setUC := setUCPkg.NewSettingsUseCase(setRepoPkg.NewSQLiteRepository(db), appLogger)
	obUC := obUCPkg.NewOutboxUseCase(obRepoPkg.NewSQLiteRepository(db), ledger, txm, appLogger, obUCPkg.WithMaxTries(cfg.Sync.MaxTries))
	prodUC := prodUCPkg.NewProductUseCase(prodRepoPkg.NewSQLiteRepository(db), ledger, rateRepo, obUC, txm, appLogger)
	saleUC := saleUCPkg.NewSaleUseCase(saleRepoPkg.NewSQLiteRepository(db), prodRepoPkg.NewSQLiteRepository(db), rateRepo, obUC, txm, appLogger)
	debtUC := debtUCPkg.NewDebtUseCase(debtRepoPkg.NewSQLiteRepository(db), txm, appLogger)
	userUC := userUCPkg.NewUserUseCase(userRepoPkg.NewSQLiteRepository(db), appLogger)

	deviceID, err := setUC.EnsureDeviceID(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	dc := device.Context{DeviceID: deviceID}

	// 6. Remote client and worker
	client := remote.NewHTTPClient(remote.Config{
		URL:            cfg.Remote.URL,
		Timeout:        cfg.Remote.Timeout,
		PushTimeout:    cfg.Remote.PushTimeout,
		ProbeTimeout:   cfg.Sync.ProbeTimeout,
		EntityTimeouts: cfg.Remote.EntityTimeouts,
		Retries:        cfg.Remote.Retries,
		RetryDelay:     cfg.Remote.RetryDelay,
		PageSize:       cfg.Remote.PageSize,
		MaxPageRetries: cfg.Remote.MaxPageRetries,
	}, &http.Client{}, appLogger)

	applier := reconcile.NewApplier(prodUC, saleUC, debtUC, userUC, rateRepo, obUC, txm, appLogger)
	w := worker.NewWorker(worker.Config{
		Interval:      cfg.Sync.Interval,
		ProbeInterval: cfg.Sync.ProbeInterval,
		ProbeTimeout:  cfg.Sync.ProbeTimeout,
		StartupDelay:  cfg.Sync.StartupDelay,
		PushBatchSize: cfg.Sync.PushBatchSize,
		PushTimeout:   cfg.Sync.PushTimeout,
		PullTimeout:   cfg.Sync.PullTimeout,
	}, dc, client, obUC, prodUC, setUC, applier, appLogger)

	return &app{
		cfg:      cfg,
		logger:   appLogger,
		db:       db,
		dc:       dc,
		outbox:   obUC,
		products: prodUC,
		settings: setUC,
		worker:   w,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("Failed to close local store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
