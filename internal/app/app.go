package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediavault/internal/config"
	"mediavault/internal/database"
	"mediavault/internal/event"
	"mediavault/internal/handler"
	"mediavault/internal/metrics"
	"mediavault/internal/middleware"
	"mediavault/internal/model"
	"mediavault/internal/repository"
	"mediavault/internal/router"
	"mediavault/internal/scheduler"
	"mediavault/internal/service"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, database.PoolSettings{
		MaxConns:     cfg.DBMaxConns,
		MinConns:     cfg.DBMinConns,
		ConnLifetime: cfg.DBConnLifetime,
		ConnIdleTime: cfg.DBConnIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	fileRepo := repository.NewFileRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	slog.Info("database ready")

	bus := event.NewBus()
	collector := metrics.NewCollector(bus)
	collectorCtx, collectorCancel := context.WithCancel(context.Background())
	go collector.Run(collectorCtx)

	// The scheduler and the ledger reference each other; the callback
	// closure breaks the cycle.
	var ledgerService *service.LedgerService
	sched := scheduler.New(func(ctx context.Context, key model.FileKey) error {
		return ledgerService.ExpireFile(ctx, key)
	}, bus, scheduler.Config{
		MaxAttempts: cfg.RetentionMaxAttempts,
		RetryBase:   cfg.RetentionRetryBase,
	})
	ledgerService = service.NewLedgerService(fileRepo, sched, bus)

	accountService := service.NewAccountService(userRepo, fileRepo, sched, bus, cfg.IsAdmin, cfg.IdleLogout)
	auditService := service.NewAuditService(auditRepo)
	dispatcher := service.NewDispatcher(accountService, ledgerService, auditService)

	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		collectorCancel()
		db.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	authMiddleware := middleware.NewAuthMiddleware(authService)

	// timers do not survive restarts; re-arm everything still scheduled
	pending, err := fileRepo.ListPendingRetention(context.Background())
	if err != nil {
		collectorCancel()
		db.Close()
		return nil, fmt.Errorf("failed to list pending retention: %w", err)
	}
	sched.RearmAll(pending)
	slog.Info("retention tasks re-armed", "count", sched.Pending())

	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Auth:    handler.NewAuthHandler(authService, accountService),
		File:    handler.NewFileHandler(ledgerService, accountService),
		Admin:   handler.NewAdminHandler(ledgerService),
		Audit:   handler.NewAuditHandler(auditService),
		Command: handler.NewCommandHandler(dispatcher, accountService),
	}, func(r *http.Request) error {
		return db.Health(r.Context())
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      appRouter,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			sched.Close,
			collectorCancel,
			db.Close,
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}
