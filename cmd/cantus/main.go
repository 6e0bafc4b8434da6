package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mirelhart/cantus/internal/api"
	"github.com/mirelhart/cantus/internal/audit"
	"github.com/mirelhart/cantus/internal/catalog"
	"github.com/mirelhart/cantus/internal/config"
	"github.com/mirelhart/cantus/internal/credit"
	"github.com/mirelhart/cantus/internal/database"
	"github.com/mirelhart/cantus/internal/event"
	"github.com/mirelhart/cantus/internal/identity"
	"github.com/mirelhart/cantus/internal/logging"
	"github.com/mirelhart/cantus/internal/version"
	"github.com/mirelhart/cantus/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	configPath := os.Getenv("CANTUS_CONFIG_PATH")
	if configPath == "" {
		configPath = "data/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Set up structured logging via the logging Manager
	logManager, logger := logging.NewManager(cfg.Logging)
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	// Open database
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	// Run migrations
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	// Initialize services
	identityService := identity.NewService(db, logger)
	catalogService := catalog.NewService(db)
	creditLedger := credit.NewLedger(db)
	auditService := audit.NewService(db, logger)

	// Initialize event bus and subscribe the audit log to every mutation
	eventBus := event.NewBus(logger, 256)
	go eventBus.Start()
	defer eventBus.Stop()

	eventBus.SubscribeAll(auditService.HandleEvent)
	identityService.SetEventBus(eventBus)

	logger.Info("starting cantus",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
	)

	// Set up HTTP router
	router := api.NewRouter(api.RouterDeps{
		IdentityService: identityService,
		CatalogService:  catalogService,
		CreditLedger:    creditLedger,
		AuditService:    auditService,
		LogManager:      logManager,
		DB:              db,
		Logger:          logger,
		BasePath:        cfg.Server.BasePath,
	})

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Watch the config file for logging changes
	watcherService := watcher.NewService(configPath, logManager, logger)
	go watcherService.Start(ctx)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.String("base_path", cfg.Server.BasePath))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
