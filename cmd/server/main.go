package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/buildflow/procurement/internal/application/dispatcher"
	"github.com/buildflow/procurement/internal/application/port"
	"github.com/buildflow/procurement/internal/application/service"
	"github.com/buildflow/procurement/internal/application/token"
	appwf "github.com/buildflow/procurement/internal/application/workflow"
	"github.com/buildflow/procurement/internal/config"
	domainwf "github.com/buildflow/procurement/internal/domain/workflow"
	"github.com/buildflow/procurement/internal/infrastructure/notify"
	"github.com/buildflow/procurement/internal/infrastructure/persistence/repository"
	"github.com/buildflow/procurement/internal/infrastructure/persistence/sqlite"
	"github.com/buildflow/procurement/internal/infrastructure/storage"
	"github.com/buildflow/procurement/internal/infrastructure/worker"
	httpiface "github.com/buildflow/procurement/internal/interfaces/http"
	"github.com/buildflow/procurement/pkg/database"
	"github.com/buildflow/procurement/pkg/utils"
)

func main() {
	// Local .env overrides, if present
	_ = gotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
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

	logger.Info("Starting procurement workflow server",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Create data directories
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create database directory", zap.Error(err))
		}
	}
	if err := os.MkdirAll(cfg.Storage.UploadDir, 0755); err != nil {
		logger.Fatal("Failed to create upload directory", zap.Error(err))
	}

	// Database
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

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories and transaction manager
	txManager := sqlite.NewDB(db.DB, logger)
	orderRepo := repository.NewOrderRepository(db.DB, logger)
	warrantyRepo := repository.NewWarrantyRepository(db.DB, logger)
	claimRepo := repository.NewClaimRepository(db.DB, logger)
	receiptRepo := repository.NewReceiptRepository(db.DB, logger)
	inspectionRepo := repository.NewInspectionRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)

	kv := utils.NewKVLogger(logger)

	// Event dispatcher and workflow engine
	bus := dispatcher.NewDispatcher(dispatcher.WithLogger(kv))
	defer bus.Close()

	engine := appwf.NewEngine(
		map[domainwf.EntityType]port.TransitionStore{
			domainwf.EntityPurchaseOrder:  orderRepo,
			domainwf.EntityWarranty:       warrantyRepo,
			domainwf.EntityWarrantyClaim:  claimRepo,
			domainwf.EntityPaymentReceipt: receiptRepo,
		},
		historyRepo,
		txManager,
		appwf.WithDispatcher(bus),
		appwf.WithLogger(kv),
	)

	// Upload token issuer and blob storage
	issuer := token.NewIssuer(receiptRepo, engine,
		token.WithMaxAttempts(cfg.Token.MaxAttempts),
		token.WithLogger(kv),
	)
	blobs := storage.NewLocalBlobStore(cfg.Storage.UploadDir, logger)
	notifier := notify.NewOutbox(db.DB, logger)

	// Application services
	orderService := service.NewOrderService(orderRepo, historyRepo, txManager, engine, kv)
	warrantyService := service.NewWarrantyService(warrantyRepo, orderRepo, historyRepo, txManager, kv)
	claimService := service.NewClaimService(claimRepo, warrantyRepo, historyRepo, txManager, engine, bus, kv,
		service.WithClaimGraceDays(cfg.Warranty.ClaimGraceDays))
	receiptService := service.NewReceiptService(receiptRepo, inspectionRepo, historyRepo, txManager, engine, issuer, blobs, bus, kv,
		service.WithTokenTTL(cfg.Token.TTL))

	// Side effects run off the dispatcher
	sideEffects := service.NewSideEffects(orderRepo, claimRepo, inspectionRepo, warrantyService, engine, notifier, kv)
	sideEffects.Register(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Receipt expiry sweeper
	if cfg.Sweeper.Enabled {
		sweeper := worker.NewExpirySweeper(receiptService, logger,
			worker.WithInterval(cfg.Sweeper.Interval))
		if err := sweeper.Start(ctx); err != nil {
			logger.Fatal("Failed to start expiry sweeper", zap.Error(err))
		}
		defer sweeper.Stop()
	}

	// HTTP server
	server := httpiface.NewServer(httpiface.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		JWTSecret:    cfg.Auth.JWTSecret,
	}, orderService, warrantyService, claimService, receiptService, kv)

	// Shut down on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server shut down cleanly")
}
