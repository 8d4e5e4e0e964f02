package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	httpapi "stakelend-backend/internal/api/http"
	"stakelend-backend/internal/config"
	"stakelend-backend/internal/custody"
	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/engine"
	"stakelend-backend/internal/logger"
	"stakelend-backend/internal/payment"
	"stakelend-backend/internal/repository/postgres"
	"stakelend-backend/internal/security"
	"stakelend-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Stakelend Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	// Initialize Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories and schema
	store := postgres.NewStore(db)
	if err := store.RunMigrations(context.Background()); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := store.EnsureDefault(context.Background(), domain.FeeRates{
		ProtocolPermille: cfg.Fees.ProtocolPermille,
		BrokerPermille:   cfg.Fees.BrokerPermille,
		EffectiveFrom:    time.Now().UTC(),
	}); err != nil {
		logger.Error("Failed to seed fee configuration", "error", err)
		log.Fatalf("Failed to seed fee configuration: %v", err)
	}

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)

	// Initialize collaborators
	registry := custody.NewRegistry(db)

	var rail payment.Rail
	if cfg.Payment.Type == "http" {
		logger.Info("Using HTTP payout rail", "base_url", cfg.Payment.BaseURL)
		rail = payment.NewClient(cfg.Payment.BaseURL)
	} else {
		logger.Info("Using mock payout rail")
		rail = payment.NewMockRail()
	}

	// Initialize the accounting engine
	eng := engine.New()

	// Initialize Services
	emailSvc := service.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.User,
		cfg.SMTP.Password,
		cfg.SMTP.From,
	)
	noteSvc := service.NewNotificationService(store.NotificationRepository)
	authSvc := service.NewAuthService(store.AccountRepository, tokenManager)
	stakeSvc := service.NewStakeService(
		registry,
		store.PositionRepository,
		store.ReceiptRepository,
		store.LedgerRepository,
		store.FeeConfigRepository,
		eng,
		rail,
	)
	rentalSvc := service.NewRentalService(
		registry,
		store.PositionRepository,
		store.ReceiptRepository,
		store.LedgerRepository,
		store.FeeConfigRepository,
		store.AccountRepository,
		eng,
		noteSvc,
		emailSvc,
	)
	ledgerSvc := service.NewLedgerService(store.LedgerRepository, store.PositionRepository, rail)
	adminSvc := service.NewAdminService(store.AccountRepository, store.FeeConfigRepository, store.LedgerRepository, eng, rail)

	// Initialize HTTP server
	server := httpapi.NewServer(authSvc, stakeSvc, rentalSvc, ledgerSvc, adminSvc, noteSvc, tokenManager)
	httpServer := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}
