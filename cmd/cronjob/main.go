package main

import (
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"stakelend-backend/internal/config"
	"stakelend-backend/internal/custody"
	"stakelend-backend/internal/jobs"
	"stakelend-backend/internal/logger"
	"stakelend-backend/internal/payment"
	"stakelend-backend/internal/repository/postgres"
	"stakelend-backend/internal/scheduler"
	"stakelend-backend/internal/security"
	"stakelend-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'sweep-expired-grants', 'settle-balances', 'balance-snapshots', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Stakelend Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
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

	// Initialize Repositories
	store := postgres.NewStore(db)
	registry := custody.NewRegistry(db)

	var rail payment.Rail
	if cfg.Payment.Type == "http" {
		rail = payment.NewClient(cfg.Payment.BaseURL)
	} else {
		rail = payment.NewMockRail()
	}

	tokenManager := security.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)

	// Initialize Services
	emailService := service.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.User,
		cfg.SMTP.Password,
		cfg.SMTP.From,
	)
	noteService := service.NewNotificationService(store.NotificationRepository)
	authService := service.NewAuthService(store.AccountRepository, tokenManager)
	ledgerService := service.NewLedgerService(store.LedgerRepository, store.PositionRepository, rail)

	// Initialize Job Runner
	runner := jobs.NewJobRunner(store, registry, &jobs.Services{
		Email:        emailService,
		Notification: noteService,
		Ledger:       ledgerService,
		Auth:         authService,
	}, cfg)

	// Run a single job and exit when requested
	if *runOnce != "" {
		switch *runOnce {
		case "sweep-expired-grants":
			runner.SweepExpiredGrants()
		case "settle-balances":
			runner.SettleAccumulatedBalances()
		case "balance-snapshots":
			runner.TakeBalanceSnapshots()
		case "all":
			runner.RunAllJobs()
		default:
			log.Fatalf("Unknown job: %s", *runOnce)
		}
		return
	}

	// Start the scheduler
	sched := scheduler.NewScheduler(runner)
	sched.Start()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sched.Stop()
}
