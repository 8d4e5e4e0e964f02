package jobs

import (
	"stakelend-backend/internal/config"
	"stakelend-backend/internal/custody"
	"stakelend-backend/internal/logger"
	"stakelend-backend/internal/repository/postgres"
	"stakelend-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	store    *postgres.Store
	registry custody.AssetCustody
	services *Services
	config   *config.Config
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Email        service.EmailService
	Notification service.NotificationService
	Ledger       service.LedgerService
	Auth         service.AuthService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(store *postgres.Store, registry custody.AssetCustody, services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		store:    store,
		registry: registry,
		services: services,
		config:   cfg,
	}
}

// Config exposes the runner's configuration to the scheduler
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAllJobs runs every job once (for manual execution)
func (jr *JobRunner) RunAllJobs() {
	jr.SweepExpiredGrants()
	jr.SettleAccumulatedBalances()
	jr.TakeBalanceSnapshots()
}
