// Package postgres implements the repository contracts against PostgreSQL.
// Every mutating operation that spans more than one row runs inside a
// single transaction that locks the position row first, so a borrow, an
// extension and a withdrawal against the same position serialize on the
// database.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"stakelend-backend/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store bundles all repository implementations over one database handle.
type Store struct {
	db *sql.DB
	repository.AccountRepository
	repository.PositionRepository
	repository.ReceiptRepository
	repository.LedgerRepository
	repository.FeeConfigRepository
	repository.NotificationRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                     db,
		AccountRepository:      NewAccountRepository(db),
		PositionRepository:     NewPositionRepository(db),
		ReceiptRepository:      NewReceiptRepository(db),
		LedgerRepository:       NewLedgerRepository(db),
		FeeConfigRepository:    NewFeeConfigRepository(db),
		NotificationRepository: NewNotificationRepository(db),
	}
}

// RunMigrations applies the embedded schema migrations.
func (s *Store) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) DB() *sql.DB { return s.db }
