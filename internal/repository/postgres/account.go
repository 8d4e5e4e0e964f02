package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/repository"
)

const uniqueViolation = "23505"

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO accounts (email, name, password_hash, role)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_on`,
		account.Email, account.Name, account.PasswordHash, account.Role,
	).Scan(&account.ID, &account.CreatedOn)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("%w: %s", domain.ErrAccountExists, account.Email)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, role, created_on FROM accounts WHERE id = $1`, id))
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, role, created_on FROM accounts WHERE email = $1`, email))
}

func (r *accountRepository) scanOne(row *sql.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Role, &a.CreatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}
