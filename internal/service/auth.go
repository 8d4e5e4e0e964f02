package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/repository"
	"stakelend-backend/internal/security"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type authService struct {
	accounts repository.AccountRepository
	tokens   security.TokenManager
}

func NewAuthService(accounts repository.AccountRepository, tokens security.TokenManager) AuthService {
	return &authService{accounts: accounts, tokens: tokens}
}

func (s *authService) Register(ctx context.Context, name, email, password string) (*domain.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         domain.AccountRoleMember,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*domain.Account, string, string, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, "", "", ErrInvalidCredentials
		}
		return nil, "", "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, "", "", ErrInvalidCredentials
	}

	access, err := s.tokens.GenerateAccessToken(account.ID, account.Email, string(account.Role))
	if err != nil {
		return nil, "", "", err
	}
	refresh, err := s.tokens.GenerateRefreshToken(account.ID, account.Email)
	if err != nil {
		return nil, "", "", err
	}
	return account, access, refresh, nil
}

func (s *authService) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, id)
}
