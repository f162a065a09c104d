package ledgerservice

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/storecredit/internal/domain"
)

type AccountRepo interface {
	GetAccount(ctx context.Context, userID int) (*domain.Account, error)
	CreateAccount(ctx context.Context, userID int) (*domain.Account, error)
	Credit(ctx context.Context, userID int, amount decimal.Decimal, at time.Time) (*domain.Account, error)
	Debit(ctx context.Context, userID int, amount decimal.Decimal, at time.Time) (*domain.Account, error)
}

type PendingRepo interface {
	SumPending(ctx context.Context, userID int) (decimal.Decimal, error)
}

// Service is the balance ledger. Balances change only through Credit and Debit.
type Service struct {
	accountRepo AccountRepo
	pendingRepo PendingRepo
	now         func() time.Time
}

func New(accountRepo AccountRepo, pendingRepo PendingRepo) *Service {
	return &Service{
		accountRepo: accountRepo,
		pendingRepo: pendingRepo,
		now:         time.Now,
	}
}

func (s *Service) GetBalance(ctx context.Context, userID int) (*domain.Account, error) {
	account, err := s.accountRepo.GetAccount(ctx, userID)
	if err != nil {
		zap.L().Error("failed to get balance", zap.Int("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrLedger, err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: account for user %d", domain.ErrNotFound, userID)
	}
	return account, nil
}

// GetSummary reports the balance together with the amount held by pending reservations.
func (s *Service) GetSummary(ctx context.Context, userID int) (*domain.BalanceSummary, error) {
	account, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	reserved, err := s.pendingRepo.SumPending(ctx, userID)
	if err != nil {
		zap.L().Error("failed to sum pending reservations", zap.Int("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrLedger, err)
	}
	available := account.Balance.Sub(reserved)
	if available.IsNegative() {
		available = decimal.Zero
	}
	return &domain.BalanceSummary{
		Current:   account.Balance,
		Withdrawn: account.WithdrawnTotal,
		Reserved:  reserved,
		Available: available,
	}, nil
}

func (s *Service) CreateAccount(ctx context.Context, userID int) (*domain.Account, error) {
	account, err := s.accountRepo.CreateAccount(ctx, userID)
	if err != nil {
		zap.L().Error("failed to create account", zap.Int("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrLedger, err)
	}
	return account, nil
}

// Credit tops the balance up.
func (s *Service) Credit(ctx context.Context, userID int, amount decimal.Decimal) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	account, err := s.accountRepo.Credit(ctx, userID, amount, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLedger, err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: account for user %d", domain.ErrNotFound, userID)
	}
	zap.L().Info("Balance credited", zap.Int("userID", userID), zap.String("amount", amount.StringFixed(2)))
	return account, nil
}

// Debit atomically subtracts amount if the balance covers it, otherwise returns domain.ErrInsufficientFunds.
// The balance is never clamped.
func (s *Service) Debit(ctx context.Context, userID int, amount decimal.Decimal) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	account, err := s.accountRepo.Debit(ctx, userID, amount, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLedger, err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: user %d, amount %s", domain.ErrInsufficientFunds, userID, amount.StringFixed(2))
	}
	return account, nil
}
