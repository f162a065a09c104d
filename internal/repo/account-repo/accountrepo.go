package accountrepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/storecredit/internal/domain"
	"github.com/GlebRadaev/storecredit/internal/pg"
)

type Repository struct {
	db        pg.Database
	txManager pg.TXManager
}

func New(db pg.Database, txManager pg.TXManager) *Repository {
	return &Repository{
		db:        db,
		txManager: txManager,
	}
}

func (r *Repository) GetAccount(ctx context.Context, userID int) (*domain.Account, error) {
	query := `
        SELECT user_id, balance, withdrawn_total, updated_at
        FROM accounts
        WHERE user_id = $1
    `
	account, err := scanAccount(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("failed to get account", zap.Int("userID", userID), zap.Error(err))
		return nil, err
	}
	return account, nil
}

func (r *Repository) CreateAccount(ctx context.Context, userID int) (*domain.Account, error) {
	query := `
        INSERT INTO accounts (user_id, balance, withdrawn_total)
        VALUES ($1, 0, 0)
        RETURNING user_id, balance, withdrawn_total, updated_at
    `
	account, err := scanAccount(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		zap.L().Error("failed to create account", zap.Int("userID", userID), zap.Error(err))
		return nil, err
	}
	return account, nil
}

// Credit adds amount to the balance. Returns nil when the account does not exist.
func (r *Repository) Credit(ctx context.Context, userID int, amount decimal.Decimal, at time.Time) (*domain.Account, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = $2
		WHERE user_id = $3
		RETURNING user_id, balance, withdrawn_total, updated_at
	`
	return r.update(ctx, "credit", query, amount, at, userID)
}

// Debit subtracts amount only while the balance covers it. Returns nil when nothing was debited.
func (r *Repository) Debit(ctx context.Context, userID int, amount decimal.Decimal, at time.Time) (*domain.Account, error) {
	query := `
		UPDATE accounts
		SET balance = balance - $1, withdrawn_total = withdrawn_total + $1, updated_at = $2
		WHERE user_id = $3 AND balance >= $1
		RETURNING user_id, balance, withdrawn_total, updated_at
	`
	return r.update(ctx, "debit", query, amount, at, userID)
}

func (r *Repository) update(ctx context.Context, op, query string, amount decimal.Decimal, at time.Time, userID int) (*domain.Account, error) {
	var account *domain.Account
	err := r.txManager.Begin(ctx, func(ctx context.Context) error {
		var err error
		account, err = scanAccount(r.db.QueryRow(ctx, query, amount, at, userID))
		if errors.Is(err, pgx.ErrNoRows) {
			account = nil
			return nil
		}
		if err != nil {
			zap.L().Error("failed to update account", zap.String("op", op), zap.Int("userID", userID), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	if err := row.Scan(&account.UserID, &account.Balance, &account.WithdrawnTotal, &account.UpdatedAt); err != nil {
		return nil, err
	}
	return &account, nil
}
