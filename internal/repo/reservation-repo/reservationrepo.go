package reservationrepo

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

const columns = `id, user_id, amount, discount_code, instrument_id, cart_token, status, created_at, resolved_at, order_id, order_number`

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Create(ctx context.Context, reservation *domain.Reservation) (*domain.Reservation, error) {
	query := `
		INSERT INTO reservations (id, user_id, amount, discount_code, instrument_id, cart_token, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		reservation.ID,
		reservation.UserID,
		reservation.Amount,
		reservation.DiscountCode,
		reservation.InstrumentID,
		reservation.CartToken,
		reservation.Status,
		reservation.CreatedAt,
	)
	if err != nil {
		zap.L().Error("can't save reservation", zap.String("code", reservation.DiscountCode), zap.Error(err))
		return nil, err
	}
	return reservation, nil
}

// Transition moves a pending reservation to a terminal status.
// It returns nil when no pending reservation matched, so the caller lost the race or the code is unknown.
func (r *Repository) Transition(ctx context.Context, t domain.Transition) (*domain.Reservation, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	query := `
		UPDATE reservations
		SET status = $1, resolved_at = $2, order_id = $3, order_number = $4
		WHERE discount_code = $5 AND status = 'pending' AND ($6 = 0 OR user_id = $6)
		RETURNING ` + columns
	reservation, err := scanReservation(r.db.QueryRow(ctx, query, t.To, t.At, t.OrderID, t.OrderNumber, t.DiscountCode, t.UserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("failed to transition reservation", zap.String("code", t.DiscountCode), zap.String("to", string(t.To)), zap.Error(err))
		return nil, err
	}
	return reservation, nil
}

// CancelExpired cancels every pending reservation created before cutoff and returns them.
func (r *Repository) CancelExpired(ctx context.Context, cutoff, at time.Time) ([]domain.Reservation, error) {
	query := `
		UPDATE reservations
		SET status = 'cancelled', resolved_at = $1
		WHERE status = 'pending' AND created_at < $2
		RETURNING ` + columns
	return r.list(ctx, "cancel expired reservations", query, at, cutoff)
}

func (r *Repository) SumPending(ctx context.Context, userID int) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM reservations
		WHERE user_id = $1 AND status = 'pending'
	`
	var sum decimal.Decimal
	if err := r.db.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		zap.L().Error("failed to sum pending reservations", zap.Int("userID", userID), zap.Error(err))
		return decimal.Zero, err
	}
	return sum, nil
}

func (r *Repository) ListByUserID(ctx context.Context, userID int) ([]domain.Reservation, error) {
	query := `
		SELECT ` + columns + `
		FROM reservations
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, "fetch reservations", query, userID)
}

func (r *Repository) FindByCode(ctx context.Context, code string) (*domain.Reservation, error) {
	query := `
		SELECT ` + columns + `
		FROM reservations
		WHERE discount_code = $1
	`
	reservation, err := scanReservation(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("failed to find reservation", zap.String("code", code), zap.Error(err))
		return nil, err
	}
	return reservation, nil
}

func (r *Repository) list(ctx context.Context, op, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		zap.L().Error("failed to "+op, zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			zap.L().Error("failed to scan reservation row", zap.Error(err))
			return nil, err
		}
		reservations = append(reservations, *reservation)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("failed to "+op, zap.Error(err))
		return nil, err
	}
	return reservations, nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.Amount,
		&res.DiscountCode,
		&res.InstrumentID,
		&res.CartToken,
		&res.Status,
		&res.CreatedAt,
		&res.ResolvedAt,
		&res.OrderID,
		&res.OrderNumber,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
