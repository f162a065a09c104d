package reservationservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/storecredit/internal/config"
	"github.com/GlebRadaev/storecredit/internal/domain"
	"github.com/GlebRadaev/storecredit/internal/metrics"
)

const (
	codeLength            = 12
	defaultReleaseTimeout = 10 * time.Second
)

type Ledger interface {
	GetBalance(ctx context.Context, userID int) (*domain.Account, error)
}

type Repo interface {
	Create(ctx context.Context, reservation *domain.Reservation) (*domain.Reservation, error)
	Transition(ctx context.Context, t domain.Transition) (*domain.Reservation, error)
	SumPending(ctx context.Context, userID int) (decimal.Decimal, error)
	ListByUserID(ctx context.Context, userID int) ([]domain.Reservation, error)
}

type Issuer interface {
	CreateInstrument(ctx context.Context, amount decimal.Decimal, constraints domain.InstrumentConstraints) (*domain.Instrument, error)
	DeleteInstrument(ctx context.Context, instrumentID string) error
}

type Service struct {
	ledger         Ledger
	repo           Repo
	issuer         Issuer
	metrics        *metrics.Metrics
	prefix         string
	ttl            time.Duration
	releaseTimeout time.Duration
	now            func() time.Time
	newCode        func() string
}

func New(cfg *config.Config, ledger Ledger, repo Repo, issuer Issuer, m *metrics.Metrics) *Service {
	releaseTimeout := cfg.IssuerTimeout
	if releaseTimeout <= 0 {
		releaseTimeout = defaultReleaseTimeout
	}
	s := &Service{
		ledger:         ledger,
		repo:           repo,
		issuer:         issuer,
		metrics:        m,
		prefix:         strings.ToUpper(cfg.DiscountCodePrefix),
		ttl:            cfg.ReservationTTL,
		releaseTimeout: releaseTimeout,
		now:            time.Now,
	}
	s.newCode = s.generateCode
	return s
}

// Reserve issues a one-time discount worth amount and records it as a pending reservation.
// The balance itself is debited only when the order is paid.
func (s *Service) Reserve(ctx context.Context, userID int, amount decimal.Decimal, cartToken string) (*domain.Reservation, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		s.metrics.IncReservation("invalid")
		return nil, err
	}
	cartToken = strings.TrimSpace(cartToken)
	if cartToken == "" {
		s.metrics.IncReservation("invalid")
		return nil, fmt.Errorf("%w: cart token is required", domain.ErrValidation)
	}

	account, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		s.metrics.IncReservation("ledger_error")
		return nil, err
	}
	held, err := s.repo.SumPending(ctx, userID)
	if err != nil {
		s.metrics.IncReservation("ledger_error")
		return nil, fmt.Errorf("%w: %w", domain.ErrLedger, err)
	}
	available := account.Balance.Sub(held)
	if amount.GreaterThan(available) {
		zap.L().Info("Reservation exceeds available balance",
			zap.Int("userID", userID),
			zap.String("amount", amount.StringFixed(2)),
			zap.String("available", available.StringFixed(2)),
		)
		s.metrics.IncReservation("insufficient_balance")
		return nil, fmt.Errorf("%w: requested %s, available %s", domain.ErrInsufficientBalance, amount.StringFixed(2), available.StringFixed(2))
	}

	now := s.now()
	code := s.newCode()
	instrument, err := s.issuer.CreateInstrument(ctx, amount, domain.InstrumentConstraints{
		Code:            code,
		CartToken:       cartToken,
		UsageLimit:      1,
		OncePerCustomer: true,
		StartsAt:        now,
		EndsAt:          now.Add(s.ttl),
	})
	if err != nil {
		zap.L().Error("Failed to issue discount", zap.Int("userID", userID), zap.Error(err))
		s.metrics.IncReservation("issuer_error")
		if !errors.Is(err, domain.ErrIssuer) {
			err = fmt.Errorf("%w: %w", domain.ErrIssuer, err)
		}
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		s.releaseInstrument(ctx, instrument.ID)
		s.metrics.IncReservation("aborted")
		return nil, err
	}

	reservation, err := s.repo.Create(ctx, &domain.Reservation{
		ID:           uuid.New(),
		UserID:       userID,
		Amount:       amount.Round(domain.MoneyScale),
		DiscountCode: instrument.Code,
		InstrumentID: instrument.ID,
		CartToken:    cartToken,
		Status:       domain.StatusPending,
		CreatedAt:    now,
	})
	if err != nil {
		s.releaseInstrument(ctx, instrument.ID)
		s.metrics.IncReservation("storage_error")
		return nil, fmt.Errorf("save reservation: %w", err)
	}

	zap.L().Info("Reservation created",
		zap.Int("userID", userID),
		zap.String("code", reservation.DiscountCode),
		zap.String("amount", reservation.Amount.StringFixed(2)),
	)
	s.metrics.IncReservation("created")
	return reservation, nil
}

// Cancel releases the caller's pending reservation. No balance changes because nothing was debited.
func (s *Service) Cancel(ctx context.Context, userID int, code string) (*domain.Reservation, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: discount code is required", domain.ErrValidation)
	}

	reservation, err := s.repo.Transition(ctx, domain.Transition{
		DiscountCode: code,
		UserID:       userID,
		To:           domain.StatusCancelled,
		At:           s.now(),
	})
	if err != nil {
		s.metrics.IncCancellation("error")
		return nil, err
	}
	if reservation == nil {
		s.metrics.IncCancellation("not_found")
		return nil, fmt.Errorf("%w: no pending reservation %s", domain.ErrNotFound, code)
	}

	s.releaseInstrument(ctx, reservation.InstrumentID)
	zap.L().Info("Reservation cancelled", zap.Int("userID", userID), zap.String("code", code))
	s.metrics.IncCancellation("cancelled")
	return reservation, nil
}

func (s *Service) GetReservations(ctx context.Context, userID int) ([]domain.Reservation, error) {
	reservations, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		zap.L().Error("failed to get reservations", zap.Int("userID", userID), zap.Error(err))
		return nil, err
	}
	return reservations, nil
}

// releaseInstrument deletes the issuer-side discount once, detached from the caller's cancellation.
func (s *Service) releaseInstrument(ctx context.Context, instrumentID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.releaseTimeout)
	defer cancel()

	if err := s.issuer.DeleteInstrument(ctx, instrumentID); err != nil {
		zap.L().Warn("Failed to delete discount instrument", zap.String("instrumentID", instrumentID), zap.Error(err))
	}
}

func (s *Service) generateCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return s.prefix + strings.ToUpper(raw[:codeLength])
}
