package settlementservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/storecredit/internal/config"
	"github.com/GlebRadaev/storecredit/internal/domain"
	"github.com/GlebRadaev/storecredit/internal/metrics"
	"github.com/GlebRadaev/storecredit/internal/pg"
	"github.com/GlebRadaev/storecredit/pkg/signature"
)

type Repo interface {
	Transition(ctx context.Context, t domain.Transition) (*domain.Reservation, error)
	FindByCode(ctx context.Context, code string) (*domain.Reservation, error)
}

type Ledger interface {
	Debit(ctx context.Context, userID int, amount decimal.Decimal) (*domain.Account, error)
}

type Service struct {
	repo      Repo
	ledger    Ledger
	txManager pg.TXManager
	metrics   *metrics.Metrics
	secret    string
	prefix    string
	now       func() time.Time
}

func New(cfg *config.Config, repo Repo, ledger Ledger, txManager pg.TXManager, m *metrics.Metrics) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledger,
		txManager: txManager,
		metrics:   m,
		secret:    cfg.WebhookSecret,
		prefix:    strings.ToUpper(cfg.DiscountCodePrefix),
		now:       time.Now,
	}
}

// Settle verifies and applies a paid-order event. Every reservation code found in the event is
// completed and debited in its own transaction; repeated deliveries report already_processed.
func (s *Service) Settle(ctx context.Context, payload []byte, sig string) (*domain.SettlementResult, error) {
	if !signature.Verify(payload, s.secret, sig) {
		zap.L().Warn("Rejected order webhook with invalid signature")
		s.metrics.IncSettlement("unauthenticated")
		return nil, domain.ErrUnauthenticated
	}

	var event domain.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.metrics.IncSettlement("invalid")
		return nil, fmt.Errorf("%w: decode order event: %w", domain.ErrValidation, err)
	}

	result := &domain.SettlementResult{OrderID: string(event.ID)}
	codes := event.ReservationCodes(s.prefix)
	if len(codes) == 0 {
		result.Outcome = domain.OutcomeNoReservationInvolved
		s.metrics.IncSettlement(string(result.Outcome))
		return result, nil
	}

	for _, code := range codes {
		settled, err := s.settleCode(ctx, &event, code)
		if err != nil {
			return nil, err
		}
		result.Codes = append(result.Codes, settled)
	}
	result.Outcome = result.Aggregate()

	zap.L().Info("Order event processed",
		zap.String("orderID", result.OrderID),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("codes", len(result.Codes)),
	)
	return result, nil
}

func (s *Service) settleCode(ctx context.Context, event *domain.OrderEvent, code string) (domain.SettledCode, error) {
	settled := domain.SettledCode{DiscountCode: code, Outcome: domain.OutcomeAlreadyProcessed}

	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		reservation, err := s.repo.Transition(ctx, domain.Transition{
			DiscountCode: code,
			To:           domain.StatusCompleted,
			At:           s.now(),
			OrderID:      optional(string(event.ID)),
			OrderNumber:  optional(orderNumber(event)),
		})
		if err != nil {
			return err
		}
		if reservation == nil {
			return nil
		}

		if _, err := s.ledger.Debit(ctx, reservation.UserID, reservation.Amount); err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				zap.L().Error("Settlement debit rejected, reservation left pending",
					zap.String("code", code),
					zap.Int("userID", reservation.UserID),
					zap.String("amount", reservation.Amount.StringFixed(2)),
					zap.String("orderID", string(event.ID)),
				)
				s.metrics.IncLedgerInconsistency()
				return fmt.Errorf("%w: code %s: %w", domain.ErrLedgerInconsistency, code, err)
			}
			return err
		}

		settled.Outcome = domain.OutcomeSettled
		settled.Reservation = reservation
		return nil
	})
	if err != nil {
		s.metrics.IncSettlement("error")
		return domain.SettledCode{}, err
	}

	if settled.Outcome == domain.OutcomeAlreadyProcessed {
		settled.Reservation = s.inspectResolved(ctx, event, code)
	}
	s.metrics.IncSettlement(string(settled.Outcome))
	return settled, nil
}

// inspectResolved looks up a code that had no pending reservation and warns when
// the paid order consumed a discount that was never charged to any balance.
func (s *Service) inspectResolved(ctx context.Context, event *domain.OrderEvent, code string) *domain.Reservation {
	reservation, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		zap.L().Warn("Failed to look up resolved reservation", zap.String("code", code), zap.Error(err))
		return nil
	}

	switch {
	case reservation == nil:
		zap.L().Warn("Paid order used an unknown reservation code",
			zap.String("code", code),
			zap.String("orderID", string(event.ID)),
		)
	case reservation.Status == domain.StatusCancelled:
		zap.L().Warn("Paid order used a cancelled reservation code, balance not debited",
			zap.String("code", code),
			zap.Int("userID", reservation.UserID),
			zap.String("amount", reservation.Amount.StringFixed(2)),
			zap.String("orderID", string(event.ID)),
		)
	case reservation.OrderID != nil && *reservation.OrderID != string(event.ID):
		zap.L().Warn("Reservation code already settled by another order",
			zap.String("code", code),
			zap.String("settledOrderID", *reservation.OrderID),
			zap.String("orderID", string(event.ID)),
		)
	}
	return reservation
}

func orderNumber(event *domain.OrderEvent) string {
	if event.OrderNumber != "" {
		return string(event.OrderNumber)
	}
	return event.Name
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
