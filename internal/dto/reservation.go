package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/storecredit/internal/domain"
)

type ReserveRequestDTO struct {
	Amount    decimal.Decimal `json:"amount" swaggertype:"string" example:"25.00"`
	CartToken string          `json:"cart_token" validate:"required,max=255" example:"c1-7f9a2e"`
}

type ReservationResponseDTO struct {
	ID           string     `json:"id" example:"5b0c9f3e-7d55-4a53-9d0f-0b7f7c4c7a11"`
	DiscountCode string     `json:"discount_code" example:"CREDIT-9F2A61C0D4B7"`
	InstrumentID string     `json:"instrument_id" example:"1089765400"`
	Amount       string     `json:"amount" example:"25.00"`
	Status       string     `json:"status" example:"pending"`
	CreatedAt    time.Time  `json:"created_at" example:"2026-06-01T09:30:00Z"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	OrderNumber  *string    `json:"order_number,omitempty" example:"1001"`
}

type CancelResponseDTO struct {
	Reservation ReservationResponseDTO `json:"reservation"`
	// RestoredAmount is informational: the balance was never debited for a pending reservation.
	RestoredAmount string `json:"restored_amount" example:"0.00"`
}

func NewReservationResponse(r *domain.Reservation) ReservationResponseDTO {
	return ReservationResponseDTO{
		ID:           r.ID.String(),
		DiscountCode: r.DiscountCode,
		InstrumentID: r.InstrumentID,
		Amount:       r.Amount.StringFixed(domain.MoneyScale),
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt,
		ResolvedAt:   r.ResolvedAt,
		OrderNumber:  r.OrderNumber,
	}
}
