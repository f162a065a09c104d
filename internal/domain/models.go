package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID           int       `db:"id"`
	Login        string    `db:"login"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// Account is the ledger side of a user. Balance never goes below zero.
type Account struct {
	UserID         int             `db:"user_id"`
	Balance        decimal.Decimal `db:"balance"`
	WithdrawnTotal decimal.Decimal `db:"withdrawn_total"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

type BalanceSummary struct {
	Current   decimal.Decimal
	Withdrawn decimal.Decimal
	Reserved  decimal.Decimal
	Available decimal.Decimal
}

type Reservation struct {
	ID           uuid.UUID         `db:"id"`
	UserID       int               `db:"user_id"`
	Amount       decimal.Decimal   `db:"amount"`
	DiscountCode string            `db:"discount_code"`
	InstrumentID string            `db:"instrument_id"`
	CartToken    string            `db:"cart_token"`
	Status       ReservationStatus `db:"status"`
	CreatedAt    time.Time         `db:"created_at"`
	ResolvedAt   *time.Time        `db:"resolved_at"`
	OrderID      *string           `db:"order_id"`
	OrderNumber  *string           `db:"order_number"`
}

// Instrument is the issuer-side discount backing a reservation.
type Instrument struct {
	ID   string
	Code string
}

type InstrumentConstraints struct {
	Code            string
	CartToken       string
	UsageLimit      int
	OncePerCustomer bool
	StartsAt        time.Time
	EndsAt          time.Time
}
