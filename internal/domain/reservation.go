package domain

import (
	"fmt"
	"time"
)

type ReservationStatus string

const (
	// StatusPending сумма зарезервирована, скидка выпущена, оплата ещё не подтверждена;
	StatusPending ReservationStatus = "pending"
	// StatusCompleted оплата подтверждена, баланс списан;
	StatusCompleted ReservationStatus = "completed"
	// StatusCancelled резерв снят клиентом или по истечении срока, баланс не менялся;
	StatusCancelled ReservationStatus = "cancelled"
)

func (s ReservationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ValidateTransition allows only pending -> completed and pending -> cancelled.
func ValidateTransition(from, to ReservationStatus) error {
	if from != StatusPending {
		return fmt.Errorf("%w: reservation is already %s", ErrInvalidTransition, from)
	}
	if !to.IsTerminal() {
		return fmt.Errorf("%w: %s is not a terminal status", ErrInvalidTransition, to)
	}
	return nil
}

// Transition describes a single conditional pending -> terminal update.
// UserID == 0 means any owner.
type Transition struct {
	DiscountCode string
	UserID       int
	To           ReservationStatus
	At           time.Time
	OrderID      *string
	OrderNumber  *string
}

func (t Transition) Validate() error {
	if t.DiscountCode == "" {
		return fmt.Errorf("%w: discount code is required", ErrValidation)
	}
	return ValidateTransition(StatusPending, t.To)
}
