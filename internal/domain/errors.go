package domain

import "errors"

var (
	ErrValidation          = errors.New("validation error")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrIssuer              = errors.New("discount issuer error")
	ErrLedger              = errors.New("ledger error")
	// ErrLedgerInconsistency means a settlement debit would drive the balance negative.
	ErrLedgerInconsistency = errors.New("ledger inconsistency")
	// ErrInsufficientFunds is returned by the ledger when a conditional debit cannot apply.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidTransition = errors.New("invalid reservation transition")

	ErrLoginTaken         = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
