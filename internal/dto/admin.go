package dto

import "github.com/shopspring/decimal"

type CreditRequestDTO struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"50.00"`
}

type CreditResponseDTO struct {
	UserID  int    `json:"user_id" example:"1"`
	Balance string `json:"balance" example:"50.00"`
}

type SweepResponseDTO struct {
	Cancelled int    `json:"cancelled" example:"3"`
	MaxAge    string `json:"max_age" example:"24h0m0s"`
}
