package dto

import "github.com/GlebRadaev/storecredit/internal/domain"

type SettledCodeDTO struct {
	Code    string `json:"code" example:"CREDIT-9F2A61C0D4B7"`
	Outcome string `json:"outcome" example:"settled"`
}

type SettlementResponseDTO struct {
	Outcome string           `json:"outcome" example:"settled"`
	OrderID string           `json:"order_id,omitempty" example:"820982911946154508"`
	Codes   []SettledCodeDTO `json:"codes,omitempty"`
}

func NewSettlementResponse(r *domain.SettlementResult) SettlementResponseDTO {
	resp := SettlementResponseDTO{
		Outcome: string(r.Outcome),
		OrderID: r.OrderID,
	}
	for _, c := range r.Codes {
		resp.Codes = append(resp.Codes, SettledCodeDTO{Code: c.DiscountCode, Outcome: string(c.Outcome)})
	}
	return resp
}
