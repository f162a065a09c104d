package dto

import "github.com/GlebRadaev/storecredit/internal/domain"

type BalanceResponseDTO struct {
	Current   string `json:"current" example:"50.00"`
	Withdrawn string `json:"withdrawn" example:"25.00"`
	Reserved  string `json:"reserved" example:"10.00"`
	Available string `json:"available" example:"40.00"`
}

func NewBalanceResponse(s *domain.BalanceSummary) BalanceResponseDTO {
	return BalanceResponseDTO{
		Current:   s.Current.StringFixed(domain.MoneyScale),
		Withdrawn: s.Withdrawn.StringFixed(domain.MoneyScale),
		Reserved:  s.Reserved.StringFixed(domain.MoneyScale),
		Available: s.Available.StringFixed(domain.MoneyScale),
	}
}
