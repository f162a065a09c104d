package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

type SettlementOutcome string

const (
	OutcomeSettled               SettlementOutcome = "settled"
	OutcomeAlreadyProcessed      SettlementOutcome = "already_processed"
	OutcomeNoReservationInvolved SettlementOutcome = "no_reservation_involved"
)

// ExternalID accepts both JSON numbers and strings.
type ExternalID string

func (id *ExternalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExternalID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ExternalID(n.String())
	return nil
}

type AppliedDiscountCode struct {
	Code   string `json:"code"`
	Amount string `json:"amount"`
	Type   string `json:"type"`
}

// OrderEvent is the payment confirmation delivered by the storefront webhook.
type OrderEvent struct {
	ID              ExternalID            `json:"id"`
	OrderNumber     ExternalID            `json:"order_number"`
	Name            string                `json:"name"`
	FinancialStatus string                `json:"financial_status"`
	DiscountCodes   []AppliedDiscountCode `json:"discount_codes"`
}

// ReservationCodes returns the distinct applied codes carrying the reservation prefix.
func (e *OrderEvent) ReservationCodes(prefix string) []string {
	prefix = strings.ToUpper(prefix)
	seen := make(map[string]struct{}, len(e.DiscountCodes))
	var codes []string
	for _, dc := range e.DiscountCodes {
		code := NormalizeCode(dc.Code)
		if code == "" || !strings.HasPrefix(code, prefix) {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type SettledCode struct {
	DiscountCode string
	Outcome      SettlementOutcome
	Reservation  *Reservation
}

type SettlementResult struct {
	Outcome SettlementOutcome
	OrderID string
	Codes   []SettledCode
}

// Aggregate derives the overall outcome from the per-code outcomes.
func (r *SettlementResult) Aggregate() SettlementOutcome {
	if len(r.Codes) == 0 {
		return OutcomeNoReservationInvolved
	}
	outcome := OutcomeAlreadyProcessed
	for _, c := range r.Codes {
		if c.Outcome == OutcomeSettled {
			outcome = OutcomeSettled
			break
		}
	}
	return outcome
}
