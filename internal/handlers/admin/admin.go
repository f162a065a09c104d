package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/storecredit/internal/domain"
	"github.com/GlebRadaev/storecredit/internal/dto"
	"github.com/GlebRadaev/storecredit/internal/handlers/httperr"
	"github.com/GlebRadaev/storecredit/pkg/utils"
)

type Ledger interface {
	Credit(ctx context.Context, userID int, amount decimal.Decimal) (*domain.Account, error)
}

type Sweeper interface {
	SweepExpired(ctx context.Context, maxAge time.Duration) (int, error)
}

type AdminHandler struct {
	ledger        Ledger
	sweeper       Sweeper
	defaultMaxAge time.Duration
}

func New(ledger Ledger, sweeper Sweeper, defaultMaxAge time.Duration) *AdminHandler {
	return &AdminHandler{
		ledger:        ledger,
		sweeper:       sweeper,
		defaultMaxAge: defaultMaxAge,
	}
}

// Credit godoc
//
//	@Summary		Credit an account
//	@Description	Add store credit to a user's balance, e.g. after a refund or a promotion.
//	@Tags			Admin
//	@Security		AdminToken
//	@Accept			json
//	@Produce		json
//	@Param			userID	path		int						true	"User ID"
//	@Param			request	body		dto.CreditRequestDTO	true	"Credit amount"
//	@Success		200		{object}	dto.CreditResponseDTO	"Updated balance"
//	@Failure		400		{object}	utils.Response			"Invalid user ID or amount"
//	@Failure		401		{object}	utils.Response			"Invalid admin token"
//	@Failure		404		{object}	utils.Response			"Account not found"
//	@Failure		500		{object}	utils.Response			"Internal server error"
//	@Router			/api/admin/accounts/{userID}/credit [post]
func (h *AdminHandler) Credit(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil || userID <= 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req dto.CreditRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.ledger.Credit(r.Context(), userID, req.Amount)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.CreditResponseDTO{
		UserID:  account.UserID,
		Balance: account.Balance.StringFixed(domain.MoneyScale),
	})
}

// Sweep godoc
//
//	@Summary		Cancel expired reservations
//	@Description	Cancel every pending reservation older than max_age and revoke its discount code.
//	@Tags			Admin
//	@Security		AdminToken
//	@Produce		json
//	@Param			max_age	query		string					false	"Go duration, defaults to the reservation TTL"
//	@Success		200		{object}	dto.SweepResponseDTO	"Cancelled reservations"
//	@Failure		400		{object}	utils.Response			"Invalid max_age"
//	@Failure		401		{object}	utils.Response			"Invalid admin token"
//	@Failure		500		{object}	utils.Response			"Internal server error"
//	@Router			/api/admin/sweep [post]
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	maxAge := h.defaultMaxAge
	if raw := r.URL.Query().Get("max_age"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid max_age")
			return
		}
		maxAge = d
	}

	cancelled, err := h.sweeper.SweepExpired(r.Context(), maxAge)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.SweepResponseDTO{
		Cancelled: cancelled,
		MaxAge:    maxAge.String(),
	})
}
