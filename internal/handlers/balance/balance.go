package balance

import (
	"context"
	"net/http"

	"github.com/GlebRadaev/storecredit/internal/domain"
	"github.com/GlebRadaev/storecredit/internal/dto"
	"github.com/GlebRadaev/storecredit/internal/handlers/httperr"
	"github.com/GlebRadaev/storecredit/pkg/auth"
	"github.com/GlebRadaev/storecredit/pkg/utils"
)

type Service interface {
	CreateAccount(ctx context.Context, userID int) (*domain.Account, error)
	GetSummary(ctx context.Context, userID int) (*domain.BalanceSummary, error)
}

type BalanceHandler struct {
	balanceService Service
}

func New(balanceService Service) *BalanceHandler {
	return &BalanceHandler{
		balanceService: balanceService,
	}
}

// GetBalance godoc
//
//	@Summary		Get current user balance
//	@Description	Retrieve the store-credit balance, the total spent, the amount held by pending reservations and what is still available to reserve.
//	@Tags			Balance
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	dto.BalanceResponseDTO	"Current balance"
//	@Failure		401	{object}	utils.Response			"User not authorized"
//	@Failure		404	{object}	utils.Response			"Account not found"
//	@Failure		500	{object}	utils.Response			"Internal server error"
//	@Router			/api/user/balance [get]
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(int)

	summary, err := h.balanceService.GetSummary(r.Context(), userID)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewBalanceResponse(summary))
}
