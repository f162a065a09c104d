package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/GlebRadaev/storecredit/internal/domain"
	"github.com/GlebRadaev/storecredit/internal/dto"
	"github.com/GlebRadaev/storecredit/pkg/utils"
)

const (
	SignatureHeader = "X-Hmac-Sha256"
	maxBodySize     = 1 << 20
)

type Service interface {
	Settle(ctx context.Context, payload []byte, sig string) (*domain.SettlementResult, error)
}

type WebhooksHandler struct {
	settlementService Service
}

func New(settlementService Service) *WebhooksHandler {
	return &WebhooksHandler{
		settlementService: settlementService,
	}
}

// OrderPaid godoc
//
//	@Summary		Order payment notification
//	@Description	Storefront webhook for paid orders. Completes every reservation whose discount code was applied and debits its amount. Redeliveries are acknowledged without a second debit.
//	@Tags			Webhooks
//	@Accept			json
//	@Produce		json
//	@Param			X-Hmac-Sha256	header		string						true	"Base64 HMAC-SHA256 of the raw body"
//	@Success		200				{object}	dto.SettlementResponseDTO	"Event processed"
//	@Failure		400				{object}	utils.Response				"Malformed payload"
//	@Failure		401				{object}	utils.Response				"Invalid signature"
//	@Failure		500				{object}	utils.Response				"Settlement failed, retry later"
//	@Router			/api/webhooks/orders/paid [post]
func (h *WebhooksHandler) OrderPaid(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.settlementService.Settle(r.Context(), payload, r.Header.Get(SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthenticated):
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid signature")
		case errors.Is(err, domain.ErrValidation):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			zap.L().Error("Order webhook failed", zap.Error(err))
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewSettlementResponse(result))
}
