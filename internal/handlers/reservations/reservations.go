package reservations

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/storecredit/internal/domain"
	"github.com/GlebRadaev/storecredit/internal/dto"
	"github.com/GlebRadaev/storecredit/internal/handlers/httperr"
	"github.com/GlebRadaev/storecredit/pkg/auth"
	"github.com/GlebRadaev/storecredit/pkg/utils"
	"github.com/GlebRadaev/storecredit/pkg/validate"
)

type Service interface {
	Reserve(ctx context.Context, userID int, amount decimal.Decimal, cartToken string) (*domain.Reservation, error)
	Cancel(ctx context.Context, userID int, code string) (*domain.Reservation, error)
	GetReservations(ctx context.Context, userID int) ([]domain.Reservation, error)
}

type ReservationsHandler struct {
	reservationService Service
}

func New(reservationService Service) *ReservationsHandler {
	return &ReservationsHandler{
		reservationService: reservationService,
	}
}

// Reserve godoc
//
//	@Summary		Reserve store credit for a cart
//	@Description	Issue a one-time discount code worth the requested amount. The balance is charged only after the order is paid.
//	@Tags			Reservations
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.ReserveRequestDTO		true	"Reservation request"
//	@Success		201		{object}	dto.ReservationResponseDTO	"Reservation created"
//	@Failure		400		{object}	utils.Response				"Invalid amount or cart token"
//	@Failure		401		{object}	utils.Response				"User not authorized"
//	@Failure		402		{object}	utils.Response				"Insufficient balance"
//	@Failure		502		{object}	utils.Response				"Discount issuer unavailable"
//	@Failure		500		{object}	utils.Response				"Internal server error"
//	@Router			/api/user/reservations [post]
func (h *ReservationsHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(int)

	var req dto.ReserveRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	reservation, err := h.reservationService.Reserve(r.Context(), userID, req.Amount, req.CartToken)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dto.NewReservationResponse(reservation))
}

// GetReservations godoc
//
//	@Summary		List reservations
//	@Description	List the authenticated user's reservations, newest first.
//	@Tags			Reservations
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		dto.ReservationResponseDTO	"Reservations"
//	@Success		204	{object}	utils.Response				"No reservations"
//	@Failure		401	{object}	utils.Response				"User not authorized"
//	@Failure		500	{object}	utils.Response				"Internal server error"
//	@Router			/api/user/reservations [get]
func (h *ReservationsHandler) GetReservations(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(int)

	reservations, err := h.reservationService.GetReservations(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch reservations")
		return
	}
	if len(reservations) == 0 {
		utils.RespondWithError(w, http.StatusNoContent, "Reservations not found")
		return
	}

	response := make([]dto.ReservationResponseDTO, len(reservations))
	for i := range reservations {
		response[i] = dto.NewReservationResponse(&reservations[i])
	}
	utils.RespondWithJSON(w, http.StatusOK, response)
}

// Cancel godoc
//
//	@Summary		Cancel a pending reservation
//	@Description	Cancel the caller's pending reservation and revoke its discount code. The balance is left untouched.
//	@Tags			Reservations
//	@Security		BearerAuth
//	@Produce		json
//	@Param			code	path		string					true	"Discount code"
//	@Success		200		{object}	dto.CancelResponseDTO	"Reservation cancelled"
//	@Failure		400		{object}	utils.Response			"Missing code"
//	@Failure		401		{object}	utils.Response			"User not authorized"
//	@Failure		404		{object}	utils.Response			"No pending reservation with this code"
//	@Failure		500		{object}	utils.Response			"Internal server error"
//	@Router			/api/user/reservations/{code} [delete]
func (h *ReservationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(int)

	reservation, err := h.reservationService.Cancel(r.Context(), userID, chi.URLParam(r, "code"))
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.CancelResponseDTO{
		Reservation:    dto.NewReservationResponse(reservation),
		RestoredAmount: decimal.Zero.StringFixed(domain.MoneyScale),
	})
}
