package httperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GlebRadaev/storecredit/internal/domain"
	"github.com/GlebRadaev/storecredit/pkg/utils"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: amount", domain.ErrValidation), http.StatusBadRequest},
		{domain.ErrUnauthenticated, http.StatusUnauthorized},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("%w: need 25", domain.ErrInsufficientBalance), http.StatusPaymentRequired},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrLoginTaken, http.StatusConflict},
		{fmt.Errorf("%w: timeout", domain.ErrIssuer), http.StatusBadGateway},
		{domain.ErrLedger, http.StatusBadGateway},
		{domain.ErrLedgerInconsistency, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, Status(tt.err))
		})
	}
}

func TestRespondHidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	Respond(w, errors.New("pq: connection refused"))

	var body utils.Response
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", body.Error)

	w = httptest.NewRecorder()
	Respond(w, fmt.Errorf("%w: cart token is required", domain.ErrValidation))
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation error: cart token is required", body.Error)
}
