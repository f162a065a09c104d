package webhooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/storecredit/internal/domain"
	"github.com/GlebRadaev/storecredit/internal/dto"
	"github.com/GlebRadaev/storecredit/pkg/utils"
)

func NewMock(t *testing.T) (*WebhooksHandler, *MockService) {
	ctrl := gomock.NewController(t)
	service := NewMockService(ctrl)
	handler := New(service)
	return handler, service
}

func TestOrderPaidHandler(t *testing.T) {
	handler, service := NewMock(t)
	body := `{"id":820982911946154508,"order_number":1001,"discount_codes":[{"code":"CREDIT-AAA"}]}`

	tests := []struct {
		name          string
		sig           string
		prepareMock   func()
		expectedCode  int
		expectedError string
		expectedBody  *dto.SettlementResponseDTO
	}{
		{
			name: "Settled",
			sig:  "c2lnbmF0dXJl",
			prepareMock: func() {
				service.EXPECT().Settle(gomock.Any(), []byte(body), "c2lnbmF0dXJl").Return(&domain.SettlementResult{
					Outcome: domain.OutcomeSettled,
					OrderID: "820982911946154508",
					Codes:   []domain.SettledCode{{DiscountCode: "CREDIT-AAA", Outcome: domain.OutcomeSettled}},
				}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: &dto.SettlementResponseDTO{
				Outcome: "settled",
				OrderID: "820982911946154508",
				Codes:   []dto.SettledCodeDTO{{Code: "CREDIT-AAA", Outcome: "settled"}},
			},
		},
		{
			name: "Redelivery",
			sig:  "c2lnbmF0dXJl",
			prepareMock: func() {
				service.EXPECT().Settle(gomock.Any(), []byte(body), "c2lnbmF0dXJl").Return(&domain.SettlementResult{
					Outcome: domain.OutcomeAlreadyProcessed,
					OrderID: "820982911946154508",
					Codes:   []domain.SettledCode{{DiscountCode: "CREDIT-AAA", Outcome: domain.OutcomeAlreadyProcessed}},
				}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: &dto.SettlementResponseDTO{
				Outcome: "already_processed",
				OrderID: "820982911946154508",
				Codes:   []dto.SettledCodeDTO{{Code: "CREDIT-AAA", Outcome: "already_processed"}},
			},
		},
		{
			name: "Invalid signature",
			sig:  "bad",
			prepareMock: func() {
				service.EXPECT().Settle(gomock.Any(), []byte(body), "bad").Return(nil, domain.ErrUnauthenticated)
			},
			expectedCode:  http.StatusUnauthorized,
			expectedError: "Invalid signature",
		},
		{
			name: "Malformed payload",
			sig:  "c2lnbmF0dXJl",
			prepareMock: func() {
				service.EXPECT().Settle(gomock.Any(), []byte(body), "c2lnbmF0dXJl").
					Return(nil, fmt.Errorf("%w: decode order event", domain.ErrValidation))
			},
			expectedCode:  http.StatusBadRequest,
			expectedError: "validation error: decode order event",
		},
		{
			name: "Ledger inconsistency",
			sig:  "c2lnbmF0dXJl",
			prepareMock: func() {
				service.EXPECT().Settle(gomock.Any(), []byte(body), "c2lnbmF0dXJl").
					Return(nil, fmt.Errorf("%w: code CREDIT-AAA", domain.ErrLedgerInconsistency))
			},
			expectedCode:  http.StatusInternalServerError,
			expectedError: "Internal server error",
		},
		{
			name: "Storage failure",
			sig:  "c2lnbmF0dXJl",
			prepareMock: func() {
				service.EXPECT().Settle(gomock.Any(), []byte(body), "c2lnbmF0dXJl").Return(nil, errors.New("db down"))
			},
			expectedCode:  http.StatusInternalServerError,
			expectedError: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			r := httptest.NewRequest(http.MethodPost, "/api/webhooks/orders/paid", bytes.NewBufferString(body))
			r.Header.Set(SignatureHeader, tt.sig)
			w := httptest.NewRecorder()

			handler.OrderPaid(w, r)

			assert.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedBody != nil {
				var got dto.SettlementResponseDTO
				require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
				assert.Equal(t, *tt.expectedBody, got)
				return
			}
			var resp utils.Response
			_ = json.NewDecoder(w.Body).Decode(&resp)
			assert.Equal(t, tt.expectedError, resp.Error)
		})
	}
}
