package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/storecredit/internal/config"
	"github.com/GlebRadaev/storecredit/internal/handlers/admin"
	"github.com/GlebRadaev/storecredit/internal/metrics"
	"github.com/GlebRadaev/storecredit/internal/pg"
	"github.com/GlebRadaev/storecredit/internal/repo"
	"github.com/GlebRadaev/storecredit/internal/service"
	"github.com/GlebRadaev/storecredit/internal/service/reservationservice"
	"github.com/GlebRadaev/storecredit/pkg/auth"
)

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)

	cfg := &config.Config{JWTSecret: "secret", AdminToken: "admin", ReservationTTL: time.Hour}
	txManager := pg.NewMockTXManager(ctrl)
	services := service.New(cfg, repo.New(mockDB, txManager), txManager, reservationservice.NewMockIssuer(ctrl), metrics.New(nil))

	h := New(cfg, services, admin.NewMockSweeper(ctrl), prometheus.NewRegistry())
	assert.NotNil(t, h, "Handlers should not be nil")
	assert.NotNil(t, h.AuthHandler)
	assert.NotNil(t, h.BalanceHandler)
	assert.NotNil(t, h.ReservationHandler)
	assert.NotNil(t, h.WebhookHandler)
	assert.NotNil(t, h.AdminHandler)
	assert.Equal(t, "admin", h.adminToken)
}

func newTestHandlers(ctrl *gomock.Controller, adminToken string) *Handlers {
	mockAuthHandler := NewMockAuthHandler(ctrl)
	mockBalanceHandler := NewMockBalanceHandler(ctrl)
	mockReservationHandler := NewMockReservationHandler(ctrl)
	mockWebhookHandler := NewMockWebhookHandler(ctrl)
	mockAdminHandler := NewMockAdminHandler(ctrl)
	tokens := auth.NewMockJWTServiceInterface(ctrl)

	mockAuthHandler.EXPECT().Register(gomock.Any(), gomock.Any()).AnyTimes()
	mockAuthHandler.EXPECT().Login(gomock.Any(), gomock.Any()).AnyTimes()
	mockBalanceHandler.EXPECT().GetBalance(gomock.Any(), gomock.Any()).AnyTimes()
	mockReservationHandler.EXPECT().Reserve(gomock.Any(), gomock.Any()).AnyTimes()
	mockReservationHandler.EXPECT().GetReservations(gomock.Any(), gomock.Any()).AnyTimes()
	mockReservationHandler.EXPECT().Cancel(gomock.Any(), gomock.Any()).AnyTimes()
	mockWebhookHandler.EXPECT().OrderPaid(gomock.Any(), gomock.Any()).AnyTimes()
	mockAdminHandler.EXPECT().Credit(gomock.Any(), gomock.Any()).AnyTimes()
	mockAdminHandler.EXPECT().Sweep(gomock.Any(), gomock.Any()).AnyTimes()
	tokens.EXPECT().ValidateToken("valid").Return(&auth.Claims{UserID: 1}, nil).AnyTimes()
	tokens.EXPECT().ValidateToken(gomock.Not("valid")).Return(nil, auth.ErrInvalidToken).AnyTimes()

	return &Handlers{
		AuthHandler:        mockAuthHandler,
		BalanceHandler:     mockBalanceHandler,
		ReservationHandler: mockReservationHandler,
		WebhookHandler:     mockWebhookHandler,
		AdminHandler:       mockAdminHandler,
		tokens:             tokens,
		adminToken:         adminToken,
		gatherer:           prometheus.NewRegistry(),
	}
}

func TestInitRoutes(t *testing.T) {
	ctrl := gomock.NewController(t)

	router := chi.NewRouter()
	newTestHandlers(ctrl, "admin-secret").InitRoutes(router)

	tests := []struct {
		method  string
		url     string
		headers map[string]string
		status  int
	}{
		{"POST", "/api/user/register", nil, http.StatusOK},
		{"POST", "/api/user/login", nil, http.StatusOK},
		{"GET", "/api/user/balance", nil, http.StatusUnauthorized},
		{"GET", "/api/user/balance", map[string]string{"Authorization": "Bearer valid"}, http.StatusOK},
		{"GET", "/api/user/balance", map[string]string{"Authorization": "Bearer expired"}, http.StatusUnauthorized},
		{"POST", "/api/user/reservations", nil, http.StatusUnauthorized},
		{"POST", "/api/user/reservations", map[string]string{"Authorization": "Bearer valid"}, http.StatusOK},
		{"GET", "/api/user/reservations", map[string]string{"Authorization": "Bearer valid"}, http.StatusOK},
		{"DELETE", "/api/user/reservations/CREDIT-AAA", nil, http.StatusUnauthorized},
		{"DELETE", "/api/user/reservations/CREDIT-AAA", map[string]string{"Authorization": "Bearer valid"}, http.StatusOK},
		{"POST", "/api/webhooks/orders/paid", nil, http.StatusOK},
		{"POST", "/api/admin/sweep", nil, http.StatusUnauthorized},
		{"POST", "/api/admin/sweep", map[string]string{auth.AdminTokenHeader: "wrong"}, http.StatusUnauthorized},
		{"POST", "/api/admin/sweep", map[string]string{auth.AdminTokenHeader: "admin-secret"}, http.StatusOK},
		{"POST", "/api/admin/accounts/1/credit", map[string]string{auth.AdminTokenHeader: "admin-secret"}, http.StatusOK},
		{"GET", "/metrics", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.url, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.url, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestInitRoutesWithoutAdminToken(t *testing.T) {
	ctrl := gomock.NewController(t)

	router := chi.NewRouter()
	newTestHandlers(ctrl, "").InitRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/sweep", nil)
	req.Header.Set(auth.AdminTokenHeader, "")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
