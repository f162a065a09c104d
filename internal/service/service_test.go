package service

import (
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/storecredit/internal/config"
	"github.com/GlebRadaev/storecredit/internal/metrics"
	"github.com/GlebRadaev/storecredit/internal/pg"
	"github.com/GlebRadaev/storecredit/internal/repo"
	"github.com/GlebRadaev/storecredit/internal/service/reservationservice"
)

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:          "secret",
		WebhookSecret:      "whsec",
		DiscountCodePrefix: "CREDIT-",
		ReservationTTL:     24 * time.Hour,
		IssuerTimeout:      time.Second,
	}
	txManager := pg.NewMockTXManager(ctrl)
	repos := repo.New(mockDB, txManager)

	services := New(cfg, repos, txManager, reservationservice.NewMockIssuer(ctrl), metrics.New(nil))

	assert.NotNil(t, services.AuthService)
	assert.NotNil(t, services.BalanceService)
	assert.NotNil(t, services.LedgerService)
	assert.NotNil(t, services.ReservationService)
	assert.NotNil(t, services.SettlementService)
	assert.NotNil(t, services.TokenService)

	token, err := services.TokenService.GenerateJWT(7, time.Now().Add(time.Hour))
	require.NoError(t, err)
	claims, err := services.TokenService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
}
