package service

import (
	"github.com/GlebRadaev/storecredit/internal/config"
	"github.com/GlebRadaev/storecredit/internal/handlers/admin"
	"github.com/GlebRadaev/storecredit/internal/handlers/auth"
	"github.com/GlebRadaev/storecredit/internal/handlers/balance"
	"github.com/GlebRadaev/storecredit/internal/handlers/reservations"
	"github.com/GlebRadaev/storecredit/internal/handlers/webhooks"
	"github.com/GlebRadaev/storecredit/internal/metrics"
	"github.com/GlebRadaev/storecredit/internal/pg"

	pkgauth "github.com/GlebRadaev/storecredit/pkg/auth"

	"github.com/GlebRadaev/storecredit/internal/repo"
	authservice "github.com/GlebRadaev/storecredit/internal/service/authservice"
	ledgerservice "github.com/GlebRadaev/storecredit/internal/service/ledgerservice"
	reservationservice "github.com/GlebRadaev/storecredit/internal/service/reservationservice"
	settlementservice "github.com/GlebRadaev/storecredit/internal/service/settlementservice"
)

type Services struct {
	AuthService        auth.Service
	BalanceService     balance.Service
	LedgerService      admin.Ledger
	ReservationService reservations.Service
	SettlementService  webhooks.Service
	TokenService       pkgauth.JWTServiceInterface
}

func New(
	cfg *config.Config,
	repo *repo.Repositories,
	txManager pg.TXManager,
	issuer reservationservice.Issuer,
	m *metrics.Metrics,
) *Services {
	jwtService := pkgauth.NewJWTService(cfg.JWTSecret)
	ledgerService := ledgerservice.New(repo.AccountRepo, repo.ReservationRepo)
	authService := authservice.New(repo.UserRepo, ledgerService, txManager, &pkgauth.HashService{}, jwtService)
	reservationService := reservationservice.New(cfg, ledgerService, repo.ReservationRepo, issuer, m)
	settlementService := settlementservice.New(cfg, repo.ReservationRepo, ledgerService, txManager, m)

	return &Services{
		AuthService:        authService,
		BalanceService:     ledgerService,
		LedgerService:      ledgerService,
		ReservationService: reservationService,
		SettlementService:  settlementService,
		TokenService:       jwtService,
	}
}
