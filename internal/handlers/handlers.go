package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/GlebRadaev/storecredit/docs"
	"github.com/GlebRadaev/storecredit/internal/config"
	adminhandlers "github.com/GlebRadaev/storecredit/internal/handlers/admin"
	authhandlers "github.com/GlebRadaev/storecredit/internal/handlers/auth"
	balancehandlers "github.com/GlebRadaev/storecredit/internal/handlers/balance"
	reservationshandlers "github.com/GlebRadaev/storecredit/internal/handlers/reservations"
	webhookshandlers "github.com/GlebRadaev/storecredit/internal/handlers/webhooks"
	"github.com/GlebRadaev/storecredit/internal/service"
	"github.com/GlebRadaev/storecredit/pkg/auth"
)

type AuthHandler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
}

type BalanceHandler interface {
	GetBalance(w http.ResponseWriter, r *http.Request)
}

type ReservationHandler interface {
	Reserve(w http.ResponseWriter, r *http.Request)
	GetReservations(w http.ResponseWriter, r *http.Request)
	Cancel(w http.ResponseWriter, r *http.Request)
}

type WebhookHandler interface {
	OrderPaid(w http.ResponseWriter, r *http.Request)
}

type AdminHandler interface {
	Credit(w http.ResponseWriter, r *http.Request)
	Sweep(w http.ResponseWriter, r *http.Request)
}

type Handlers struct {
	AuthHandler        AuthHandler
	BalanceHandler     BalanceHandler
	ReservationHandler ReservationHandler
	WebhookHandler     WebhookHandler
	AdminHandler       AdminHandler

	tokens     auth.JWTServiceInterface
	adminToken string
	gatherer   prometheus.Gatherer
}

func New(cfg *config.Config, s *service.Services, sweeper adminhandlers.Sweeper, gatherer prometheus.Gatherer) *Handlers {
	return &Handlers{
		AuthHandler:        authhandlers.New(s.AuthService),
		BalanceHandler:     balancehandlers.New(s.BalanceService),
		ReservationHandler: reservationshandlers.New(s.ReservationService),
		WebhookHandler:     webhookshandlers.New(s.SettlementService),
		AdminHandler:       adminhandlers.New(s.LedgerService, sweeper, cfg.ReservationTTL),
		tokens:             s.TokenService,
		adminToken:         cfg.AdminToken,
		gatherer:           gatherer,
	}
}

func (h *Handlers) InitRoutes(r chi.Router) chi.Router {
	r.Use(
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("doc.json"),
	))
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.AuthHandler.Register)
		r.Post("/login", h.AuthHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(h.tokens))
			r.Get("/balance", h.BalanceHandler.GetBalance)
			r.Route("/reservations", func(r chi.Router) {
				r.Post("/", h.ReservationHandler.Reserve)
				r.Get("/", h.ReservationHandler.GetReservations)
				r.Delete("/{code}", h.ReservationHandler.Cancel)
			})
		})
	})

	r.Post("/api/webhooks/orders/paid", h.WebhookHandler.OrderPaid)

	if h.adminToken != "" {
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(auth.AdminMiddleware(h.adminToken))
			r.Post("/accounts/{userID}/credit", h.AdminHandler.Credit)
			r.Post("/sweep", h.AdminHandler.Sweep)
		})
	}

	return r
}
