package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/GlebRadaev/storecredit/internal/config"
	"github.com/GlebRadaev/storecredit/internal/handlers"
	"github.com/GlebRadaev/storecredit/internal/issuer"
	"github.com/GlebRadaev/storecredit/internal/metrics"
	"github.com/GlebRadaev/storecredit/internal/pg"
	"github.com/GlebRadaev/storecredit/internal/repo"
	"github.com/GlebRadaev/storecredit/internal/service"
	"github.com/GlebRadaev/storecredit/internal/sweeper"
	"github.com/GlebRadaev/storecredit/pkg/clients"
	"github.com/GlebRadaev/storecredit/pkg/logger"
	"github.com/GlebRadaev/storecredit/pkg/redis"
)

const (
	shutdownTimeout = 5 * time.Second
	sweepLockName   = "sweeper"
)

type ApplicationI interface {
	Start(ctx context.Context) error
	Wait(ctx context.Context, cancel context.CancelFunc) error
}

type Application struct {
	cfg     *config.Config
	api     *handlers.Handlers
	srv     *service.Services
	repo    *repo.Repositories
	sweeper *sweeper.Service

	pool  *pgxpool.Pool
	redis *redis.Client

	errCh chan error
	wg    sync.WaitGroup
	ready bool
}

func New() *Application {
	return &Application{
		errCh: make(chan error),
	}
}

func (a *Application) Start(ctx context.Context) error {
	cfg := config.New()

	err := logger.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("can't init logger: %w", err)
	}
	if cfg.WebhookSecret == "" {
		zap.L().Warn("WEBHOOK_SECRET is empty, every order webhook will be rejected")
	}
	if cfg.AdminToken == "" {
		zap.L().Warn("ADMIN_TOKEN is empty, admin routes are disabled")
	}

	pool, err := getPgxpool(ctx, cfg)
	if err != nil {
		zap.L().Error("build pgx pool failed: ", zap.Error(err))
		return fmt.Errorf("can't build pgx pool: %w", err)
	}
	a.pool = pool
	if err := pg.RunMigrations(pool); err != nil {
		zap.L().Error("migrations failed: ", zap.Error(err))
		return fmt.Errorf("can't run migrations: %w", err)
	}
	txManager := pg.NewTXManager(pool)

	lock, err := a.sweepLock(ctx, cfg)
	if err != nil {
		return err
	}

	registry := newRegistry()
	m := metrics.New(registry)
	issuerClient := issuer.New(cfg, clients.NewHTTPClient(cfg.IssuerTimeout))

	conn := pg.New(pool)
	a.cfg = cfg
	a.repo = repo.New(conn, txManager)
	a.srv = service.New(cfg, a.repo, txManager, issuerClient, m)
	a.sweeper = sweeper.New(cfg, a.repo.ReservationRepo, issuerClient, lock, m)
	a.api = handlers.New(cfg, a.srv, a.sweeper, registry)

	if err = a.startHTTPServer(ctx); err != nil {
		return fmt.Errorf("can't start http server: %w", err)
	}

	a.startSweeper(ctx)
	a.closeOnDone(ctx)

	a.ready = true
	zap.L().Info("all systems started successfully")
	return nil
}

func getPgxpool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	cfgpool, err := pgxpool.ParseConfig(cfg.Database)
	if err != nil {
		return nil, err
	}
	dbpool, err := pgxpool.NewWithConfig(ctx, cfgpool)
	if err != nil {
		return nil, err
	}
	if err = dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, err
	}
	return dbpool, nil
}

// sweepLock returns nil when Redis is not configured; the sweeper then runs uncoordinated.
func (a *Application) sweepLock(ctx context.Context, cfg *config.Config) (sweeper.Lock, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	client, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		zap.L().Error("redis connection failed: ", zap.Error(err))
		return nil, fmt.Errorf("can't connect to redis: %w", err)
	}
	a.redis = client

	lock, err := sweeper.NewRedisLock(client, redis.LockKey(sweepLockName), cfg.SweepInterval)
	if err != nil {
		return nil, fmt.Errorf("can't build sweep lock: %w", err)
	}
	return lock, nil
}

func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func (a *Application) startHTTPServer(ctx context.Context) error {
	router := chi.NewRouter()
	a.api.InitRoutes(router)
	server := http.Server{
		Addr:              a.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()

		sCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sCtx); err != nil {
			zap.L().Error("http server shutdown failed", zap.Error(err))
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		zap.L().Info("starting http server on port", zap.String("port", a.cfg.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.errCh <- fmt.Errorf("http server exited with error: %w", err)
		}
	}()

	return nil
}

func (a *Application) startSweeper(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sweeper.Start(ctx)
	}()
}

func (a *Application) closeOnDone(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()

		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				zap.L().Warn("redis close failed", zap.Error(err))
			}
		}
		if a.pool != nil {
			a.pool.Close()
		}
	}()
}

func (a *Application) Wait(ctx context.Context, cancel context.CancelFunc) error {
	var appErr error

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		for err := range a.errCh {
			cancel()
			zap.L().Error(err.Error())
			appErr = err
		}
	}()

	<-ctx.Done()
	a.wg.Wait()
	close(a.errCh)
	wg.Wait()

	return appErr
}
