package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GlebRadaev/storecredit/internal/config"
	"github.com/GlebRadaev/storecredit/internal/domain"
	"github.com/GlebRadaev/storecredit/internal/metrics"
)

const defaultReleaseTimeout = 10 * time.Second

type Repo interface {
	CancelExpired(ctx context.Context, cutoff, at time.Time) ([]domain.Reservation, error)
}

type Issuer interface {
	DeleteInstrument(ctx context.Context, instrumentID string) error
}

type Service struct {
	repo           Repo
	issuer         Issuer
	lock           Lock
	workerPool     WorkerPoolI
	metrics        *metrics.Metrics
	interval       time.Duration
	ttl            time.Duration
	releaseTimeout time.Duration
	now            func() time.Time
}

// New builds the sweeper. A nil lock means a single replica and no coordination.
func New(cfg *config.Config, repo Repo, issuer Issuer, lock Lock, m *metrics.Metrics) *Service {
	if lock == nil {
		lock = noopLock{}
	}
	releaseTimeout := cfg.IssuerTimeout
	if releaseTimeout <= 0 {
		releaseTimeout = defaultReleaseTimeout
	}
	return &Service{
		repo:           repo,
		issuer:         issuer,
		lock:           lock,
		workerPool:     NewWorkerPool(cfg.SweepWorkers),
		metrics:        m,
		interval:       cfg.SweepInterval,
		ttl:            cfg.ReservationTTL,
		releaseTimeout: releaseTimeout,
		now:            time.Now,
	}
}

func (s *Service) Start(ctx context.Context) {
	zap.L().Info("Expiry sweeper started", zap.Duration("interval", s.interval), zap.Duration("ttl", s.ttl))
	go s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.workerPool.Close()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Context canceled, stopping sweeper")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	ok, err := s.lock.Acquire(ctx)
	if err != nil {
		zap.L().Error("Failed to acquire sweep lock", zap.Error(err))
		return
	}
	if !ok {
		zap.L().Debug("Sweep already running elsewhere, skipping")
		return
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			zap.L().Warn("Failed to release sweep lock", zap.Error(err))
		}
	}()

	if _, err := s.SweepExpired(ctx, s.ttl); err != nil {
		zap.L().Error("Sweep failed", zap.Error(err))
	}
}

// SweepExpired cancels pending reservations created more than maxAge ago and
// revokes their discounts. Revocation failures are logged, not returned.
func (s *Service) SweepExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, fmt.Errorf("%w: max age must be positive", domain.ErrValidation)
	}
	started := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(started)) }()

	now := s.now()
	expired, err := s.repo.CancelExpired(ctx, now.Add(-maxAge), now)
	if err != nil {
		return 0, fmt.Errorf("cancel expired reservations: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}
	s.metrics.AddSwept(len(expired))

	if err := s.releaseAll(ctx, expired); err != nil {
		zap.L().Warn("Some expired discounts were not revoked", zap.Error(err))
	}

	zap.L().Info("Expired reservations cancelled",
		zap.Int("count", len(expired)),
		zap.Duration("maxAge", maxAge),
	)
	return len(expired), nil
}

func (s *Service) releaseAll(ctx context.Context, expired []domain.Reservation) error {
	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	for _, reservation := range expired {
		g.Go(func() error {
			err := s.workerPool.Do(ctx, func() error {
				return s.release(ctx, reservation)
			})
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (s *Service) release(ctx context.Context, reservation domain.Reservation) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.releaseTimeout)
	defer cancel()

	if err := s.issuer.DeleteInstrument(ctx, reservation.InstrumentID); err != nil {
		return fmt.Errorf("code %s: %w", reservation.DiscountCode, err)
	}
	return nil
}
