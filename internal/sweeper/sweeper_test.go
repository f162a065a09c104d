package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/GlebRadaev/storecredit/internal/config"
	"github.com/GlebRadaev/storecredit/internal/domain"
	"github.com/GlebRadaev/storecredit/internal/metrics"
)

var testNow = time.Date(2026, 6, 2, 10, 0, 0, 0, time.UTC)

func NewMock(t *testing.T) (*Service, *MockRepo, *MockIssuer, *MockLock) {
	cfg := &config.Config{
		IssuerTimeout:  time.Second,
		ReservationTTL: 24 * time.Hour,
		SweepInterval:  10 * time.Millisecond,
		SweepWorkers:   2,
	}
	ctrl := gomock.NewController(t)
	repo := NewMockRepo(ctrl)
	issuer := NewMockIssuer(ctrl)
	lock := NewMockLock(ctrl)
	service := New(cfg, repo, issuer, lock, metrics.New(prometheus.NewRegistry()))
	service.now = func() time.Time { return testNow }
	t.Cleanup(service.workerPool.Close)
	return service, repo, issuer, lock
}

func pending(code string, age time.Duration) domain.Reservation {
	return domain.Reservation{
		ID:           uuid.New(),
		UserID:       1,
		Amount:       decimal.RequireFromString("10"),
		DiscountCode: code,
		InstrumentID: "rule-" + code,
		Status:       domain.StatusPending,
		CreatedAt:    testNow.Add(-age),
	}
}

// cancelOlderThan mimics the conditional update: only rows created before cutoff are cancelled.
func cancelOlderThan(rows []domain.Reservation) func(context.Context, time.Time, time.Time) ([]domain.Reservation, error) {
	return func(_ context.Context, cutoff, at time.Time) ([]domain.Reservation, error) {
		var cancelled []domain.Reservation
		for _, r := range rows {
			if r.Status == domain.StatusPending && r.CreatedAt.Before(cutoff) {
				r.Status = domain.StatusCancelled
				r.ResolvedAt = &at
				cancelled = append(cancelled, r)
			}
		}
		return cancelled, nil
	}
}

func TestService_SweepExpired(t *testing.T) {
	service, repo, issuer, _ := NewMock(t)

	tests := []struct {
		name          string
		maxAge        time.Duration
		prepareMock   func()
		expectedCount int
		expectedErr   error
		errContains   string
	}{
		{
			name:   "cancels only reservations older than max age",
			maxAge: 24 * time.Hour,
			prepareMock: func() {
				rows := []domain.Reservation{pending("CREDIT-OLD", 25*time.Hour), pending("CREDIT-NEW", time.Hour)}
				repo.EXPECT().CancelExpired(gomock.Any(), testNow.Add(-24*time.Hour), testNow).
					DoAndReturn(cancelOlderThan(rows))
				issuer.EXPECT().DeleteInstrument(gomock.Any(), "rule-CREDIT-OLD").Return(nil)
			},
			expectedCount: 1,
		},
		{
			name:   "nothing expired",
			maxAge: 24 * time.Hour,
			prepareMock: func() {
				repo.EXPECT().CancelExpired(gomock.Any(), testNow.Add(-24*time.Hour), testNow).Return(nil, nil)
			},
			expectedCount: 0,
		},
		{
			name:   "revocation failure does not fail the sweep",
			maxAge: time.Hour,
			prepareMock: func() {
				rows := []domain.Reservation{pending("CREDIT-A", 2*time.Hour), pending("CREDIT-B", 3*time.Hour)}
				repo.EXPECT().CancelExpired(gomock.Any(), testNow.Add(-time.Hour), testNow).
					DoAndReturn(cancelOlderThan(rows))
				issuer.EXPECT().DeleteInstrument(gomock.Any(), "rule-CREDIT-A").Return(domain.ErrIssuer)
				issuer.EXPECT().DeleteInstrument(gomock.Any(), "rule-CREDIT-B").Return(nil)
			},
			expectedCount: 2,
		},
		{
			name:   "storage failure",
			maxAge: time.Hour,
			prepareMock: func() {
				repo.EXPECT().CancelExpired(gomock.Any(), testNow.Add(-time.Hour), testNow).Return(nil, errors.New("db down"))
			},
			errContains: "cancel expired reservations: db down",
		},
		{
			name:        "non-positive max age",
			maxAge:      0,
			prepareMock: func() {},
			expectedErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()

			count, err := service.SweepExpired(context.Background(), tt.maxAge)

			switch {
			case tt.expectedErr != nil:
				assert.ErrorIs(t, err, tt.expectedErr)
			case tt.errContains != "":
				assert.ErrorContains(t, err, tt.errContains)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.expectedCount, count)
			}
		})
	}
}

func TestService_releaseAllCollectsErrors(t *testing.T) {
	service, _, issuer, _ := NewMock(t)

	issuer.EXPECT().DeleteInstrument(gomock.Any(), "rule-CREDIT-A").Return(errors.New("timeout"))
	issuer.EXPECT().DeleteInstrument(gomock.Any(), "rule-CREDIT-B").Return(errors.New("status 500"))
	issuer.EXPECT().DeleteInstrument(gomock.Any(), "rule-CREDIT-C").Return(nil)

	err := service.releaseAll(context.Background(), []domain.Reservation{
		pending("CREDIT-A", 0), pending("CREDIT-B", 0), pending("CREDIT-C", 0),
	})

	require.Error(t, err)
	assert.ErrorContains(t, err, "code CREDIT-A: timeout")
	assert.ErrorContains(t, err, "code CREDIT-B: status 500")
}

func TestService_sweep(t *testing.T) {
	tests := []struct {
		name        string
		prepareMock func(repo *MockRepo, lock *MockLock)
	}{
		{
			name: "lock acquired",
			prepareMock: func(repo *MockRepo, lock *MockLock) {
				gomock.InOrder(
					lock.EXPECT().Acquire(gomock.Any()).Return(true, nil),
					repo.EXPECT().CancelExpired(gomock.Any(), testNow.Add(-24*time.Hour), testNow).Return(nil, nil),
					lock.EXPECT().Release(gomock.Any()).Return(nil),
				)
			},
		},
		{
			name: "held by another replica",
			prepareMock: func(repo *MockRepo, lock *MockLock) {
				lock.EXPECT().Acquire(gomock.Any()).Return(false, nil)
			},
		},
		{
			name: "lock backend unavailable",
			prepareMock: func(repo *MockRepo, lock *MockLock) {
				lock.EXPECT().Acquire(gomock.Any()).Return(false, errors.New("connection refused"))
			},
		},
		{
			name: "sweep failure still releases lock",
			prepareMock: func(repo *MockRepo, lock *MockLock) {
				lock.EXPECT().Acquire(gomock.Any()).Return(true, nil)
				repo.EXPECT().CancelExpired(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
				lock.EXPECT().Release(gomock.Any()).Return(errors.New("connection refused"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, repo, _, lock := NewMock(t)
			tt.prepareMock(repo, lock)

			service.sweep(context.Background())
		})
	}
}

func TestService_Start(t *testing.T) {
	service, repo, _, lock := NewMock(t)

	lock.EXPECT().Acquire(gomock.Any()).Return(true, nil).MinTimes(1)
	lock.EXPECT().Release(gomock.Any()).Return(nil).MinTimes(1)
	repo.EXPECT().CancelExpired(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).MinTimes(1)

	ctx, cancel := context.WithCancel(context.Background())
	service.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)
}

func TestNewWithoutLock(t *testing.T) {
	cfg := &config.Config{SweepWorkers: 1, SweepInterval: time.Minute, ReservationTTL: time.Hour}
	service := New(cfg, nil, nil, nil, nil)
	defer service.workerPool.Close()

	ok, err := service.lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, service.lock.Release(context.Background()))
	assert.Equal(t, defaultReleaseTimeout, service.releaseTimeout)
}
