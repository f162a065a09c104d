package reservationservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/GlebRadaev/storecredit/internal/config"
	"github.com/GlebRadaev/storecredit/internal/domain"
)

var fixedNow = time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)

const testCode = "CREDIT-0A1B2C3D4E5F"

type mocks struct {
	ledger *MockLedger
	repo   *MockRepo
	issuer *MockIssuer
}

func NewMock(t *testing.T) (*Service, mocks) {
	ctrl := gomock.NewController(t)
	m := mocks{
		ledger: NewMockLedger(ctrl),
		repo:   NewMockRepo(ctrl),
		issuer: NewMockIssuer(ctrl),
	}
	cfg := &config.Config{
		DiscountCodePrefix: "CREDIT-",
		ReservationTTL:     24 * time.Hour,
		IssuerTimeout:      time.Second,
	}
	service := New(cfg, m.ledger, m.repo, m.issuer, nil)
	service.now = func() time.Time { return fixedNow }
	service.newCode = func() string { return testCode }
	return service, m
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestService_Reserve(t *testing.T) {
	tests := []struct {
		name        string
		amount      string
		cartToken   string
		prepareMock func(m mocks)
		expectedErr error
		errContains string
	}{
		{
			name:      "Reservation created without touching the balance",
			amount:    "25.00",
			cartToken: "cart-1",
			prepareMock: func(m mocks) {
				m.ledger.EXPECT().GetBalance(gomock.Any(), 1).Return(&domain.Account{UserID: 1, Balance: money("50.00")}, nil)
				m.repo.EXPECT().SumPending(gomock.Any(), 1).Return(decimal.Zero, nil)
				m.issuer.EXPECT().CreateInstrument(gomock.Any(), money("25.00"), domain.InstrumentConstraints{
					Code:            testCode,
					CartToken:       "cart-1",
					UsageLimit:      1,
					OncePerCustomer: true,
					StartsAt:        fixedNow,
					EndsAt:          fixedNow.Add(24 * time.Hour),
				}).Return(&domain.Instrument{ID: "1001", Code: testCode}, nil)
				m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r *domain.Reservation) (*domain.Reservation, error) {
					return r, nil
				})
			},
		},
		{
			name:      "Balance below amount",
			amount:    "25.00",
			cartToken: "cart-1",
			prepareMock: func(m mocks) {
				m.ledger.EXPECT().GetBalance(gomock.Any(), 1).Return(&domain.Account{UserID: 1, Balance: money("10.00")}, nil)
				m.repo.EXPECT().SumPending(gomock.Any(), 1).Return(decimal.Zero, nil)
			},
			expectedErr: domain.ErrInsufficientBalance,
		},
		{
			name:      "Pending holds count against the balance",
			amount:    "25.00",
			cartToken: "cart-1",
			prepareMock: func(m mocks) {
				m.ledger.EXPECT().GetBalance(gomock.Any(), 1).Return(&domain.Account{UserID: 1, Balance: money("50.00")}, nil)
				m.repo.EXPECT().SumPending(gomock.Any(), 1).Return(money("30.00"), nil)
			},
			expectedErr: domain.ErrInsufficientBalance,
		},
		{
			name:        "Zero amount",
			amount:      "0",
			cartToken:   "cart-1",
			prepareMock: func(m mocks) {},
			expectedErr: domain.ErrValidation,
		},
		{
			name:        "Three fractional digits",
			amount:      "10.001",
			cartToken:   "cart-1",
			prepareMock: func(m mocks) {},
			expectedErr: domain.ErrValidation,
		},
		{
			name:        "Missing cart token",
			amount:      "5",
			cartToken:   "  ",
			prepareMock: func(m mocks) {},
			expectedErr: domain.ErrValidation,
		},
		{
			name:      "Unknown account",
			amount:    "5",
			cartToken: "cart-1",
			prepareMock: func(m mocks) {
				m.ledger.EXPECT().GetBalance(gomock.Any(), 1).Return(nil, domain.ErrNotFound)
			},
			expectedErr: domain.ErrNotFound,
		},
		{
			name:      "Ledger unavailable",
			amount:    "5",
			cartToken: "cart-1",
			prepareMock: func(m mocks) {
				m.ledger.EXPECT().GetBalance(gomock.Any(), 1).Return(&domain.Account{UserID: 1, Balance: money("50")}, nil)
				m.repo.EXPECT().SumPending(gomock.Any(), 1).Return(decimal.Zero, errors.New("connection refused"))
			},
			expectedErr: domain.ErrLedger,
		},
		{
			name:      "Issuer failure persists nothing",
			amount:    "5",
			cartToken: "cart-1",
			prepareMock: func(m mocks) {
				m.ledger.EXPECT().GetBalance(gomock.Any(), 1).Return(&domain.Account{UserID: 1, Balance: money("50")}, nil)
				m.repo.EXPECT().SumPending(gomock.Any(), 1).Return(decimal.Zero, nil)
				m.issuer.EXPECT().CreateInstrument(gomock.Any(), money("5"), gomock.Any()).Return(nil, errors.New("502 bad gateway"))
			},
			expectedErr: domain.ErrIssuer,
		},
		{
			name:      "Storage failure deletes the instrument",
			amount:    "5",
			cartToken: "cart-1",
			prepareMock: func(m mocks) {
				m.ledger.EXPECT().GetBalance(gomock.Any(), 1).Return(&domain.Account{UserID: 1, Balance: money("50")}, nil)
				m.repo.EXPECT().SumPending(gomock.Any(), 1).Return(decimal.Zero, nil)
				m.issuer.EXPECT().CreateInstrument(gomock.Any(), money("5"), gomock.Any()).Return(&domain.Instrument{ID: "1001", Code: testCode}, nil)
				m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, errors.New("unique violation"))
				m.issuer.EXPECT().DeleteInstrument(gomock.Any(), "1001").Return(nil)
			},
			errContains: "save reservation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, m := NewMock(t)
			tt.prepareMock(m)

			reservation, err := service.Reserve(context.Background(), 1, money(tt.amount), tt.cartToken)

			if tt.expectedErr != nil || tt.errContains != "" {
				require.Error(t, err)
				if tt.expectedErr != nil {
					assert.ErrorIs(t, err, tt.expectedErr)
				}
				if tt.errContains != "" {
					assert.ErrorContains(t, err, tt.errContains)
				}
				assert.Nil(t, reservation)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 1, reservation.UserID)
			assert.Equal(t, testCode, reservation.DiscountCode)
			assert.Equal(t, "1001", reservation.InstrumentID)
			assert.Equal(t, domain.StatusPending, reservation.Status)
			assert.Equal(t, "25.00", reservation.Amount.StringFixed(2))
			assert.Equal(t, fixedNow, reservation.CreatedAt)
			assert.Nil(t, reservation.ResolvedAt)
		})
	}
}

func TestService_ReserveCallerGoneAfterIssuance(t *testing.T) {
	service, m := NewMock(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.ledger.EXPECT().GetBalance(gomock.Any(), 1).Return(&domain.Account{UserID: 1, Balance: money("50")}, nil)
	m.repo.EXPECT().SumPending(gomock.Any(), 1).Return(decimal.Zero, nil)
	m.issuer.EXPECT().CreateInstrument(gomock.Any(), money("5"), gomock.Any()).
		DoAndReturn(func(context.Context, decimal.Decimal, domain.InstrumentConstraints) (*domain.Instrument, error) {
			cancel()
			return &domain.Instrument{ID: "1001", Code: testCode}, nil
		})
	m.issuer.EXPECT().DeleteInstrument(gomock.Any(), "1001").
		DoAndReturn(func(ctx context.Context, _ string) error {
			assert.NoError(t, ctx.Err(), "compensation must not inherit the caller's cancellation")
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return nil
		})

	reservation, err := service.Reserve(ctx, 1, money("5"), "cart-1")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, reservation)
}

func TestService_Cancel(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		prepareMock func(m mocks)
		expectedErr error
	}{
		{
			name: "Pending reservation cancelled",
			code: " credit-0a1b2c3d4e5f ",
			prepareMock: func(m mocks) {
				m.repo.EXPECT().Transition(gomock.Any(), domain.Transition{
					DiscountCode: testCode,
					UserID:       1,
					To:           domain.StatusCancelled,
					At:           fixedNow,
				}).Return(&domain.Reservation{DiscountCode: testCode, InstrumentID: "1001", Status: domain.StatusCancelled}, nil)
				m.issuer.EXPECT().DeleteInstrument(gomock.Any(), "1001").Return(nil)
			},
		},
		{
			name: "Issuer delete failure is not propagated",
			code: testCode,
			prepareMock: func(m mocks) {
				m.repo.EXPECT().Transition(gomock.Any(), gomock.Any()).
					Return(&domain.Reservation{DiscountCode: testCode, InstrumentID: "1001", Status: domain.StatusCancelled}, nil)
				m.issuer.EXPECT().DeleteInstrument(gomock.Any(), "1001").Return(domain.ErrIssuer)
			},
		},
		{
			name: "Already resolved or foreign reservation",
			code: testCode,
			prepareMock: func(m mocks) {
				m.repo.EXPECT().Transition(gomock.Any(), gomock.Any()).Return(nil, nil)
			},
			expectedErr: domain.ErrNotFound,
		},
		{
			name:        "Empty code",
			code:        "",
			prepareMock: func(m mocks) {},
			expectedErr: domain.ErrValidation,
		},
		{
			name: "Storage failure",
			code: testCode,
			prepareMock: func(m mocks) {
				m.repo.EXPECT().Transition(gomock.Any(), gomock.Any()).Return(nil, errors.New("database error"))
			},
			expectedErr: errors.New("database error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, m := NewMock(t)
			tt.prepareMock(m)

			reservation, err := service.Cancel(context.Background(), 1, tt.code)

			if tt.expectedErr != nil {
				assert.ErrorContains(t, err, tt.expectedErr.Error())
				assert.Nil(t, reservation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.StatusCancelled, reservation.Status)
		})
	}
}

func TestService_GetReservations(t *testing.T) {
	service, m := NewMock(t)

	m.repo.EXPECT().ListByUserID(gomock.Any(), 1).Return([]domain.Reservation{{DiscountCode: testCode}}, nil)
	list, err := service.GetReservations(context.Background(), 1)
	assert.NoError(t, err)
	assert.Len(t, list, 1)

	m.repo.EXPECT().ListByUserID(gomock.Any(), 2).Return(nil, errors.New("database error"))
	_, err = service.GetReservations(context.Background(), 2)
	assert.Error(t, err)
}

func TestGenerateCode(t *testing.T) {
	service := New(&config.Config{DiscountCodePrefix: "credit-"}, nil, nil, nil, nil)

	code := service.generateCode()

	assert.Regexp(t, `^CREDIT-[0-9A-F]{12}$`, code)
	assert.NotEqual(t, code, service.generateCode())
}
