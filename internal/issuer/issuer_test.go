package issuer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/GlebRadaev/storecredit/internal/config"
	"github.com/GlebRadaev/storecredit/internal/domain"
	"github.com/GlebRadaev/storecredit/pkg/clients"
)

type fakeIssuer struct {
	mu           sync.Mutex
	rules        map[string]priceRule
	codes        map[string]string
	failCodes    bool
	tokens       []string
	deletedRules []string
	nextRuleID   int
}

func newFakeIssuer() *fakeIssuer {
	return &fakeIssuer{rules: map[string]priceRule{}, codes: map[string]string{}, nextRuleID: 1000}
}

func (f *fakeIssuer) router() http.Handler {
	r := chi.NewRouter()
	r.Post("/price_rules", func(w http.ResponseWriter, r *http.Request) {
		var in priceRuleEnvelope
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		f.mu.Lock()
		f.tokens = append(f.tokens, r.Header.Get(AccessTokenHeader))
		f.nextRuleID++
		id := domain.ExternalID(strconv.Itoa(f.nextRuleID))
		in.PriceRule.ID = id
		f.rules[string(id)] = in.PriceRule
		f.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"price_rule":{"id":` + string(id) + `}}`))
	})
	r.Post("/price_rules/{id}/discount_codes", func(w http.ResponseWriter, r *http.Request) {
		if f.failCodes {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		var in discountCodeEnvelope
		json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		f.codes[chi.URLParam(r, "id")] = in.DiscountCode.Code
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(discountCodeEnvelope{DiscountCode: discountCode{ID: "1", Code: in.DiscountCode.Code}})
	})
	r.Delete("/price_rules/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		f.mu.Lock()
		defer f.mu.Unlock()
		f.deletedRules = append(f.deletedRules, id)
		if _, ok := f.rules[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.rules, id)
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func newTestClient(t *testing.T, f *fakeIssuer) *Client {
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)
	cfg := &config.Config{IssuerAddress: srv.URL, IssuerToken: "shpat_test", IssuerTimeout: time.Second}
	return New(cfg, clients.NewHTTPClient(time.Second))
}

func TestClient_CreateInstrument(t *testing.T) {
	f := newFakeIssuer()
	client := newTestClient(t, f)
	starts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	instrument, err := client.CreateInstrument(context.Background(), decimal.RequireFromString("25"), domain.InstrumentConstraints{
		Code:            "CREDIT-ABCDEF123456",
		CartToken:       "cart-1",
		UsageLimit:      1,
		OncePerCustomer: true,
		StartsAt:        starts,
		EndsAt:          starts.Add(24 * time.Hour),
	})

	require.NoError(t, err)
	assert.Equal(t, "1001", instrument.ID)
	assert.Equal(t, "CREDIT-ABCDEF123456", instrument.Code)

	rule := f.rules["1001"]
	assert.Equal(t, "fixed_amount", rule.ValueType)
	assert.Equal(t, "-25.00", rule.Value)
	assert.Equal(t, 1, rule.UsageLimit)
	assert.True(t, rule.OncePerCustomer)
	assert.Equal(t, "2026-01-01T12:00:00Z", rule.StartsAt)
	assert.Equal(t, "2026-01-02T12:00:00Z", rule.EndsAt)
	assert.Equal(t, "CREDIT-ABCDEF123456", f.codes["1001"])
	assert.Equal(t, []string{"shpat_test"}, f.tokens)
}

func TestClient_CreateInstrumentCompensatesFailedCode(t *testing.T) {
	f := newFakeIssuer()
	f.failCodes = true
	client := newTestClient(t, f)

	instrument, err := client.CreateInstrument(context.Background(), decimal.RequireFromString("10.5"), domain.InstrumentConstraints{
		Code:     "CREDIT-000000000001",
		StartsAt: time.Now(),
	})

	assert.Nil(t, instrument)
	assert.ErrorIs(t, err, domain.ErrIssuer)
	assert.Equal(t, []string{"1001"}, f.deletedRules)
	assert.Empty(t, f.rules)
}

func TestClient_DeleteInstrument(t *testing.T) {
	f := newFakeIssuer()
	f.rules["7"] = priceRule{}
	client := newTestClient(t, f)

	assert.NoError(t, client.DeleteInstrument(context.Background(), "7"))
	assert.NoError(t, client.DeleteInstrument(context.Background(), "7"), "missing rule counts as deleted")
	assert.NoError(t, client.DeleteInstrument(context.Background(), ""))
	assert.Equal(t, []string{"7", "7"}, f.deletedRules)
}

func TestClient_Errors(t *testing.T) {
	cfg := &config.Config{IssuerAddress: "http://issuer", IssuerTimeout: time.Second}
	constraints := domain.InstrumentConstraints{Code: "CREDIT-1", StartsAt: time.Now()}

	tests := []struct {
		name        string
		prepareMock func(m *clients.MockHTTPClientI)
		call        func(c *Client) error
	}{
		{
			name: "transport error on create",
			prepareMock: func(m *clients.MockHTTPClientI) {
				m.EXPECT().Send(gomock.Any(), http.MethodPost, "http://issuer/price_rules", gomock.Any(), gomock.Any()).
					Return(0, nil, nil, errors.New("connection refused"))
			},
			call: func(c *Client) error {
				_, err := c.CreateInstrument(context.Background(), decimal.NewFromInt(5), constraints)
				return err
			},
		},
		{
			name: "rejected price rule",
			prepareMock: func(m *clients.MockHTTPClientI) {
				m.EXPECT().Send(gomock.Any(), http.MethodPost, "http://issuer/price_rules", gomock.Any(), gomock.Any()).
					Return(http.StatusUnprocessableEntity, []byte(`{"errors":"bad"}`), http.Header{}, nil)
			},
			call: func(c *Client) error {
				_, err := c.CreateInstrument(context.Background(), decimal.NewFromInt(5), constraints)
				return err
			},
		},
		{
			name: "missing price rule id",
			prepareMock: func(m *clients.MockHTTPClientI) {
				m.EXPECT().Send(gomock.Any(), http.MethodPost, "http://issuer/price_rules", gomock.Any(), gomock.Any()).
					Return(http.StatusCreated, []byte(`{"price_rule":{}}`), http.Header{}, nil)
			},
			call: func(c *Client) error {
				_, err := c.CreateInstrument(context.Background(), decimal.NewFromInt(5), constraints)
				return err
			},
		},
		{
			name: "delete server error",
			prepareMock: func(m *clients.MockHTTPClientI) {
				m.EXPECT().Send(gomock.Any(), http.MethodDelete, "http://issuer/price_rules/9", gomock.Any(), nil).
					Return(http.StatusInternalServerError, nil, http.Header{}, nil)
			},
			call: func(c *Client) error {
				return c.DeleteInstrument(context.Background(), "9")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			m := clients.NewMockHTTPClientI(ctrl)
			tt.prepareMock(m)

			err := tt.call(New(cfg, m))
			assert.ErrorIs(t, err, domain.ErrIssuer)
		})
	}
}

func TestClient_AppliesTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := clients.NewMockHTTPClientI(ctrl)
	cfg := &config.Config{IssuerAddress: "http://issuer", IssuerTimeout: 50 * time.Millisecond}

	m.EXPECT().Send(gomock.Any(), http.MethodDelete, gomock.Any(), gomock.Any(), nil).
		DoAndReturn(func(ctx context.Context, _, _ string, _ http.Header, _ []byte) (int, []byte, http.Header, error) {
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
			return http.StatusOK, nil, http.Header{}, nil
		})

	assert.NoError(t, New(cfg, m).DeleteInstrument(context.Background(), "1"))
}
