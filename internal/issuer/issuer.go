package issuer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/storecredit/internal/config"
	"github.com/GlebRadaev/storecredit/internal/domain"
	"github.com/GlebRadaev/storecredit/pkg/clients"
)

const (
	AccessTokenHeader = "X-Access-Token"
	timeLayout        = time.RFC3339
)

var ErrEmptyInstrumentID = errors.New("issuer returned empty instrument id")

type priceRule struct {
	ID               domain.ExternalID `json:"id,omitempty"`
	Title            string            `json:"title"`
	ValueType        string            `json:"value_type"`
	Value            string            `json:"value"`
	UsageLimit       int               `json:"usage_limit"`
	OncePerCustomer  bool              `json:"once_per_customer"`
	TargetType       string            `json:"target_type"`
	TargetSelection  string            `json:"target_selection"`
	AllocationMethod string            `json:"allocation_method"`
	CustomerSelect   string            `json:"customer_selection"`
	StartsAt         string            `json:"starts_at"`
	EndsAt           string            `json:"ends_at,omitempty"`
}

type priceRuleEnvelope struct {
	PriceRule priceRule `json:"price_rule"`
}

type discountCode struct {
	ID   domain.ExternalID `json:"id,omitempty"`
	Code string            `json:"code"`
}

type discountCodeEnvelope struct {
	DiscountCode discountCode `json:"discount_code"`
}

// Client issues single-use fixed-amount discount codes backed by price rules.
type Client struct {
	url     string
	token   string
	timeout time.Duration
	client  clients.HTTPClientI
}

func New(cfg *config.Config, client clients.HTTPClientI) *Client {
	return &Client{
		url:     cfg.IssuerAddress,
		token:   cfg.IssuerToken,
		timeout: cfg.IssuerTimeout,
		client:  client,
	}
}

// CreateInstrument creates a price rule worth amount and attaches the discount code to it.
// The returned instrument id is the price rule id.
func (c *Client) CreateInstrument(ctx context.Context, amount decimal.Decimal, constraints domain.InstrumentConstraints) (*domain.Instrument, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	title := constraints.Code
	if constraints.CartToken != "" {
		title = fmt.Sprintf("%s cart:%s", constraints.Code, constraints.CartToken)
	}
	rule := priceRuleEnvelope{PriceRule: priceRule{
		Title:            title,
		ValueType:        "fixed_amount",
		Value:            amount.Neg().StringFixed(2),
		UsageLimit:       constraints.UsageLimit,
		OncePerCustomer:  constraints.OncePerCustomer,
		TargetType:       "line_item",
		TargetSelection:  "all",
		AllocationMethod: "across",
		CustomerSelect:   "all",
		StartsAt:         constraints.StartsAt.UTC().Format(timeLayout),
	}}
	if !constraints.EndsAt.IsZero() {
		rule.PriceRule.EndsAt = constraints.EndsAt.UTC().Format(timeLayout)
	}

	var created priceRuleEnvelope
	if err := c.call(ctx, http.MethodPost, "/price_rules", rule, &created); err != nil {
		return nil, err
	}
	ruleID := string(created.PriceRule.ID)
	if ruleID == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrIssuer, ErrEmptyInstrumentID)
	}

	var code discountCodeEnvelope
	path := "/price_rules/" + ruleID + "/discount_codes"
	if err := c.call(ctx, http.MethodPost, path, discountCodeEnvelope{DiscountCode: discountCode{Code: constraints.Code}}, &code); err != nil {
		if delErr := c.DeleteInstrument(context.WithoutCancel(ctx), ruleID); delErr != nil {
			zap.L().Warn("Failed to delete orphaned price rule", zap.String("priceRuleID", ruleID), zap.Error(delErr))
		}
		return nil, err
	}

	zap.L().Info("Discount instrument created", zap.String("instrumentID", ruleID), zap.String("code", constraints.Code))
	return &domain.Instrument{ID: ruleID, Code: constraints.Code}, nil
}

// DeleteInstrument removes the price rule and every code attached to it. A missing rule counts as deleted.
func (c *Client) DeleteInstrument(ctx context.Context, instrumentID string) error {
	if instrumentID == "" {
		return nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	statusCode, _, _, err := c.client.Send(ctx, http.MethodDelete, c.url+"/price_rules/"+instrumentID, c.headers(), nil)
	if err != nil {
		return fmt.Errorf("%w: delete price rule %s: %w", domain.ErrIssuer, instrumentID, err)
	}
	if statusCode == http.StatusNotFound || isSuccess(statusCode) {
		return nil
	}
	return fmt.Errorf("%w: delete price rule %s: unexpected status %d", domain.ErrIssuer, instrumentID, statusCode)
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: encode request: %w", domain.ErrIssuer, err)
	}

	statusCode, respBody, _, err := c.client.Send(ctx, method, c.url+path, c.headers(), body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", domain.ErrIssuer, method, path, err)
	}
	if !isSuccess(statusCode) {
		zap.L().Error("Unexpected issuer status code", zap.Int("status", statusCode), zap.String("path", path), zap.ByteString("body", respBody))
		return fmt.Errorf("%w: %s %s: unexpected status %d", domain.ErrIssuer, method, path, statusCode)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: parse response: %w", domain.ErrIssuer, err)
	}
	return nil
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	if c.token != "" {
		h.Set(AccessTokenHeader, c.token)
	}
	return h
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
